package scraper

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/recipe-forge/configs"
	configloader "github.com/lepinkainen/recipe-forge/pkg/config"
	"github.com/lepinkainen/recipe-forge/pkg/extract"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// sitesFile is the name of the embedded site table
const sitesFile = "sites.yaml"

// SiteScraper handles pages from a known set of hosts
type SiteScraper interface {
	Name() string
	CanHandle(host string) bool
	Scrape(doc *goquery.Document, rawHTML string) (*recipe.ScrapedRecipe, error)
}

// SiteConfig describes a selector-driven site scraper
type SiteConfig struct {
	Name      string            `yaml:"name"`
	Hosts     []string          `yaml:"hosts"`
	Selectors extract.Selectors `yaml:"selectors"`
}

// SiteTable is the on-disk shape of the site list
type SiteTable struct {
	Sites []SiteConfig `yaml:"sites" json:"sites"`
}

// LoadSites loads the site table from path when set, falling back to the embedded table
func LoadSites(path string) ([]SiteScraper, error) {
	var table SiteTable

	slog.Debug("Loading site scrapers", "path", path)
	source, err := configloader.LoadWithEmbedded(path, configs.EmbeddedConfigs, sitesFile, &table)
	if err != nil {
		return nil, fmt.Errorf("failed to load site table: %w", err)
	}

	sites := make([]SiteScraper, 0, len(table.Sites))
	for _, cfg := range table.Sites {
		if len(cfg.Hosts) == 0 {
			slog.Warn("Site scraper without hosts, skipping", "name", cfg.Name)
			continue
		}
		sites = append(sites, NewSelectorSite(cfg))
	}

	slog.Debug("Site scrapers loaded", "source", source, "count", len(sites))
	return sites, nil
}

// SelectorSite scrapes with a fixed set of per-field CSS selectors
type SelectorSite struct {
	config SiteConfig
}

// NewSelectorSite creates a site scraper from its configuration
func NewSelectorSite(cfg SiteConfig) *SelectorSite {
	hosts := make([]string, 0, len(cfg.Hosts))
	for _, h := range cfg.Hosts {
		hosts = append(hosts, normalizeHost(h))
	}
	cfg.Hosts = hosts
	return &SelectorSite{config: cfg}
}

// Name implements SiteScraper
func (s *SelectorSite) Name() string {
	return s.config.Name
}

// CanHandle implements SiteScraper
func (s *SelectorSite) CanHandle(host string) bool {
	return MatchHost(host, s.config.Hosts...)
}

// Scrape implements SiteScraper
func (s *SelectorSite) Scrape(doc *goquery.Document, _ string) (*recipe.ScrapedRecipe, error) {
	return extract.Finalize(extract.ApplySelectors(doc, s.config.Selectors))
}

// SiteFunc adapts a host predicate and a scrape function into a SiteScraper
type SiteFunc struct {
	SiteName string
	Match    func(host string) bool
	Fn       func(doc *goquery.Document, rawHTML string) (*recipe.ScrapedRecipe, error)
}

// Name implements SiteScraper
func (f SiteFunc) Name() string { return f.SiteName }

// CanHandle implements SiteScraper
func (f SiteFunc) CanHandle(host string) bool { return f.Match(host) }

// Scrape implements SiteScraper
func (f SiteFunc) Scrape(doc *goquery.Document, rawHTML string) (*recipe.ScrapedRecipe, error) {
	return f.Fn(doc, rawHTML)
}

// Hostname extracts the lowercase host of rawURL without a leading "www."
func Hostname(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return normalizeHost(u.Hostname())
}

// MatchHost reports whether host equals one of domains or is a subdomain of one
func MatchHost(host string, domains ...string) bool {
	host = normalizeHost(host)
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func normalizeHost(h string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(h)), "www.")
}
