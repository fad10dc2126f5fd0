// Package scraper chooses and runs the extraction strategy for a page.
package scraper

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/recipe-forge/pkg/extract"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
	"github.com/lepinkainen/recipe-forge/pkg/validate"
)

// Manager runs site-specific scrapers first and the generic extractors after them
type Manager struct {
	sites   []SiteScraper
	generic []extract.Extractor
	weights validate.Weights
}

// Option configures a Manager
type Option func(*Manager)

// WithWeights overrides the confidence weights
func WithWeights(w validate.Weights) Option {
	return func(m *Manager) { m.weights = w }
}

// WithExtractors replaces the generic extractor chain
func WithExtractors(extractors ...extract.Extractor) Option {
	return func(m *Manager) { m.generic = extractors }
}

// NewManager creates a manager over the given ordered site scrapers
func NewManager(sites []SiteScraper, opts ...Option) *Manager {
	m := &Manager{
		sites:   sites,
		generic: extract.Generic(),
		weights: validate.DefaultWeights(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ScrapeRecipe extracts a recipe from the page at pageURL. doc may be nil, in which case
// rawHTML is parsed. The result never carries an error; failures are reported as issues
// with zero confidence.
func (m *Manager) ScrapeRecipe(pageURL string, doc *goquery.Document, rawHTML string) recipe.ScraperResult {
	if doc == nil {
		parsed, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
		if err != nil {
			return recipe.ScraperResult{
				Method: recipe.MethodError,
				Issues: []string{fmt.Sprintf("failed to parse HTML: %v", err)},
			}
		}
		doc = parsed
	}

	host := Hostname(pageURL)
	var issues []string
	siteMatched := false

	for _, site := range m.sites {
		if !site.CanHandle(host) {
			continue
		}
		siteMatched = true

		r, err := runSite(site, doc, rawHTML)
		if err == nil && r.HasTitle() {
			slog.Debug("Site scraper succeeded", "site", site.Name(), "host", host)
			return m.result(pageURL, r, recipe.MethodSiteSpecific, nil)
		}
		slog.Debug("Site scraper found nothing, trying generic extractors", "site", site.Name(), "error", err)
		issues = append(issues, fmt.Sprintf("site scraper %s found no recipe", site.Name()))
		break
	}

	for _, ex := range m.generic {
		r, err := runExtractor(ex, doc)
		if err != nil || !r.HasTitle() {
			slog.Debug("Extractor found nothing", "method", ex.Name(), "error", err)
			continue
		}
		slog.Debug("Extractor succeeded", "method", ex.Name(), "host", host)
		return m.result(pageURL, r, ex.Name(), issues)
	}

	if siteMatched {
		return recipe.ScraperResult{Method: recipe.MethodSiteSpecific, Issues: issues}
	}
	return recipe.ScraperResult{
		Method: recipe.MethodError,
		Issues: append(issues, "no structured recipe data found"),
	}
}

func (m *Manager) result(pageURL string, r *recipe.ScrapedRecipe, method recipe.Method, issues []string) recipe.ScraperResult {
	r.SourceURL = pageURL
	return recipe.ScraperResult{
		Recipe:     r,
		Confidence: m.weights.Score(r, method),
		Method:     method,
		Issues:     issues,
	}
}

// runSite recovers a panicking site scraper as "found nothing"
func runSite(site SiteScraper, doc *goquery.Document, rawHTML string) (r *recipe.ScrapedRecipe, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("Site scraper panicked", "site", site.Name(), "panic", p)
			r, err = nil, fmt.Errorf("site scraper %s panicked: %v", site.Name(), p)
		}
	}()
	return site.Scrape(doc, rawHTML)
}

func runExtractor(ex extract.Extractor, doc *goquery.Document) (r *recipe.ScrapedRecipe, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Warn("Extractor panicked", "method", ex.Name(), "panic", p)
			r, err = nil, fmt.Errorf("extractor %s panicked: %v", ex.Name(), p)
		}
	}()
	return ex.Extract(doc)
}
