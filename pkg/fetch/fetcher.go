// Package fetch downloads recipe pages with retries, per-host politeness and charset handling.
package fetch

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

// DefaultMaxBodyBytes caps how much of a page is read
const DefaultMaxBodyBytes = 5 * 1024 * 1024

// Config configures a Fetcher
type Config struct {
	MaxBodyBytes int64
	PoliteDelay  time.Duration
	UserAgents   []string
	Main         Profile
	Light        Profile
}

// DefaultConfig returns the stock fetch configuration
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes: DefaultMaxBodyBytes,
		PoliteDelay:  time.Second,
		UserAgents:   DefaultUserAgents,
		Main:         MainProfile(),
		Light:        LightProfile(),
	}
}

// Page is a fetched and parsed HTML page
type Page struct {
	URL        string
	FinalURL   string
	HTML       string
	Doc        *goquery.Document
	StatusCode int
	Truncated  bool
}

// Fetcher downloads HTML pages
type Fetcher struct {
	client *http.Client
	config Config
	agents *agentPool
	hosts  *hostLimiter
}

// NewFetcher creates a new page fetcher
func NewFetcher(cfg Config) *Fetcher {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Main.Retry.MaxAttempts <= 0 {
		cfg.Main = MainProfile()
	}
	if cfg.Light.Retry.MaxAttempts <= 0 {
		cfg.Light = LightProfile()
	}

	return &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		config: cfg,
		agents: newAgentPool(cfg.UserAgents),
		hosts:  newHostLimiter(cfg.PoliteDelay),
	}
}

// Fetch downloads a page using the main profile
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	return f.FetchWithProfile(ctx, rawURL, f.config.Main)
}

// FetchLight downloads a page using the light profile
func (f *Fetcher) FetchLight(ctx context.Context, rawURL string) (*Page, error) {
	return f.FetchWithProfile(ctx, rawURL, f.config.Light)
}

// FetchWithProfile downloads a page, retrying retryable failures per the profile's policy.
// Failures are always returned as *FetchError.
func (f *Fetcher) FetchWithProfile(ctx context.Context, rawURL string, profile Profile) (*Page, error) {
	target, ferr := validateURL(rawURL)
	if ferr != nil {
		return nil, ferr
	}

	attempts := max(profile.Retry.MaxAttempts, 1)
	var lastErr *FetchError

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			backoff := profile.Retry.Backoff(attempt - 1)
			if lastErr.Code == CodeRateLimited {
				backoff *= 2
			}
			slog.Debug("Retrying page fetch",
				"url", rawURL,
				"profile", profile.Name,
				"attempt", attempt,
				"backoff", backoff,
				"lastError", lastErr)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, classify(ctx.Err())
			}
		}

		page, err := f.attempt(ctx, target, profile.Timeout)
		if err == nil {
			if attempt > 1 {
				slog.Debug("Page fetch succeeded after retry", "url", rawURL, "attempt", attempt)
			}
			return page, nil
		}

		lastErr = err
		if !err.Retryable || ctx.Err() != nil {
			slog.Debug("Page fetch error is not retryable, stopping", "url", rawURL, "attempt", attempt, "error", err)
			break
		}
	}

	return nil, lastErr
}

func validateURL(rawURL string) (*url.URL, *FetchError) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		e := newError(CodeInvalidURL, fmt.Sprintf("invalid URL: %q", rawURL), false)
		e.Err = err
		return nil, e
	}
	return u, nil
}

func (f *Fetcher) attempt(ctx context.Context, target *url.URL, timeout time.Duration) (*Page, *FetchError) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if err := f.hosts.Wait(ctx, target.Host); err != nil {
		return nil, classify(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, classify(err)
	}

	req.Header.Set("User-Agent", f.agents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("Cache-Control", "no-cache")

	slog.Debug("Fetching page", "url", target.String())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	lower := strings.ToLower(contentType)
	if contentType != "" && !strings.Contains(lower, "text/html") && !strings.Contains(lower, "application/xhtml") {
		e := newError(CodeNotHTML, fmt.Sprintf("not an HTML page: %s", contentType), false)
		e.StatusCode = resp.StatusCode
		return nil, e
	}

	var reader io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, classify(fmt.Errorf("failed to create gzip reader: %w", err))
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.config.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read response body: %w", err))
	}
	truncated := int64(len(body)) > f.config.MaxBodyBytes
	if truncated {
		body = body[:f.config.MaxBodyBytes]
		slog.Debug("Page body truncated", "url", target.String(), "limit", f.config.MaxBodyBytes)
	}

	htmlContent := convertToUTF8(body, contentType)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		e := newError(CodeUnknown, "failed to parse HTML", false)
		e.Err = err
		return nil, e
	}

	return &Page{
		URL:        target.String(),
		FinalURL:   resp.Request.URL.String(),
		HTML:       htmlContent,
		Doc:        doc,
		StatusCode: resp.StatusCode,
		Truncated:  truncated,
	}, nil
}

// convertToUTF8 decodes body using the charset from the content type or the document itself
func convertToUTF8(body []byte, contentType string) string {
	utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		slog.Warn("Failed to detect charset, assuming UTF-8", "error", err)
		return string(body)
	}

	utf8Bytes, err := io.ReadAll(utf8Reader)
	if err != nil {
		slog.Warn("Failed to convert page to UTF-8, using raw bytes", "error", err)
		return string(body)
	}
	return string(utf8Bytes)
}

// ParseHTML builds a Page from HTML the caller already has
func ParseHTML(pageURL, htmlContent string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Page{URL: pageURL, FinalURL: pageURL, HTML: htmlContent, Doc: doc}, nil
}
