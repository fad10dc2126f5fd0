// Package pipeline turns a recipe URL into a validated recipe, escalating from the cache
// through the structured extractors to the language-model fallback only when needed.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/cache"
	"github.com/lepinkainen/recipe-forge/pkg/fetch"
	"github.com/lepinkainen/recipe-forge/pkg/metrics"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
	"github.com/lepinkainen/recipe-forge/pkg/scraper"
	"github.com/lepinkainen/recipe-forge/pkg/validate"
)

// IssueAIUnavailable is reported when a weak extraction could not be escalated
const IssueAIUnavailable = "AI fallback unavailable"

// PageFetcher downloads pages for the pipeline
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
	FetchLight(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// ImageResolver picks a verified hero image for a page
type ImageResolver interface {
	Resolve(ctx context.Context, pageURL string, doc *goquery.Document) (string, bool)
}

// Config holds the pipeline thresholds
type Config struct {
	AIFallback           float64 `mapstructure:"ai_fallback"`
	PrefetchedAIFallback float64 `mapstructure:"prefetched_ai_fallback"`
	ValidationPenalty    float64 `mapstructure:"validation_penalty"`
	RefetchForImages     bool    `mapstructure:"refetch_for_images"`
}

// DefaultConfig returns the stock thresholds
func DefaultConfig() Config {
	return Config{
		AIFallback:           0.3,
		PrefetchedAIFallback: 0.2,
		ValidationPenalty:    0.1,
		RefetchForImages:     true,
	}
}

// Request is a single import
type Request struct {
	URL    string `json:"url"`
	HTML   string `json:"html,omitempty"`
	UserID string `json:"user_id,omitempty"`
}

// Result is the outcome of an import
type Result struct {
	ID         string                `json:"id"`
	URL        string                `json:"url"`
	Recipe     *recipe.ScrapedRecipe `json:"recipe,omitempty"`
	Status     recipe.Status         `json:"status"`
	Confidence float64               `json:"confidence"`
	Method     recipe.Method         `json:"method"`
	Issues     []string              `json:"issues"`
	Cached     bool                  `json:"cached"`
	Level      ai.Level              `json:"level,omitempty"`
	Duration   time.Duration         `json:"duration_ns"`
}

// Importer runs the import pipeline
type Importer struct {
	scraper *scraper.Manager
	cache   *cache.Cache
	fetcher PageFetcher
	images  ImageResolver
	cascade *ai.Cascade
	config  Config
}

// Option configures an Importer
type Option func(*Importer)

// WithCache enables cache lookups and writes
func WithCache(c *cache.Cache) Option {
	return func(im *Importer) { im.cache = c }
}

// WithFetcher sets the page fetcher
func WithFetcher(f PageFetcher) Option {
	return func(im *Importer) { im.fetcher = f }
}

// WithImages enables hero image resolution
func WithImages(r ImageResolver) Option {
	return func(im *Importer) { im.images = r }
}

// WithCascade sets the language-model fallback
func WithCascade(c *ai.Cascade) Option {
	return func(im *Importer) { im.cascade = c }
}

// WithConfig overrides the thresholds
func WithConfig(cfg Config) Option {
	return func(im *Importer) { im.config = cfg }
}

// NewImporter creates an importer around the scraper manager
func NewImporter(m *scraper.Manager, opts ...Option) *Importer {
	im := &Importer{
		scraper: m,
		config:  DefaultConfig(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import runs a single URL through the pipeline. Fetch failures are returned as
// *fetch.FetchError; a failed model fallback is returned as *ImportError carrying the
// partial result. Weak results without an available model are returned, not errored.
func (im *Importer) Import(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	if req.URL == "" {
		return nil, &ImportError{Code: CodeInvalidRequest, Message: "a recipe URL is required"}
	}

	res := &Result{ID: uuid.NewString(), URL: req.URL}
	defer func() {
		res.Duration = time.Since(start)
	}()

	if im.cache != nil {
		if entry, ok := im.cache.Get(ctx, req.URL); ok {
			slog.Info("Recipe served from cache", "url", req.URL, "provenance", entry.Provenance)
			r := entry.Recipe
			res.Recipe = &r
			res.Status = validate.Classify(&r)
			res.Confidence = 1.0
			res.Method = recipe.MethodCache
			res.Cached = true
			im.record(res)
			return res, nil
		}
	}

	page, threshold, err := im.load(ctx, req)
	if err != nil {
		return nil, err
	}

	scraped := im.scraper.ScrapeRecipe(page.FinalURL, page.Doc, page.HTML)
	res.Method = scraped.Method
	res.Confidence = scraped.Confidence
	res.Issues = append(res.Issues, scraped.Issues...)

	validated := false
	if scraped.Recipe != nil {
		scraped.Recipe.SourceURL = req.URL
		cleaned, verr := validate.Strict(*scraped.Recipe)
		res.Recipe = &cleaned
		if verr != nil {
			res.Issues = append(res.Issues, verr.Error())
			res.Confidence = validate.Penalize(res.Confidence, im.config.ValidationPenalty)
		} else {
			validated = true
		}
	}

	if validated && res.Confidence >= threshold {
		im.resolveImage(ctx, req, page, res.Recipe)
		res.Status = validate.Classify(res.Recipe)
		im.store(ctx, req.URL, res, recipe.ProvenanceScrape)
		slog.Info("Recipe imported", "url", req.URL, "method", res.Method, "status", res.Status, "confidence", res.Confidence)
		im.record(res)
		return res, nil
	}

	slog.Debug("Extraction not acceptable", "url", req.URL, "validated", validated,
		"confidence", res.Confidence, "threshold", threshold)

	if !im.cascade.Enabled() {
		res.Issues = append(res.Issues, IssueAIUnavailable)
		res.Status = validate.Classify(res.Recipe)
		im.record(res)
		return res, nil
	}

	ex, err := im.cascade.Extract(ctx, ai.Request{
		URL:        req.URL,
		HTML:       page.HTML,
		Partial:    res.Recipe,
		Confidence: res.Confidence,
	})
	if err != nil {
		res.Status = validate.Classify(res.Recipe)
		slog.Warn("AI fallback failed", "url", req.URL, "error", err)
		metrics.ImportsTotal.WithLabelValues(string(recipe.MethodError), string(res.Status)).Inc()
		return nil, &ImportError{
			Code:    CodeAIFailed,
			Message: "the recipe could not be recovered from this page",
			Partial: res,
			Err:     err,
		}
	}

	res.Method = recipe.MethodAIFallback
	res.Level = ex.Level
	res.Confidence = ex.Confidence
	ex.Recipe.SourceURL = req.URL

	cleaned, verr := validate.Strict(*ex.Recipe)
	res.Recipe = &cleaned
	res.Status = validate.Classify(res.Recipe)
	if verr != nil {
		// Recipes that fail strict validation are handed back for review, never cached
		res.Issues = append(res.Issues, verr.Error())
		res.Confidence = validate.Penalize(res.Confidence, im.config.ValidationPenalty)
		if res.Status == recipe.StatusComplete {
			res.Status = recipe.StatusNeedsReview
		}
		slog.Warn("AI fallback result failed validation", "url", req.URL, "error", verr)
		im.record(res)
		return res, nil
	}
	im.store(ctx, req.URL, res, recipe.ProvenanceAI)

	slog.Info("Recipe recovered by AI fallback", "url", req.URL, "level", res.Level, "status", res.Status)
	im.record(res)
	return res, nil
}

// load returns the page to scrape and the confidence it must reach. Caller-supplied HTML
// skips the fetch and uses the lower threshold.
func (im *Importer) load(ctx context.Context, req Request) (*fetch.Page, float64, error) {
	if req.HTML != "" {
		page, err := fetch.ParseHTML(req.URL, req.HTML)
		if err != nil {
			return nil, 0, &ImportError{Code: CodeInvalidRequest, Message: "the supplied HTML could not be parsed", Err: err}
		}
		return page, im.config.PrefetchedAIFallback, nil
	}

	if im.fetcher == nil {
		return nil, 0, &ImportError{Code: CodeInvalidRequest, Message: "page HTML is required when fetching is disabled"}
	}
	page, err := im.fetcher.Fetch(ctx, req.URL)
	if err != nil {
		return nil, 0, err
	}
	return page, im.config.AIFallback, nil
}

// resolveImage replaces the recipe image with a verified one when the engine finds it.
// A fresh light fetch is preferred; the page already in hand is used when it fails.
func (im *Importer) resolveImage(ctx context.Context, req Request, page *fetch.Page, r *recipe.ScrapedRecipe) {
	if im.images == nil {
		return
	}

	doc := page.Doc
	if im.config.RefetchForImages && im.fetcher != nil {
		fresh, err := im.fetcher.FetchLight(ctx, req.URL)
		if err != nil {
			slog.Warn("Image re-fetch failed, using existing page", "url", req.URL, "error", err)
		} else {
			doc = fresh.Doc
		}
	}

	if img, ok := im.images.Resolve(ctx, req.URL, doc); ok {
		r.ImageURL = img
	}
}

// store caches complete and needs_review results
func (im *Importer) store(ctx context.Context, rawURL string, res *Result, provenance recipe.Provenance) {
	if im.cache == nil || res.Recipe == nil {
		return
	}
	if res.Status != recipe.StatusComplete && res.Status != recipe.StatusNeedsReview {
		return
	}
	im.cache.Put(ctx, rawURL, *res.Recipe, provenance)
}

func (im *Importer) record(res *Result) {
	metrics.ImportsTotal.WithLabelValues(string(res.Method), string(res.Status)).Inc()
}
