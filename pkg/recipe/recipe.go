// Package recipe holds the canonical recipe shape shared by every stage of the import pipeline.
package recipe

import "time"

// Method names the strategy that produced a result
type Method string

// Extraction methods
const (
	MethodJSONLD       Method = "json-ld"
	MethodMicrodata    Method = "microdata"
	MethodSiteSpecific Method = "site-specific"
	MethodCSSSelector  Method = "css-selector"
	MethodCache        Method = "cache"
	MethodAIFallback   Method = "ai-fallback"
	MethodError        Method = "error"
)

// Status classifies how complete a recipe is
type Status string

// Completeness classes
const (
	StatusComplete    Status = "complete"
	StatusNeedsReview Status = "needs_review"
	StatusNotRecipe   Status = "not_recipe"
)

// Provenance tags where a cached recipe came from
type Provenance string

// Cache provenance values
const (
	ProvenanceScrape Provenance = "scrape"
	ProvenanceAI     Provenance = "ai"
)

// Defaults applied during validation
const (
	DefaultServings   = 4
	MinServings       = 1
	MaxServings       = 50
	DefaultDifficulty = "Medium"
	MaxTitleLength    = 200
)

// ScrapedRecipe is the canonical recipe record
type ScrapedRecipe struct {
	Title        string   `json:"title" yaml:"title"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty" yaml:"image_url,omitempty"`
	PrepTime     string   `json:"prepTime,omitempty" yaml:"prep_time,omitempty"`
	CookTime     string   `json:"cookTime,omitempty" yaml:"cook_time,omitempty"`
	TotalTime    string   `json:"totalTime,omitempty" yaml:"total_time,omitempty"`
	Servings     int      `json:"servings" yaml:"servings"`
	Difficulty   string   `json:"difficulty,omitempty" yaml:"difficulty,omitempty"`
	Ingredients  []string `json:"ingredients" yaml:"ingredients"`
	Instructions []string `json:"instructions" yaml:"instructions"`
	SourceURL    string   `json:"sourceUrl" yaml:"source_url"`
	Tags         []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// HasTitle reports whether the recipe carries a non-blank title
func (r *ScrapedRecipe) HasTitle() bool {
	return r != nil && trimmed(r.Title) != ""
}

// HasTiming reports whether any of the timing fields are set
func (r *ScrapedRecipe) HasTiming() bool {
	return r != nil && (r.PrepTime != "" || r.CookTime != "" || r.TotalTime != "")
}

// Emittable reports whether the recipe satisfies the minimum shape for emission:
// a title plus at least one ingredient or instruction.
func (r *ScrapedRecipe) Emittable() bool {
	return r.HasTitle() && (len(r.Ingredients) > 0 || len(r.Instructions) > 0)
}

// Clone returns a deep copy
func (r *ScrapedRecipe) Clone() *ScrapedRecipe {
	if r == nil {
		return nil
	}
	c := *r
	c.Ingredients = append([]string(nil), r.Ingredients...)
	c.Instructions = append([]string(nil), r.Instructions...)
	c.Tags = append([]string(nil), r.Tags...)
	return &c
}

// ScraperResult is the transient output of a scraping strategy
type ScraperResult struct {
	Recipe     *ScrapedRecipe `json:"recipe,omitempty"`
	Confidence float64        `json:"confidence"`
	Method     Method         `json:"method"`
	Issues     []string       `json:"issues,omitempty"`
}

// AddIssue appends a human readable issue
func (sr *ScraperResult) AddIssue(issue string) {
	sr.Issues = append(sr.Issues, issue)
}

// CacheEntry is a persisted recipe keyed by the normalized source URL hash
type CacheEntry struct {
	Key        string        `json:"key"`
	URL        string        `json:"url"`
	Recipe     ScrapedRecipe `json:"recipe"`
	Provenance Provenance    `json:"provenance"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Expired reports whether the entry is older than ttl at the given instant
func (e *CacheEntry) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.UpdatedAt) > ttl
}
