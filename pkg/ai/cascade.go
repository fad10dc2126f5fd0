// Package ai recovers recipes from pages the structured extractors could not handle by
// asking a hosted language model to read the page text.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/recipe-forge/pkg/jsonsafe"
	"github.com/lepinkainen/recipe-forge/pkg/metrics"
	"github.com/lepinkainen/recipe-forge/pkg/prompt"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
	"github.com/lepinkainen/recipe-forge/pkg/validate"
)

// Config configures the fallback cascade
type Config struct {
	Thresholds Thresholds
	Weights    validate.Weights
	MaxChars   int
}

// DefaultConfig returns the stock cascade configuration
func DefaultConfig() Config {
	return Config{
		Thresholds: DefaultThresholds(),
		Weights:    validate.DefaultWeights(),
		MaxChars:   DefaultMaxChars,
	}
}

// Request carries the page and whatever the scrapers already found
type Request struct {
	URL        string
	HTML       string
	Partial    *recipe.ScrapedRecipe
	Confidence float64
}

// Extraction is a recipe recovered by the model
type Extraction struct {
	Recipe     *recipe.ScrapedRecipe
	Status     recipe.Status
	Confidence float64
	Level      Level
	Attempt    string
	Duration   time.Duration
}

// Cascade runs a single model extraction at a level chosen from the partial signal
type Cascade struct {
	completer Completer
	renderer  *prompt.Renderer
	config    Config
}

// promptData is the template input for the extraction prompts
type promptData struct {
	URL   string
	Text  string
	Hints *recipe.ScrapedRecipe
}

// NewCascade creates a cascade. A nil completer yields a disabled cascade.
func NewCascade(completer Completer, cfg Config) *Cascade {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	return &Cascade{
		completer: completer,
		renderer:  prompt.NewRenderer(),
		config:    cfg,
	}
}

// Enabled reports whether a model is configured
func (c *Cascade) Enabled() bool {
	return c != nil && c.completer != nil
}

// Extract asks the model for the recipe on the page. The call is made once; timeouts,
// unparseable output and responses of the wrong shape are all returned as errors.
func (c *Cascade) Extract(ctx context.Context, req Request) (*Extraction, error) {
	if !c.Enabled() {
		return nil, ErrAIUnavailable
	}

	level := c.config.Thresholds.SelectLevel(req.Confidence, req.Partial.HasTitle(), req.Partial != nil)
	text := PageText(req.URL, req.HTML, c.config.MaxChars)

	data := promptData{URL: req.URL, Text: text}
	if level != LevelAggressive {
		data.Hints = req.Partial
	}

	promptText, err := c.renderer.Render(templateFor(level), data)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s prompt: %w", level, err)
	}

	slog.Debug("Requesting AI extraction", "url", req.URL, "level", level, "text_chars", len(text))
	start := time.Now()

	raw, err := c.completer.Complete(ctx, promptText)
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrModelTimeout) {
			outcome = "timeout"
		}
		metrics.AIRequestsTotal.WithLabelValues(string(level), outcome).Inc()
		return nil, fmt.Errorf("AI extraction (%s) failed: %w", level, err)
	}

	var obj map[string]any
	attempt, err := jsonsafe.Parse(raw, &obj)
	if err != nil {
		metrics.AIRequestsTotal.WithLabelValues(string(level), "parse_error").Inc()
		return nil, fmt.Errorf("AI extraction (%s) returned unusable JSON: %w", level, err)
	}
	if err := CheckSchema(obj); err != nil {
		metrics.AIRequestsTotal.WithLabelValues(string(level), "schema_error").Inc()
		return nil, fmt.Errorf("AI extraction (%s): %w", level, err)
	}

	draft := validate.NormalizeDraft(obj)
	r := draft.Recipe
	if r.SourceURL == "" {
		r.SourceURL = req.URL
	}
	if r.ImageURL == "" && req.Partial != nil {
		r.ImageURL = req.Partial.ImageURL
	}

	metrics.AIRequestsTotal.WithLabelValues(string(level), "success").Inc()
	ex := &Extraction{
		Recipe:     r,
		Status:     draft.Status,
		Confidence: c.config.Weights.Completeness(r),
		Level:      level,
		Attempt:    attempt,
		Duration:   time.Since(start),
	}
	slog.Debug("AI extraction succeeded", "url", req.URL, "level", level, "parse_attempt", attempt,
		"ingredients", len(r.Ingredients), "instructions", len(r.Instructions), "duration", ex.Duration)
	return ex, nil
}

func templateFor(level Level) string {
	switch level {
	case LevelFast:
		return prompt.ExtractFast
	case LevelAggressive:
		return prompt.ExtractAggressive
	default:
		return prompt.ExtractDetailed
	}
}
