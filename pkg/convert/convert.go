// Package convert rewrites imported recipes into kid-friendly versions behind the
// per-user conversion rate limit.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/jsonsafe"
	"github.com/lepinkainen/recipe-forge/pkg/prompt"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
	"github.com/lepinkainen/recipe-forge/pkg/validate"
)

// ErrUserRequired is returned when a conversion is requested without a user
var ErrUserRequired = errors.New("user ID is required")

// RateLimitError is returned when the user has used up their conversions
type RateLimitError struct {
	RetryAfter time.Duration
	Scope      string
	Message    string
}

func (e *RateLimitError) Error() string {
	return e.Message
}

func (e *RateLimitError) Unwrap() error {
	return ratelimit.ErrRateLimited
}

// RetryAfterMinutes returns the wait in whole minutes
func (e *RateLimitError) RetryAfterMinutes() int {
	return int(e.RetryAfter / time.Minute)
}

// Converted is a kid-friendly rewrite of a recipe
type Converted struct {
	Recipe    recipe.ScrapedRecipe `json:"recipe"`
	Status    recipe.Status        `json:"status"`
	Remaining int                  `json:"remaining"`
}

// Converter gates model conversions behind the limiter
type Converter struct {
	limiter   *ratelimit.Limiter
	completer ai.Completer
	renderer  *prompt.Renderer
}

// NewConverter creates a converter. A nil completer disables conversions.
func NewConverter(limiter *ratelimit.Limiter, completer ai.Completer) *Converter {
	return &Converter{
		limiter:   limiter,
		completer: completer,
		renderer:  prompt.NewRenderer(),
	}
}

// Convert spends one conversion from the user's quota and asks the model for the rewrite.
// Exhausted quotas return *RateLimitError; model failures are returned as-is.
func (c *Converter) Convert(ctx context.Context, userID string, r recipe.ScrapedRecipe) (*Converted, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if c.completer == nil {
		return nil, ai.ErrAIUnavailable
	}
	if _, err := validate.Strict(r); err != nil {
		return nil, fmt.Errorf("recipe cannot be converted: %w", err)
	}

	decision, err := c.limiter.Check(ctx, userID, ratelimit.ActionConversion)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		return nil, &RateLimitError{
			RetryAfter: decision.RetryAfter,
			Scope:      decision.Scope,
			Message:    decision.Message,
		}
	}

	promptText, err := c.renderer.Render(prompt.Convert, struct{ Recipe recipe.ScrapedRecipe }{Recipe: r})
	if err != nil {
		return nil, fmt.Errorf("failed to build conversion prompt: %w", err)
	}

	raw, err := c.completer.Complete(ctx, promptText)
	if err != nil {
		return nil, fmt.Errorf("conversion request failed: %w", err)
	}

	var obj map[string]any
	if _, err := jsonsafe.Parse(raw, &obj); err != nil {
		return nil, fmt.Errorf("conversion returned unusable JSON: %w", err)
	}
	if err := ai.CheckSchema(obj); err != nil {
		return nil, fmt.Errorf("conversion: %w", err)
	}

	draft := validate.NormalizeDraft(obj)
	out, err := validate.Strict(*draft.Recipe)
	if err != nil {
		return nil, fmt.Errorf("converted recipe is invalid: %w", err)
	}
	if out.SourceURL == "" {
		out.SourceURL = r.SourceURL
	}
	if out.ImageURL == "" {
		out.ImageURL = r.ImageURL
	}

	slog.Info("Recipe converted", "user", userID, "title", out.Title, "remaining", decision.Remaining)
	return &Converted{Recipe: out, Status: validate.Classify(&out), Remaining: decision.Remaining}, nil
}
