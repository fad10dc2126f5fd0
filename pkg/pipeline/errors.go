package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/fetch"
	"github.com/lepinkainen/recipe-forge/pkg/jsonsafe"
	"github.com/lepinkainen/recipe-forge/pkg/ratelimit"
	"github.com/lepinkainen/recipe-forge/pkg/validate"
)

// Import error codes that are not fetch failures
const (
	CodeInvalidRequest = "invalid_request"
	CodeInvalidRecipe  = "invalid_recipe"
	CodeAIFailed       = "ai_failed"
	CodeAITimeout      = "ai_timeout"
	CodeAIUnavailable  = "ai_unavailable"
	CodeRateLimited    = "rate_limited"
	CodeCanceled       = "canceled"
	CodeInternal       = "internal"
)

// ImportError is an import failure that still carries whatever partial result was built
type ImportError struct {
	Code    string
	Message string
	Partial *Result
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Description is the caller-facing shape of any pipeline error
type Description struct {
	Code       string `json:"code" yaml:"code"`
	Message    string `json:"message" yaml:"message"`
	Suggestion string `json:"suggestion,omitempty" yaml:"suggestion,omitempty"`
	Retryable  bool   `json:"retryable" yaml:"retryable"`
	RetryAfter int    `json:"retry_after,omitempty" yaml:"retry_after,omitempty"`
}

type retryAfter interface {
	RetryAfterMinutes() int
}

// Describe maps err to a code, message, suggestion and retryable flag for display
func Describe(err error) Description {
	var (
		fetchErr  *fetch.FetchError
		schemaErr *ai.SchemaError
		parseErr  *jsonsafe.ParseError
		importErr *ImportError
		validErr  *validate.ValidationError
		wait      retryAfter
	)

	switch {
	case err == nil:
		return Description{}
	case errors.As(err, &fetchErr):
		return Description{
			Code:       string(fetchErr.Code),
			Message:    fetchErr.Message,
			Suggestion: fetchErr.Suggestion,
			Retryable:  fetchErr.Retryable,
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		d := Description{
			Code:       CodeRateLimited,
			Message:    err.Error(),
			Suggestion: "You have reached the limit for now. Try again later.",
			Retryable:  true,
		}
		if errors.As(err, &wait) {
			d.RetryAfter = wait.RetryAfterMinutes()
			d.Suggestion = fmt.Sprintf("You have reached the limit for now. Try again in %d minute(s).", d.RetryAfter)
		}
		return d
	case errors.Is(err, ai.ErrModelTimeout):
		return Description{
			Code:       CodeAITimeout,
			Message:    "the recipe assistant took too long to answer",
			Suggestion: "Try again in a moment, or enter the recipe manually.",
			Retryable:  true,
		}
	case errors.Is(err, ai.ErrAIUnavailable):
		return Description{
			Code:       CodeAIUnavailable,
			Message:    "the recipe assistant is not configured",
			Suggestion: "Enter the recipe manually.",
		}
	case errors.As(err, &schemaErr), errors.As(err, &parseErr):
		return Description{
			Code:       CodeAIFailed,
			Message:    "the recipe assistant returned an unusable answer",
			Suggestion: "Try again, or enter the recipe manually.",
			Retryable:  true,
		}
	case errors.As(err, &validErr):
		return Description{
			Code:       CodeInvalidRecipe,
			Message:    validErr.Error(),
			Suggestion: "Add a title and at least one ingredient or step.",
		}
	case errors.As(err, &importErr):
		return Description{
			Code:      importErr.Code,
			Message:   importErr.Message,
			Retryable: importErr.Code == CodeAIFailed,
		}
	case errors.Is(err, context.Canceled):
		return Description{Code: CodeCanceled, Message: "the request was canceled"}
	default:
		return Description{
			Code:       CodeInternal,
			Message:    err.Error(),
			Suggestion: "Try again. If the problem persists, enter the recipe manually.",
		}
	}
}
