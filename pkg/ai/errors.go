package ai

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrModelTimeout is returned when the completion endpoint does not answer in time
	ErrModelTimeout = errors.New("language model request timed out")
	// ErrAIUnavailable is returned when no model is configured
	ErrAIUnavailable = errors.New("AI fallback unavailable")
)

// SchemaError reports a model response that parsed as JSON but has the wrong shape
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("model response failed schema validation: %s", strings.Join(e.Problems, "; "))
}
