package jsonsafe

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// snippetLength is how much of the offending content a ParseError keeps
const snippetLength = 500

// repair turns raw model output into a candidate JSON document
type repair struct {
	name string
	fn   func(string) (string, error)
}

// repairs are tried in order; the first candidate that decodes wins
var repairs = []repair{
	{name: "raw", fn: func(s string) (string, error) { return strings.TrimSpace(s), nil }},
	{name: "sanitized", fn: func(s string) (string, error) { return Sanitize(s), nil }},
	{name: "outer-braces", fn: outerBraces},
	{name: "balanced-object", fn: balancedObject},
}

// ParseError is returned when none of the repair attempts produced valid JSON
type ParseError struct {
	Attempts []error
	Snippet  string
}

func (e *ParseError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, err := range e.Attempts {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("unable to parse JSON after %d attempts (%s); content: %s",
		len(e.Attempts), strings.Join(msgs, "; "), e.Snippet)
}

func (e *ParseError) Unwrap() []error {
	return e.Attempts
}

// Parse decodes content into target, repairing common language-model mistakes.
// It returns the name of the attempt that succeeded.
func Parse(content string, target any) (string, error) {
	var attempts []error

	for i, r := range repairs {
		candidate, err := r.fn(content)
		if err != nil {
			attempts = append(attempts, fmt.Errorf("attempt %d (%s): %w", i+1, r.name, err))
			continue
		}
		if !json.Valid([]byte(candidate)) {
			attempts = append(attempts, fmt.Errorf("attempt %d (%s): %w", i+1, r.name, syntaxError(candidate)))
			continue
		}
		if err := json.Unmarshal([]byte(candidate), target); err != nil {
			// Valid JSON of the wrong shape will not improve with further repairs
			attempts = append(attempts, fmt.Errorf("attempt %d (%s): failed to decode JSON: %w", i+1, r.name, err))
			return r.name, &ParseError{Attempts: attempts, Snippet: snippet(content)}
		}
		if i > 0 {
			slog.Debug("Parsed repaired JSON", "attempt", r.name)
		}
		return r.name, nil
	}

	return "", &ParseError{Attempts: attempts, Snippet: snippet(content)}
}

func syntaxError(candidate string) error {
	var v any
	if err := json.Unmarshal([]byte(candidate), &v); err != nil {
		return err
	}
	return errors.New("invalid JSON")
}

func snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLength {
		return content
	}
	return string(runes[:snippetLength])
}

// outerBraces keeps the text between the first '{' and the last '}'
func outerBraces(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", errors.New("no JSON object found")
	}
	return Sanitize(s[start : end+1]), nil
}

// balancedObject scans from the first '{' tracking depth outside strings and keeps the first
// complete object.
func balancedObject(s string) (string, error) {
	start := strings.Index(s, "{")
	if start < 0 {
		return "", errors.New("no JSON object found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return Sanitize(s[start : i+1]), nil
			}
		}
	}
	return "", errors.New("unbalanced braces")
}
