package ai

import (
	"fmt"
	"strings"
)

// CheckSchema verifies a decoded model response has the identity fields a recipe needs:
// a title, ingredient and instruction arrays, a name on every ingredient and text on
// every instruction. Plain string entries count as their own name or text.
func CheckSchema(obj map[string]any) error {
	var problems []string

	if title, _ := obj["title"].(string); strings.TrimSpace(title) == "" {
		problems = append(problems, "title is missing")
	}

	ingredients, ok := obj["ingredients"].([]any)
	if !ok {
		problems = append(problems, "ingredients must be an array")
	}
	for i, item := range ingredients {
		if !hasField(item, "name") {
			problems = append(problems, fmt.Sprintf("ingredient %d has no name", i+1))
		}
	}

	instructions, ok := obj["instructions"].([]any)
	if !ok {
		problems = append(problems, "instructions must be an array")
	}
	for i, item := range instructions {
		if !hasField(item, "text") {
			problems = append(problems, fmt.Sprintf("instruction %d has no text", i+1))
		}
	}

	if len(problems) > 0 {
		return &SchemaError{Problems: problems}
	}
	return nil
}

func hasField(item any, field string) bool {
	switch v := item.(type) {
	case string:
		return strings.TrimSpace(v) != ""
	case map[string]any:
		s, _ := v[field].(string)
		return strings.TrimSpace(s) != ""
	}
	return false
}
