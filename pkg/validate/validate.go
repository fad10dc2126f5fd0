// Package validate classifies and promotes extracted recipes.
//
// Two passes are provided. NormalizeDraft coerces loosely shaped data into a recipe and
// classifies its completeness; Strict cleans a recipe for final use and reports the first
// field that keeps it from being emitted.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// ValidationError describes why a recipe failed strict validation
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recipe %s: %s", e.Field, e.Reason)
}

// Draft is a normalized partial recipe together with its completeness class
type Draft struct {
	Recipe *recipe.ScrapedRecipe
	Status recipe.Status
}

// Classify assigns a completeness status. A record without any ingredients or
// instructions is not a recipe, even when the page had a title.
func Classify(r *recipe.ScrapedRecipe) recipe.Status {
	if r == nil {
		return recipe.StatusNotRecipe
	}
	hasTitle := r.HasTitle()
	hasIngredients := len(r.Ingredients) > 0
	hasInstructions := len(r.Instructions) > 0

	switch {
	case !hasTitle && !hasInstructions:
		return recipe.StatusNotRecipe
	case !hasIngredients && !hasInstructions:
		return recipe.StatusNotRecipe
	case hasTitle && hasIngredients && hasInstructions:
		return recipe.StatusComplete
	default:
		return recipe.StatusNeedsReview
	}
}

// NormalizeDraft coerces partial into the canonical shape and classifies it. partial may
// be a *recipe.ScrapedRecipe, a recipe.ScrapedRecipe or a decoded JSON object.
func NormalizeDraft(partial any) Draft {
	var r *recipe.ScrapedRecipe
	switch v := partial.(type) {
	case *recipe.ScrapedRecipe:
		r = v.Clone()
	case recipe.ScrapedRecipe:
		r = v.Clone()
	case map[string]any:
		r = fromMap(v)
	}
	if r == nil {
		r = &recipe.ScrapedRecipe{}
	}

	r.Title = recipe.CleanText(r.Title)
	r.Description = recipe.CleanText(r.Description)
	r.Ingredients = cleanList(r.Ingredients, recipe.CleanText)
	r.Instructions = cleanList(r.Instructions, recipe.NormalizeStep)
	if r.Servings < recipe.MinServings || r.Servings > recipe.MaxServings {
		r.Servings = recipe.DefaultServings
	}
	if strings.TrimSpace(r.Difficulty) == "" {
		r.Difficulty = recipe.DefaultDifficulty
	}

	return Draft{Recipe: r, Status: Classify(r)}
}

// Strict cleans r for final use: markup stripped, entities decoded, servings clamped,
// difficulty defaulted and instructions punctuated. The cleaned copy is returned even
// when validation fails so callers can keep the partial data.
func Strict(r recipe.ScrapedRecipe) (recipe.ScrapedRecipe, error) {
	out := *r.Clone()

	out.Title = recipe.CleanText(out.Title)
	out.Description = recipe.CleanText(out.Description)
	out.ImageURL = strings.TrimSpace(out.ImageURL)
	out.PrepTime = recipe.CleanText(out.PrepTime)
	out.CookTime = recipe.CleanText(out.CookTime)
	out.TotalTime = recipe.CleanText(out.TotalTime)
	out.Difficulty = recipe.CleanText(out.Difficulty)
	out.Ingredients = cleanList(out.Ingredients, recipe.CleanText)
	out.Instructions = cleanList(out.Instructions, func(s string) string {
		return recipe.EnsureTerminalPunctuation(recipe.CleanText(s))
	})
	out.Tags = cleanList(out.Tags, recipe.CleanText)

	if out.Servings < recipe.MinServings || out.Servings > recipe.MaxServings {
		out.Servings = recipe.DefaultServings
	}
	if out.Difficulty == "" {
		out.Difficulty = recipe.DefaultDifficulty
	}

	if out.Title == "" {
		return out, &ValidationError{Field: "title", Reason: "title is required"}
	}
	if utf8.RuneCountInString(out.Title) > recipe.MaxTitleLength {
		return out, &ValidationError{
			Field:  "title",
			Reason: fmt.Sprintf("title exceeds %d characters", recipe.MaxTitleLength),
		}
	}
	if len(out.Ingredients) == 0 && len(out.Instructions) == 0 {
		return out, &ValidationError{Field: "content", Reason: "at least one ingredient or instruction is required"}
	}
	return out, nil
}

func cleanList(in []string, clean func(string) string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = clean(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
