package validate

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

func TestStrictServingsClamp(t *testing.T) {
	tests := []struct {
		servings int
		expected int
	}{
		{servings: 0, expected: 4},
		{servings: -3, expected: 4},
		{servings: 1, expected: 1},
		{servings: 12, expected: 12},
		{servings: 50, expected: 50},
		{servings: 51, expected: 4},
		{servings: 500, expected: 4},
	}

	for _, tt := range tests {
		got, err := Strict(recipe.ScrapedRecipe{
			Title:       "Chili",
			Ingredients: []string{"beans"},
			Servings:    tt.servings,
		})
		if err != nil {
			t.Fatalf("Strict() error = %v", err)
		}
		if got.Servings != tt.expected {
			t.Errorf("servings %d clamped to %d, expected %d", tt.servings, got.Servings, tt.expected)
		}
	}
}

func TestStrictCleansFields(t *testing.T) {
	got, err := Strict(recipe.ScrapedRecipe{
		Title:        "  <b>Fish &amp; Chips</b> ",
		Ingredients:  []string{"<span>2 fillets</span>", "   "},
		Instructions: []string{"Fry the fish", "Serve&#33;"},
	})
	if err != nil {
		t.Fatalf("Strict() error = %v", err)
	}

	if got.Title != "Fish & Chips" {
		t.Errorf("Title = %q", got.Title)
	}
	if len(got.Ingredients) != 1 || got.Ingredients[0] != "2 fillets" {
		t.Errorf("Ingredients = %q", got.Ingredients)
	}
	if got.Instructions[0] != "Fry the fish." || got.Instructions[1] != "Serve!" {
		t.Errorf("Instructions = %q", got.Instructions)
	}
	if got.Difficulty != recipe.DefaultDifficulty {
		t.Errorf("Difficulty = %q", got.Difficulty)
	}
}

func TestStrictErrors(t *testing.T) {
	tests := []struct {
		name   string
		recipe recipe.ScrapedRecipe
		field  string
	}{
		{name: "missing title", recipe: recipe.ScrapedRecipe{Ingredients: []string{"salt"}}, field: "title"},
		{name: "tag-only title", recipe: recipe.ScrapedRecipe{Title: "<br>", Ingredients: []string{"salt"}}, field: "title"},
		{name: "title too long", recipe: recipe.ScrapedRecipe{Title: strings.Repeat("a", 201), Ingredients: []string{"salt"}}, field: "title"},
		{name: "no content", recipe: recipe.ScrapedRecipe{Title: "Empty"}, field: "content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Strict(tt.recipe)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, expected %q", vErr.Field, tt.field)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		recipe   *recipe.ScrapedRecipe
		expected recipe.Status
	}{
		{name: "nil", recipe: nil, expected: recipe.StatusNotRecipe},
		{name: "empty", recipe: &recipe.ScrapedRecipe{}, expected: recipe.StatusNotRecipe},
		{name: "title only", recipe: &recipe.ScrapedRecipe{Title: "Home"}, expected: recipe.StatusNotRecipe},
		{name: "ingredients only", recipe: &recipe.ScrapedRecipe{Ingredients: []string{"egg"}}, expected: recipe.StatusNotRecipe},
		{name: "instructions only", recipe: &recipe.ScrapedRecipe{Instructions: []string{"Boil."}}, expected: recipe.StatusNeedsReview},
		{name: "title and ingredients", recipe: &recipe.ScrapedRecipe{Title: "Eggs", Ingredients: []string{"egg"}}, expected: recipe.StatusNeedsReview},
		{
			name:     "complete",
			recipe:   &recipe.ScrapedRecipe{Title: "Eggs", Ingredients: []string{"egg"}, Instructions: []string{"Boil."}},
			expected: recipe.StatusComplete,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.recipe); got != tt.expected {
				t.Errorf("Classify() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestNormalizeDraftFromMap(t *testing.T) {
	draft := NormalizeDraft(map[string]any{
		"name":     "Omelette",
		"servings": "2 people",
		"ingredients": []any{
			map[string]any{"quantity": "3", "unit": "", "name": "eggs"},
			"pinch of salt",
		},
		"instructions": []any{
			map[string]any{"text": "1. Beat the eggs"},
			"Cook gently",
		},
	})

	if draft.Status != recipe.StatusComplete {
		t.Errorf("Status = %q", draft.Status)
	}
	r := draft.Recipe
	if r.Title != "Omelette" || r.Servings != 2 {
		t.Errorf("Title/Servings = %q/%d", r.Title, r.Servings)
	}
	if r.Ingredients[0] != "3 eggs" {
		t.Errorf("Ingredients = %q", r.Ingredients)
	}
	if r.Instructions[0] != "Beat the eggs." || r.Instructions[1] != "Cook gently." {
		t.Errorf("Instructions = %q", r.Instructions)
	}
}

func TestScore(t *testing.T) {
	w := DefaultWeights()
	full := &recipe.ScrapedRecipe{
		Title:        "Soup",
		ImageURL:     "https://example.com/soup.jpg",
		PrepTime:     "10min",
		Servings:     4,
		Ingredients:  []string{"water"},
		Instructions: []string{"Boil."},
	}

	tests := []struct {
		name     string
		recipe   *recipe.ScrapedRecipe
		method   recipe.Method
		expected float64
	}{
		{name: "complete json-ld capped", recipe: full, method: recipe.MethodJSONLD, expected: 1.0},
		{name: "complete microdata", recipe: full, method: recipe.MethodMicrodata, expected: 1.0},
		{name: "title only css", recipe: &recipe.ScrapedRecipe{Title: "Soup"}, method: recipe.MethodCSSSelector, expected: 0.05},
		{name: "title and ingredients site", recipe: &recipe.ScrapedRecipe{Title: "Soup", Ingredients: []string{"x"}}, method: recipe.MethodSiteSpecific, expected: 0.5},
		{name: "nil", recipe: nil, method: recipe.MethodCSSSelector, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.Score(tt.recipe, tt.method); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Score() = %v, expected %v", got, tt.expected)
			}
		})
	}
}
