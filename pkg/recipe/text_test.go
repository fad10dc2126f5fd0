package recipe

import "testing"

func TestDecodeEntities(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "named", input: "Salt &amp; pepper", expected: "Salt & pepper"},
		{name: "decimal", input: "Caf&#233;", expected: "Café"},
		{name: "hex", input: "Caf&#xE9;", expected: "Café"},
		{name: "upper hex", input: "&#X1F355; night", expected: "🍕 night"},
		{name: "zero stays literal", input: "a&#0;b", expected: "a&#0;b"},
		{name: "out of range stays literal", input: "&#x110000;", expected: "&#x110000;"},
		{name: "no double decoding", input: "&amp;lt;", expected: "&lt;"},
		{name: "unknown named entity", input: "&bogus;", expected: "&bogus;"},
		{name: "no entities", input: "plain text", expected: "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeEntities(tt.input); got != tt.expected {
				t.Errorf("DecodeEntities(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("  <p>2 cups <b>flour</b>&nbsp;sifted</p>\n")
	expected := "2 cups flour  sifted"
	if got != CollapseWhitespace(expected) {
		t.Errorf("CleanText() = %q, expected %q", got, CollapseWhitespace(expected))
	}
}

func TestEnsureTerminalPunctuation(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Mix well", "Mix well."},
		{"Mix well.", "Mix well."},
		{"Serve!", "Serve!"},
		{"Done?", "Done?"},
		{"Wait…", "Wait…"},
		{"  trailing space  ", "trailing space."},
		{"", ""},
	}

	for _, tt := range tests {
		if got := EnsureTerminalPunctuation(tt.input); got != tt.expected {
			t.Errorf("EnsureTerminalPunctuation(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeStep(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1. Preheat the oven", "Preheat the oven."},
		{"Step 2: Mix the flour", "Mix the flour."},
		{"3) Bake for 20 minutes", "Bake for 20 minutes."},
		{"1.5 cups of stock go in", "1.5 cups of stock go in."},
		{"<p>Whisk &amp; fold</p>", "Whisk & fold."},
		{"Step 4", "Step 4."},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeStep(tt.input); got != tt.expected {
			t.Errorf("NormalizeStep(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"PT15M", "15min"},
		{"PT1H", "1h"},
		{"PT1H30M", "1h 30min"},
		{"PT90M", "1h 30min"},
		{"P0DT2H5M", "2h 5min"},
		{"pt45m", "45min"},
		{"PT0M", ""},
		{"20 minutes", "20 minutes"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ParseDuration(tt.input); got != tt.expected {
			t.Errorf("ParseDuration(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestParseYield(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected int
		ok       bool
	}{
		{name: "integer string", input: "4", expected: 4, ok: true},
		{name: "number", input: float64(6), expected: 6, ok: true},
		{name: "servings text", input: "Serves 8 people", expected: 8, ok: true},
		{name: "fraction", input: "1/2", expected: 1, ok: true},
		{name: "mixed number", input: "1 1/2 dozen", expected: 2, ok: true},
		{name: "range averaged", input: "2-3", expected: 3, ok: true},
		{name: "range with words", input: "Serves 4 to 6", expected: 5, ok: true},
		{name: "approximate", input: "about 10 cookies", expected: 10, ok: true},
		{name: "array first parsable", input: []any{"a batch", "12 muffins"}, expected: 12, ok: true},
		{name: "quantitative value", input: map[string]any{"value": float64(3)}, expected: 3, ok: true},
		{name: "no number", input: "one loaf", expected: 0, ok: false},
		{name: "nil", input: nil, expected: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseYield(tt.input)
			if got != tt.expected || ok != tt.ok {
				t.Errorf("ParseYield(%v) = (%d, %v), expected (%d, %v)", tt.input, got, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestScrapedRecipeEmittable(t *testing.T) {
	tests := []struct {
		name     string
		recipe   *ScrapedRecipe
		expected bool
	}{
		{name: "nil", recipe: nil, expected: false},
		{name: "title only", recipe: &ScrapedRecipe{Title: "Soup"}, expected: false},
		{name: "title and ingredient", recipe: &ScrapedRecipe{Title: "Soup", Ingredients: []string{"water"}}, expected: true},
		{name: "title and step", recipe: &ScrapedRecipe{Title: "Soup", Instructions: []string{"Boil."}}, expected: true},
		{name: "blank title", recipe: &ScrapedRecipe{Title: "  ", Ingredients: []string{"water"}}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.recipe.Emittable(); got != tt.expected {
				t.Errorf("Emittable() = %v, expected %v", got, tt.expected)
			}
		})
	}
}
