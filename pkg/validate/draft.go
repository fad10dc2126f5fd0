package validate

import (
	"strconv"
	"strings"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// fromMap reads a recipe out of a loosely typed JSON object, accepting the common
// camelCase and snake_case spellings.
func fromMap(m map[string]any) *recipe.ScrapedRecipe {
	r := &recipe.ScrapedRecipe{
		Title:        str(m, "title", "name"),
		Description:  str(m, "description", "summary"),
		ImageURL:     str(m, "imageUrl", "image_url", "image"),
		PrepTime:     str(m, "prepTime", "prep_time"),
		CookTime:     str(m, "cookTime", "cook_time"),
		TotalTime:    str(m, "totalTime", "total_time"),
		Difficulty:   str(m, "difficulty"),
		SourceURL:    str(m, "sourceUrl", "source_url", "url"),
		Ingredients:  list(first(m, "ingredients", "recipeIngredient"), IngredientLine),
		Instructions: list(first(m, "instructions", "steps", "recipeInstructions"), instructionText),
		Tags:         list(first(m, "tags", "keywords"), func(v any) string { s, _ := v.(string); return s }),
	}
	if n, ok := recipe.ParseYield(first(m, "servings", "recipeYield", "yield")); ok {
		r.Servings = n
	}
	return r
}

func first(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func str(m map[string]any, keys ...string) string {
	switch v := first(m, keys...).(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func list(v any, item func(any) string) []string {
	var out []string
	switch val := v.(type) {
	case []any:
		for _, entry := range val {
			if s := strings.TrimSpace(item(entry)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, line := range strings.Split(val, "\n") {
			if s := strings.TrimSpace(line); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// IngredientLine renders a structured ingredient as "quantity unit name", trimmed.
// Plain strings are returned as-is.
func IngredientLine(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		name := str(val, "name", "item", "text")
		parts := make([]string, 0, 3)
		for _, p := range []string{str(val, "quantity", "amount"), str(val, "unit"), name} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		return strings.Join(parts, " ")
	}
	return ""
}

func instructionText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		return str(val, "text", "instruction", "description", "name")
	}
	return ""
}
