// Package extract reads structured recipe data (JSON-LD, microdata and common markup) from HTML documents.
package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// ErrNoRecipe is returned when an extractor found nothing title-bearing
var ErrNoRecipe = errors.New("no recipe found")

// Extractor pulls a recipe out of a parsed document
type Extractor interface {
	Name() recipe.Method
	Extract(doc *goquery.Document) (*recipe.ScrapedRecipe, error)
}

// Generic returns the generic extractors in the order they should be tried
func Generic() []Extractor {
	return []Extractor{NewJSONLD(), NewMicrodata(), NewCSS()}
}

// Meta returns the content of the first <meta> whose name or property equals one of keys
func Meta(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		for _, attr := range []string{"property", "name", "itemprop"} {
			if v, ok := doc.Find(fmt.Sprintf(`meta[%s=%q]`, attr, key)).First().Attr("content"); ok {
				if v = strings.TrimSpace(v); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

func unique(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = recipe.CollapseWhitespace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}

// stringValue renders the scalar-ish JSON value v as text
func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		for _, key := range []string{"@value", "text", "name"} {
			if s := stringValue(val[key]); s != "" {
				return s
			}
		}
	case []any:
		for _, item := range val {
			if s := stringValue(item); s != "" {
				return s
			}
		}
	}
	return ""
}

func splitList(input string) []string {
	var out []string
	for _, t := range strings.FieldsFunc(input, func(r rune) bool { return r == ',' || r == ';' }) {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Finalize cleans an extracted recipe, rejecting one without a title
func Finalize(r *recipe.ScrapedRecipe) (*recipe.ScrapedRecipe, error) {
	r.Title = recipe.CleanText(r.Title)
	if r.Title == "" {
		return nil, ErrNoRecipe
	}
	r.Description = recipe.CleanText(r.Description)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	r.PrepTime = recipe.ParseDuration(r.PrepTime)
	r.CookTime = recipe.ParseDuration(r.CookTime)
	r.TotalTime = recipe.ParseDuration(r.TotalTime)

	ingredients := make([]string, 0, len(r.Ingredients))
	for _, ing := range r.Ingredients {
		if ing = recipe.CleanText(ing); ing != "" {
			ingredients = append(ingredients, ing)
		}
	}
	r.Ingredients = ingredients

	steps := make([]string, 0, len(r.Instructions))
	for _, step := range r.Instructions {
		if step = recipe.NormalizeStep(step); step != "" {
			steps = append(steps, step)
		}
	}
	r.Instructions = steps
	r.Tags = unique(r.Tags)
	return r, nil
}
