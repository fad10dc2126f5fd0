package extract

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/recipe-forge/pkg/jsonsafe"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// maxDepth bounds the JSON-LD graph walk
const maxDepth = 32

var breakRe = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|\r?\n`)

// priorityKeys are visited before any other nested value of a node
var priorityKeys = []string{"@graph", "mainEntity", "mainEntityOfPage", "itemListElement"}

// JSONLD extracts schema.org Recipe nodes from ld+json script blocks
type JSONLD struct{}

// NewJSONLD creates a JSON-LD extractor
func NewJSONLD() *JSONLD {
	return &JSONLD{}
}

// Name implements Extractor
func (j *JSONLD) Name() recipe.Method {
	return recipe.MethodJSONLD
}

// Extract implements Extractor
func (j *JSONLD) Extract(doc *goquery.Document) (*recipe.ScrapedRecipe, error) {
	for _, block := range Blocks(doc) {
		node, ok := FindRecipe(block)
		if !ok {
			continue
		}
		r, err := Finalize(decodeRecipe(node))
		if err != nil {
			slog.Debug("JSON-LD recipe node without title, continuing")
			continue
		}
		return r, nil
	}
	return nil, ErrNoRecipe
}

// Blocks decodes every ld+json script in the document. Slightly broken blocks get one
// lenient retry through the JSON sanitizer; blocks that still fail are skipped.
func Blocks(doc *goquery.Document) []any {
	var blocks []any
	doc.Find(`script[type*="ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		body := strings.TrimSpace(s.Text())
		if body == "" {
			return
		}

		var payload any
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			if err := json.Unmarshal([]byte(jsonsafe.Sanitize(body)), &payload); err != nil {
				slog.Debug("Skipping undecodable JSON-LD block", "error", err)
				return
			}
		}
		blocks = append(blocks, payload)
	})
	return blocks
}

type workItem struct {
	value any
	depth int
}

// FindRecipe walks data breadth-first and returns the first node whose @type is or
// includes Recipe. Nodes deeper than maxDepth are not visited.
func FindRecipe(data any) (map[string]any, bool) {
	queue := []workItem{{value: data}}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth > maxDepth {
			continue
		}

		switch v := item.value.(type) {
		case map[string]any:
			if IsType(v, "Recipe") {
				return v, true
			}
			for _, key := range nestedKeys(v) {
				queue = append(queue, workItem{value: v[key], depth: item.depth + 1})
			}
		case []any:
			for _, child := range v {
				queue = append(queue, workItem{value: child, depth: item.depth + 1})
			}
		}
	}
	return nil, false
}

// nestedKeys lists the container-valued keys of m, priority keys first then the rest sorted
func nestedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	seen := make(map[string]bool, len(priorityKeys))
	for _, k := range priorityKeys {
		if isContainer(m[k]) {
			keys = append(keys, k)
			seen[k] = true
		}
	}

	var rest []string
	for k, v := range m {
		if !seen[k] && isContainer(v) {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// IsType reports whether the node's @type equals or contains typeName
func IsType(node map[string]any, typeName string) bool {
	switch t := node["@type"].(type) {
	case string:
		return matchesType(t, typeName)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && matchesType(s, typeName) {
				return true
			}
		}
	}
	return false
}

func matchesType(value, typeName string) bool {
	value = strings.TrimPrefix(strings.TrimPrefix(value, "http://schema.org/"), "https://schema.org/")
	value = strings.TrimPrefix(value, "schema:")
	return strings.EqualFold(value, typeName)
}

func decodeRecipe(m map[string]any) *recipe.ScrapedRecipe {
	title := stringValue(m["name"])
	if title == "" {
		title = stringValue(m["headline"])
	}

	ingredients := m["recipeIngredient"]
	if ingredients == nil {
		ingredients = m["ingredients"]
	}

	r := &recipe.ScrapedRecipe{
		Title:        title,
		Description:  stringValue(m["description"]),
		ImageURL:     FirstImage(m["image"]),
		PrepTime:     stringValue(m["prepTime"]),
		CookTime:     stringValue(m["cookTime"]),
		TotalTime:    stringValue(m["totalTime"]),
		Ingredients:  parseIngredients(ingredients),
		Instructions: parseInstructions(m["recipeInstructions"], 0),
		SourceURL:    stringValue(m["url"]),
		Tags:         parseTags(m["keywords"], m["recipeCategory"], m["recipeCuisine"]),
	}
	if servings, ok := recipe.ParseYield(m["recipeYield"]); ok {
		r.Servings = servings
	}
	return r
}

// FirstImage returns the first usable URL from a schema.org image value
func FirstImage(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		for _, key := range []string{"url", "contentUrl", "@id"} {
			if u, ok := val[key].(string); ok && strings.TrimSpace(u) != "" {
				return strings.TrimSpace(u)
			}
		}
	case []any:
		for _, item := range val {
			if u := FirstImage(item); u != "" {
				return u
			}
		}
	}
	return ""
}

func parseIngredients(v any) []string {
	var out []string
	switch val := v.(type) {
	case string:
		out = append(out, splitLines(val)...)
	case []any:
		for _, item := range val {
			switch ing := item.(type) {
			case string:
				out = append(out, ing)
			case map[string]any:
				for _, key := range []string{"text", "name", "item"} {
					if s := stringValue(ing[key]); s != "" {
						out = append(out, s)
						break
					}
				}
			}
		}
	}
	return out
}

// parseInstructions flattens every instruction shape schema.org allows (plain text, lists,
// HowToStep, HowToSection and nested ItemList elements) into ordered step strings.
func parseInstructions(v any, depth int) []string {
	if depth > maxDepth {
		return nil
	}

	var steps []string
	switch val := v.(type) {
	case string:
		steps = append(steps, splitLines(val)...)
	case []any:
		for _, item := range val {
			steps = append(steps, parseInstructions(item, depth+1)...)
		}
	case map[string]any:
		if nested, ok := val["itemListElement"]; ok {
			return parseInstructions(nested, depth+1)
		}
		text := stringValue(val["text"])
		if text == "" {
			if item, ok := val["item"]; ok {
				return parseInstructions(item, depth+1)
			}
			text = stringValue(val["name"])
		}
		if text == "" {
			text = stringValue(val["description"])
		}
		if text != "" {
			steps = append(steps, splitLines(text)...)
		}
	}
	return steps
}

// splitLines splits text on line and paragraph breaks, dropping empty parts
func splitLines(s string) []string {
	var out []string
	for _, part := range breakRe.Split(s, -1) {
		if part = recipe.CleanText(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseTags(values ...any) []string {
	var tags []string
	for _, v := range values {
		switch val := v.(type) {
		case string:
			tags = append(tags, splitList(val)...)
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					tags = append(tags, splitList(s)...)
				}
			}
		}
	}
	return tags
}
