package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// Selectors lists, per field, the CSS selectors to try in rank order
type Selectors struct {
	Title        []string `yaml:"title"`
	Description  []string `yaml:"description"`
	Image        []string `yaml:"image"`
	Ingredients  []string `yaml:"ingredients"`
	Instructions []string `yaml:"instructions"`
	PrepTime     []string `yaml:"prep_time"`
	CookTime     []string `yaml:"cook_time"`
	TotalTime    []string `yaml:"total_time"`
	Servings     []string `yaml:"servings"`
	Tags         []string `yaml:"tags"`
}

// DefaultSelectors covers the common recipe card plugins and hand-written layouts
var DefaultSelectors = Selectors{
	Title: []string{
		".wprm-recipe-name",
		".tasty-recipes-title",
		".mv-create-title",
		".recipe-title",
		"[class*=\"recipe-title\"]",
		"[class*=\"recipe\"] h1",
		"[class*=\"recipe\"] h2",
	},
	Description: []string{
		".wprm-recipe-summary",
		".tasty-recipes-description",
		".recipe-summary",
		".recipe-description",
	},
	Image: []string{
		".wprm-recipe-image img",
		".tasty-recipes-image img",
		".recipe-image img",
	},
	Ingredients: []string{
		".wprm-recipe-ingredient",
		".tasty-recipes-ingredients li",
		".mv-create-ingredients li",
		".recipe-ingredients li",
		".ingredients li",
		"ul[class*=\"ingredient\"] li",
		"[class*=\"ingredient-list\"] li",
		"[class*=\"ingredients\"] li",
	},
	Instructions: []string{
		".wprm-recipe-instruction-text",
		".tasty-recipes-instructions li",
		".mv-create-instructions li",
		".recipe-instructions li",
		".instructions li",
		"ol[class*=\"instruction\"] li",
		"[class*=\"instructions\"] li",
		"[class*=\"directions\"] li",
		"[class*=\"method\"] li",
		"[class*=\"preparation\"] li",
		"[class*=\"step\"] p",
	},
	PrepTime: []string{
		".wprm-recipe-prep_time",
		".tasty-recipes-prep-time",
		"[class*=\"prep-time\"]",
	},
	CookTime: []string{
		".wprm-recipe-cook_time",
		".tasty-recipes-cook-time",
		"[class*=\"cook-time\"]",
	},
	TotalTime: []string{
		".wprm-recipe-total_time",
		".tasty-recipes-total-time",
		"[class*=\"total-time\"]",
	},
	Servings: []string{
		".wprm-recipe-servings",
		".tasty-recipes-yield",
		"[class*=\"servings\"]",
		"[class*=\"yield\"]",
	},
	Tags: []string{
		".wprm-recipe-keyword",
		".tasty-recipes-keywords",
	},
}

// CSS extracts recipes with ranked selector heuristics. Title falls back to the first h1
// and then og:title.
type CSS struct {
	selectors Selectors
}

// NewCSS creates a heuristic extractor using DefaultSelectors
func NewCSS() *CSS {
	return &CSS{selectors: DefaultSelectors}
}

// NewCSSWithSelectors creates a heuristic extractor with custom selectors
func NewCSSWithSelectors(s Selectors) *CSS {
	return &CSS{selectors: s}
}

// Name implements Extractor
func (c *CSS) Name() recipe.Method {
	return recipe.MethodCSSSelector
}

// Extract implements Extractor
func (c *CSS) Extract(doc *goquery.Document) (*recipe.ScrapedRecipe, error) {
	r := ApplySelectors(doc, c.selectors)

	if r.Title == "" {
		r.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if r.Title == "" {
		r.Title = Meta(doc, "og:title")
	}
	if r.Description == "" {
		r.Description = Meta(doc, "og:description", "description")
	}
	if r.ImageURL == "" {
		r.ImageURL = Meta(doc, "og:image")
	}

	return Finalize(r)
}

// ApplySelectors fills a recipe from s without any fallbacks. Each field uses the first
// selector that matches non-empty text.
func ApplySelectors(doc *goquery.Document, s Selectors) *recipe.ScrapedRecipe {
	r := &recipe.ScrapedRecipe{
		Title:        firstText(doc, s.Title),
		Description:  firstText(doc, s.Description),
		ImageURL:     firstImageAttr(doc, s.Image),
		Ingredients:  allText(doc, s.Ingredients),
		Instructions: allText(doc, s.Instructions),
		PrepTime:     firstTimeText(doc, s.PrepTime),
		CookTime:     firstTimeText(doc, s.CookTime),
		TotalTime:    firstTimeText(doc, s.TotalTime),
	}
	if yield := firstText(doc, s.Servings); yield != "" {
		if n, ok := recipe.ParseYield(yield); ok {
			r.Servings = n
		}
	}
	for _, tag := range allText(doc, s.Tags) {
		r.Tags = append(r.Tags, splitList(tag)...)
	}
	return r
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if text := recipe.CollapseWhitespace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

func firstTimeText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if v := s.AttrOr("datetime", s.AttrOr("content", "")); v != "" {
			return v
		}
		if text := recipe.CollapseWhitespace(s.Text()); text != "" {
			return text
		}
	}
	return ""
}

func allText(doc *goquery.Document, selectors []string) []string {
	for _, sel := range selectors {
		var out []string
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := recipe.CollapseWhitespace(s.Text()); text != "" {
				out = append(out, text)
			}
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func firstImageAttr(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		s := doc.Find(sel).First()
		for _, attr := range []string{"src", "data-src", "data-lazy-src", "content"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
				return strings.TrimSpace(v)
			}
		}
	}
	return ""
}
