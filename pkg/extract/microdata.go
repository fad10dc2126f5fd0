package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// Microdata extracts recipes marked up with itemscope/itemprop attributes
type Microdata struct{}

// NewMicrodata creates a microdata extractor
func NewMicrodata() *Microdata {
	return &Microdata{}
}

// Name implements Extractor
func (m *Microdata) Name() recipe.Method {
	return recipe.MethodMicrodata
}

// Extract implements Extractor
func (m *Microdata) Extract(doc *goquery.Document) (*recipe.ScrapedRecipe, error) {
	scope := doc.Find(`[itemtype*="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		return nil, ErrNoRecipe
	}

	r := &recipe.ScrapedRecipe{
		Title:       propText(first(props(scope, "name"))),
		Description: propText(first(props(scope, "description"))),
		ImageURL:    propImage(first(props(scope, "image"))),
		PrepTime:    propTime(first(props(scope, "prepTime"))),
		CookTime:    propTime(first(props(scope, "cookTime"))),
		TotalTime:   propTime(first(props(scope, "totalTime"))),
	}

	ingredients := props(scope, "recipeIngredient")
	if len(ingredients) == 0 {
		ingredients = props(scope, "ingredients")
	}
	for _, s := range ingredients {
		r.Ingredients = append(r.Ingredients, propText(s))
	}

	for _, s := range props(scope, "recipeInstructions") {
		r.Instructions = append(r.Instructions, instructionSteps(s)...)
	}

	if yield := first(props(scope, "recipeYield")); yield != nil {
		value := yield.AttrOr("content", "")
		if value == "" {
			value = yield.Text()
		}
		if servings, ok := recipe.ParseYield(value); ok {
			r.Servings = servings
		}
	}

	for _, name := range []string{"keywords", "recipeCategory", "recipeCuisine"} {
		for _, s := range props(scope, name) {
			r.Tags = append(r.Tags, splitList(propText(s))...)
		}
	}

	return Finalize(r)
}

// props returns the elements carrying itemprop name that belong directly to scope,
// skipping properties of nested items such as an author Person.
func props(scope *goquery.Selection, name string) []*goquery.Selection {
	root := scope.Get(0)
	var out []*goquery.Selection
	scope.Find(fmt.Sprintf(`[itemprop~=%q]`, name)).Each(func(_ int, s *goquery.Selection) {
		owner := s.Parent().Closest("[itemscope]")
		if owner.Length() > 0 && owner.Get(0) != root {
			return
		}
		out = append(out, s)
	})
	return out
}

func first(sels []*goquery.Selection) *goquery.Selection {
	if len(sels) == 0 {
		return nil
	}
	return sels[0]
}

func propText(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	if v, ok := s.Attr("content"); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return s.Text()
}

func propImage(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	for _, attr := range []string{"src", "content", "href", "data-src"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	// ImageObject scope with a url property
	if u := s.Find(`[itemprop="url"]`).First(); u.Length() > 0 {
		return propImage(u)
	}
	if img := s.Find("img").First(); img.Length() > 0 {
		return propImage(img)
	}
	return ""
}

func propTime(s *goquery.Selection) string {
	if s == nil {
		return ""
	}
	for _, attr := range []string{"content", "datetime"} {
		if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return s.Text()
}

// instructionSteps splits one recipeInstructions element into steps: list items, nested
// HowToStep text properties, or the element text itself.
func instructionSteps(s *goquery.Selection) []string {
	var steps []string
	if texts := s.Find(`[itemprop="text"]`); texts.Length() > 0 {
		texts.Each(func(_ int, t *goquery.Selection) {
			steps = append(steps, t.Text())
		})
		return steps
	}
	if items := s.Find("li"); items.Length() > 0 {
		items.Each(func(_ int, li *goquery.Selection) {
			steps = append(steps, li.Text())
		})
		return steps
	}
	if paragraphs := s.Find("p"); paragraphs.Length() > 1 {
		paragraphs.Each(func(_ int, p *goquery.Selection) {
			steps = append(steps, p.Text())
		})
		return steps
	}
	return []string{propText(s)}
}
