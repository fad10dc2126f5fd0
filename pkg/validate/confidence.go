package validate

import "github.com/lepinkainen/recipe-forge/pkg/recipe"

// Weights configures completeness scoring
type Weights struct {
	Title        float64 `mapstructure:"title"`
	Ingredients  float64 `mapstructure:"ingredients"`
	Instructions float64 `mapstructure:"instructions"`
	Image        float64 `mapstructure:"image"`
	Timing       float64 `mapstructure:"timing"`
	Servings     float64 `mapstructure:"servings"`
	JSONLDBonus  float64 `mapstructure:"jsonld_bonus"`
	CSSPenalty   float64 `mapstructure:"css_penalty"`
	SiteBonus    float64 `mapstructure:"site_bonus"`
}

// DefaultWeights returns the stock scoring weights
func DefaultWeights() Weights {
	return Weights{
		Title:        0.15,
		Ingredients:  0.30,
		Instructions: 0.30,
		Image:        0.10,
		Timing:       0.10,
		Servings:     0.05,
		JSONLDBonus:  0.10,
		CSSPenalty:   0.10,
		SiteBonus:    0.05,
	}
}

// Completeness scores r from the fields it carries, without any origin adjustment
func (w Weights) Completeness(r *recipe.ScrapedRecipe) float64 {
	if r == nil {
		return 0
	}
	var score float64
	if r.HasTitle() {
		score += w.Title
	}
	if len(r.Ingredients) > 0 {
		score += w.Ingredients
	}
	if len(r.Instructions) > 0 {
		score += w.Instructions
	}
	if r.ImageURL != "" {
		score += w.Image
	}
	if r.HasTiming() {
		score += w.Timing
	}
	if r.Servings > 0 {
		score += w.Servings
	}
	return clamp(score)
}

// Score is Completeness adjusted for how trustworthy the extraction method is
func (w Weights) Score(r *recipe.ScrapedRecipe, method recipe.Method) float64 {
	score := w.Completeness(r)
	switch method {
	case recipe.MethodJSONLD:
		score += w.JSONLDBonus
	case recipe.MethodCSSSelector:
		score -= w.CSSPenalty
	case recipe.MethodSiteSpecific:
		score += w.SiteBonus
	}
	return clamp(score)
}

// Penalize lowers confidence by amount, never below zero
func Penalize(confidence, amount float64) float64 {
	return clamp(confidence - amount)
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
