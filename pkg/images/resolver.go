package images

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
)

// maxCandidates bounds the number of probes per page
const maxCandidates = 12

// Resolver picks the best verified image for a recipe page
type Resolver struct {
	prober *Prober
}

// NewResolver creates a resolver using prober for validation
func NewResolver(prober *Prober) *Resolver {
	return &Resolver{prober: prober}
}

// Resolve returns the first candidate in trust order that probes as a real photo
func (r *Resolver) Resolve(ctx context.Context, pageURL string, doc *goquery.Document) (string, bool) {
	candidates := Collect(pageURL, doc)
	if len(candidates) == 0 {
		slog.Debug("No image candidates", "url", pageURL)
		return "", false
	}
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	c, ok := r.prober.First(ctx, candidates)
	if !ok {
		slog.Debug("No image candidate passed validation", "url", pageURL, "candidates", len(candidates))
		return "", false
	}
	slog.Debug("Resolved recipe image", "url", pageURL, "image", c.URL, "source", c.Source)
	return c.URL, true
}
