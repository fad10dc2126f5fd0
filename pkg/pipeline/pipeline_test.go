package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/lepinkainen/recipe-forge/pkg/ai"
	"github.com/lepinkainen/recipe-forge/pkg/cache"
	"github.com/lepinkainen/recipe-forge/pkg/database"
	"github.com/lepinkainen/recipe-forge/pkg/fetch"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
	"github.com/lepinkainen/recipe-forge/pkg/scraper"
)

const recipeAPage = `<html><head><title>Recipe A</title>
<script type="application/ld+json">{
  "@context": "https://schema.org",
  "@type": "Recipe",
  "name": "Weeknight Chili",
  "image": "https://example.com/chili.jpg",
  "recipeYield": "6 servings",
  "prepTime": "PT15M",
  "cookTime": "PT45M",
  "recipeIngredient": ["1 lb beef", "1 onion", "2 cloves garlic", "1 can beans",
    "1 can tomatoes", "2 tbsp chili powder", "1 tsp cumin", "salt"],
  "recipeInstructions": [
    {"@type": "HowToStep", "text": "Brown the beef"},
    {"@type": "HowToStep", "text": "Add the onion and garlic"},
    {"@type": "HowToStep", "text": "Stir in the spices"},
    {"@type": "HowToStep", "text": "Add beans and tomatoes"},
    {"@type": "HowToStep", "text": "Simmer for 40 minutes"},
    {"@type": "HowToStep", "text": "Season and serve"}
  ]
}</script></head><body><h1>Weeknight Chili</h1></body></html>`

const titleOnlyPage = `<html><head><title>About us</title></head>
<body><h1>Our family story</h1><p>We have been cooking for decades.</p></body></html>`

const weakPage = `<html><head><title>Grandma's stew</title></head>
<body><h1>Grandma's stew</h1><p>You need 2 potatoes and 1 carrot, among other things.
Peel, chop and simmer everything with the beef for two hours.</p></body></html>`

const aiStew = `{
  "title": "Grandma's Stew",
  "servings": 6,
  "ingredients": [
    {"name": "potatoes", "quantity": "2"}, {"name": "carrot", "quantity": "1"},
    {"name": "beef", "quantity": "500", "unit": "g"}, {"name": "onion", "quantity": "1"},
    {"name": "stock", "quantity": "1", "unit": "l"}, {"name": "bay leaf", "quantity": "1"},
    {"name": "salt"}, {"name": "pepper"}
  ],
  "instructions": [
    {"step": 1, "text": "Peel the vegetables"}, {"step": 2, "text": "Chop everything"},
    {"step": 3, "text": "Brown the beef"}, {"step": 4, "text": "Add stock"},
    {"step": 5, "text": "Simmer for two hours"}, {"step": 6, "text": "Season to taste"},
    {"step": 7, "text": "Remove the bay leaf"}, {"step": 8, "text": "Serve hot"}
  ]
}`

type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	calls  int
	light  int
	failOn map[string]error
}

func (f *fakeFetcher) page(rawURL string) (*fetch.Page, error) {
	if err, ok := f.failOn[rawURL]; ok {
		return nil, err
	}
	html, ok := f.pages[rawURL]
	if !ok {
		return nil, &fetch.FetchError{Code: fetch.CodeNotFound, Message: "page not found", StatusCode: 404}
	}
	return fetch.ParseHTML(rawURL, html)
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*fetch.Page, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.page(rawURL)
}

func (f *fakeFetcher) FetchLight(_ context.Context, rawURL string) (*fetch.Page, error) {
	f.mu.Lock()
	f.light++
	f.mu.Unlock()
	return f.page(rawURL)
}

type fakeImages struct {
	image string
	calls int
}

func (f *fakeImages) Resolve(_ context.Context, _ string, _ *goquery.Document) (string, bool) {
	f.calls++
	return f.image, f.image != ""
}

type fakeCompleter struct {
	response string
	err      error
	calls    int
}

func (f *fakeCompleter) Complete(context.Context, string) (string, error) {
	f.calls++
	return f.response, f.err
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	db, err := database.NewDatabase(database.Config{Path: filepath.Join(t.TempDir(), "pipeline.db")})
	if err != nil {
		t.Fatalf("NewDatabase() error = %v", err)
	}
	store, err := cache.NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	c := cache.New(store, cache.DefaultTTL)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type fixture struct {
	importer  *Importer
	cache     *cache.Cache
	fetcher   *fakeFetcher
	images    *fakeImages
	completer *fakeCompleter
}

func newFixture(t *testing.T, pages map[string]string, completer *fakeCompleter) *fixture {
	t.Helper()
	f := &fixture{
		cache:     newTestCache(t),
		fetcher:   &fakeFetcher{pages: pages},
		images:    &fakeImages{},
		completer: completer,
	}

	var model ai.Completer
	if completer != nil {
		model = completer
	}
	cascade := ai.NewCascade(model, ai.DefaultConfig())

	f.importer = NewImporter(scraper.NewManager(nil),
		WithCache(f.cache),
		WithFetcher(f.fetcher),
		WithImages(f.images),
		WithCascade(cascade),
	)
	return f
}

func TestImportJSONLDComplete(t *testing.T) {
	const pageURL = "https://example.com/recipe-a"
	f := newFixture(t, map[string]string{pageURL: recipeAPage}, nil)
	f.images.image = "https://example.com/chili-hero.jpg"

	res, err := f.importer.Import(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}

	if res.Status != recipe.StatusComplete {
		t.Errorf("Status = %s, expected complete", res.Status)
	}
	if res.Method != recipe.MethodJSONLD {
		t.Errorf("Method = %s, expected json-ld", res.Method)
	}
	if res.Confidence < 0.8 {
		t.Errorf("Confidence = %v, expected >= 0.8", res.Confidence)
	}
	if len(res.Recipe.Ingredients) != 8 || len(res.Recipe.Instructions) != 6 {
		t.Errorf("got %d ingredients and %d instructions", len(res.Recipe.Ingredients), len(res.Recipe.Instructions))
	}
	if res.Recipe.ImageURL != "https://example.com/chili-hero.jpg" {
		t.Errorf("ImageURL = %q, expected resolved image", res.Recipe.ImageURL)
	}
	if res.Recipe.Servings != 6 || res.Recipe.PrepTime != "15min" {
		t.Errorf("Servings = %d, PrepTime = %q", res.Recipe.Servings, res.Recipe.PrepTime)
	}
	if f.fetcher.light != 1 {
		t.Errorf("expected one light re-fetch for images, got %d", f.fetcher.light)
	}
	if res.ID == "" {
		t.Error("result should carry an ID")
	}

	if _, ok := f.cache.Get(context.Background(), pageURL); !ok {
		t.Error("complete result should be cached")
	}
}

func TestImportCacheHit(t *testing.T) {
	const pageURL = "https://example.com/recipe-a"
	f := newFixture(t, map[string]string{}, &fakeCompleter{response: aiStew})

	cached := recipe.ScrapedRecipe{
		Title:        "Cached Chili",
		Servings:     4,
		Ingredients:  []string{"beans"},
		Instructions: []string{"Cook."},
		SourceURL:    pageURL,
	}
	f.cache.Put(context.Background(), pageURL, cached, recipe.ProvenanceScrape)

	for i := 0; i < 2; i++ {
		res, err := f.importer.Import(context.Background(), Request{URL: pageURL + "/?utm_source=x#top"})
		if err != nil {
			t.Fatalf("Import() error = %v", err)
		}
		if !res.Cached || res.Method != recipe.MethodCache || res.Confidence != 1.0 {
			t.Errorf("unexpected cache result: cached=%v method=%s confidence=%v", res.Cached, res.Method, res.Confidence)
		}
		if res.Recipe.Title != cached.Title || strings.Join(res.Recipe.Ingredients, ",") != "beans" {
			t.Errorf("cached recipe content changed: %+v", res.Recipe)
		}
	}

	if f.fetcher.calls != 0 || f.fetcher.light != 0 {
		t.Errorf("fetcher called %d/%d times on cache hit", f.fetcher.calls, f.fetcher.light)
	}
	if f.completer.calls != 0 {
		t.Errorf("model called %d times on cache hit", f.completer.calls)
	}
}

func TestImportTitleOnlyIsNotRecipe(t *testing.T) {
	const pageURL = "https://example.com/about"
	f := newFixture(t, map[string]string{pageURL: titleOnlyPage}, nil)

	res, err := f.importer.Import(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Status != recipe.StatusNotRecipe {
		t.Errorf("Status = %s, expected not_recipe", res.Status)
	}
	if !containsIssue(res.Issues, IssueAIUnavailable) {
		t.Errorf("Issues = %q, expected %q", res.Issues, IssueAIUnavailable)
	}
	if _, ok := f.cache.Get(context.Background(), pageURL); ok {
		t.Error("not_recipe result must not be cached")
	}
	if f.images.calls != 0 {
		t.Error("image engine should not run for rejected extractions")
	}
}

func TestImportLowConfidenceUsesAI(t *testing.T) {
	const pageURL = "https://example.com/stew"
	completer := &fakeCompleter{response: aiStew}
	f := newFixture(t, map[string]string{pageURL: weakPage}, completer)

	res, err := f.importer.Import(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("model called %d times, expected once", completer.calls)
	}
	if res.Method != recipe.MethodAIFallback {
		t.Errorf("Method = %s, expected ai-fallback", res.Method)
	}
	if res.Status != recipe.StatusComplete && res.Status != recipe.StatusNeedsReview {
		t.Errorf("Status = %s, expected complete or needs_review", res.Status)
	}
	if res.Level == "" {
		t.Error("Level should be reported for AI results")
	}
	if got := res.Recipe.Ingredients[2]; got != "500 g beef" {
		t.Errorf("Ingredients[2] = %q", got)
	}
	if res.Recipe.SourceURL != pageURL {
		t.Errorf("SourceURL = %q", res.Recipe.SourceURL)
	}

	entry, ok := f.cache.Get(context.Background(), pageURL)
	if !ok {
		t.Fatal("AI result should be cached")
	}
	if entry.Provenance != recipe.ProvenanceAI {
		t.Errorf("Provenance = %s, expected ai", entry.Provenance)
	}
}

func TestImportAIResultFailingValidationIsNotCached(t *testing.T) {
	const pageURL = "https://example.com/stew"
	longTitle := strings.Repeat("Stew ", 50)
	response := strings.Replace(aiStew, `"Grandma's Stew"`, fmt.Sprintf("%q", longTitle), 1)
	completer := &fakeCompleter{response: response}
	f := newFixture(t, map[string]string{pageURL: weakPage}, completer)

	res, err := f.importer.Import(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Method != recipe.MethodAIFallback {
		t.Errorf("Method = %s, expected ai-fallback", res.Method)
	}
	if res.Status != recipe.StatusNeedsReview {
		t.Errorf("Status = %s, expected needs_review", res.Status)
	}
	if !containsIssue(res.Issues, "invalid recipe title: title exceeds 200 characters") {
		t.Errorf("Issues = %q, expected title length issue", res.Issues)
	}
	if _, ok := f.cache.Get(context.Background(), pageURL); ok {
		t.Error("recipe failing validation must not be cached")
	}

	if _, err := f.importer.Import(context.Background(), Request{URL: pageURL}); err != nil {
		t.Fatalf("second Import() error = %v", err)
	}
	if completer.calls != 2 {
		t.Errorf("model called %d times, expected a fresh extraction on retry", completer.calls)
	}
}

func TestImportAIFailureCarriesPartial(t *testing.T) {
	const pageURL = "https://example.com/stew"
	completer := &fakeCompleter{err: fmt.Errorf("upstream: %w", ai.ErrModelTimeout)}
	f := newFixture(t, map[string]string{pageURL: weakPage}, completer)

	_, err := f.importer.Import(context.Background(), Request{URL: pageURL})
	var importErr *ImportError
	if !errors.As(err, &importErr) {
		t.Fatalf("Import() error = %v, expected *ImportError", err)
	}
	if importErr.Code != CodeAIFailed {
		t.Errorf("Code = %s", importErr.Code)
	}
	if importErr.Partial == nil || importErr.Partial.Recipe == nil || importErr.Partial.Recipe.Title != "Grandma's stew" {
		t.Errorf("partial result not attached: %+v", importErr.Partial)
	}
	if !errors.Is(err, ai.ErrModelTimeout) {
		t.Error("timeout should remain visible through the import error")
	}
	if d := Describe(err); d.Code != CodeAITimeout || !d.Retryable {
		t.Errorf("Describe() = %+v", d)
	}
	if _, ok := f.cache.Get(context.Background(), pageURL); ok {
		t.Error("failed imports must not be cached")
	}
}

func TestImportPrefetchedHTML(t *testing.T) {
	const pageURL = "https://example.com/shared"
	f := newFixture(t, map[string]string{}, nil)
	f.importer.config.RefetchForImages = false

	res, err := f.importer.Import(context.Background(), Request{URL: pageURL, HTML: recipeAPage})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Method != recipe.MethodJSONLD || res.Status != recipe.StatusComplete {
		t.Errorf("unexpected result: method=%s status=%s", res.Method, res.Status)
	}
	if f.fetcher.calls != 0 {
		t.Errorf("fetcher called %d times for pre-fetched HTML", f.fetcher.calls)
	}
	if res.Recipe.ImageURL != "https://example.com/chili.jpg" {
		t.Errorf("ImageURL = %q, expected extractor image kept when none verified", res.Recipe.ImageURL)
	}
}

func TestImportImageRefetchFailureIsNotFatal(t *testing.T) {
	const pageURL = "https://example.com/recipe-a"
	f := newFixture(t, map[string]string{pageURL: recipeAPage}, nil)
	f.images.image = "https://example.com/hero.jpg"

	// The main fetch succeeds, then the light re-fetch fails
	f.importer.fetcher = &flakyFetcher{fakeFetcher: f.fetcher}

	res, err := f.importer.Import(context.Background(), Request{URL: pageURL})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if res.Recipe.ImageURL != "https://example.com/hero.jpg" {
		t.Errorf("ImageURL = %q", res.Recipe.ImageURL)
	}
	if f.images.calls != 1 {
		t.Errorf("image engine should run on the existing page, calls = %d", f.images.calls)
	}
}

type flakyFetcher struct {
	*fakeFetcher
}

func (f *flakyFetcher) FetchLight(context.Context, string) (*fetch.Page, error) {
	return nil, &fetch.FetchError{Code: fetch.CodeTimeout, Message: "timed out", Retryable: true}
}

func TestImportFetchError(t *testing.T) {
	f := newFixture(t, map[string]string{}, nil)

	_, err := f.importer.Import(context.Background(), Request{URL: "https://example.com/missing"})
	var fetchErr *fetch.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Import() error = %v, expected *fetch.FetchError", err)
	}
	d := Describe(err)
	if d.Code != string(fetch.CodeNotFound) || d.Retryable {
		t.Errorf("Describe() = %+v", d)
	}
}

func TestImportRequiresURL(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.importer.Import(context.Background(), Request{})
	if d := Describe(err); d.Code != CodeInvalidRequest {
		t.Errorf("Describe() = %+v", d)
	}
}

func containsIssue(issues []string, want string) bool {
	for _, issue := range issues {
		if issue == want {
			return true
		}
	}
	return false
}
