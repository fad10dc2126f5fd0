package ai

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/lepinkainen/recipe-forge/pkg/prompt"
	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// DefaultMaxChars caps the page text sent to the model
const DefaultMaxChars = 15000

// PageText reduces an HTML page to its readable text, whitespace collapsed and truncated to
// maxChars characters. Readability output is preferred; pages it cannot handle fall back to
// the body text with scripts and styles removed.
func PageText(pageURL, html string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}

	text := readableText(pageURL, html)
	if text == "" {
		text = bodyText(html)
	}
	return prompt.Truncate(recipe.CollapseWhitespace(text), maxChars)
}

func readableText(pageURL, html string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		parsed = nil
	}
	article, err := readability.FromReader(strings.NewReader(html), parsed)
	if err != nil {
		slog.Debug("Readability extraction failed, using body text", "url", pageURL, "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

func bodyText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		return doc.Text()
	}
	return body.Text()
}
