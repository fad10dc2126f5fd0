// Package images picks the best photo for a recipe page.
package images

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/lepinkainen/recipe-forge/pkg/extract"
)

// maxScoredImgs bounds how many <img> tags are offered for probing
const maxScoredImgs = 5

// Source names where a candidate came from
type Source string

// Candidate sources in trust order
const (
	SourceJSONLD    Source = "json-ld"
	SourceOpenGraph Source = "og"
	SourceTwitter   Source = "twitter"
	SourceSocial    Source = "social"
	SourceLinkRel   Source = "link"
	SourcePicture   Source = "picture"
	SourceImg       Source = "img"
)

// Candidate is a possible recipe image
type Candidate struct {
	URL    string
	Source Source
	Width  int
	Height int
}

var metaGroups = []struct {
	source Source
	keys   []string
}{
	{SourceOpenGraph, []string{"og:image", "og:image:secure_url", "og:image:url"}},
	{SourceTwitter, []string{"twitter:image", "twitter:image:src"}},
	{SourceSocial, []string{"pinterest:media", "pin:media", "instagram:image"}},
}

// Collect lists image candidates for the page in trust order. URLs are resolved against
// pageURL, de-duplicated and run through the bad-image filter.
func Collect(pageURL string, doc *goquery.Document) []Candidate {
	base, _ := url.Parse(pageURL)

	var raw []Candidate
	raw = append(raw, jsonLDCandidates(doc)...)

	meta := metaContents(doc)
	for _, group := range metaGroups {
		for _, key := range group.keys {
			if v := meta[key]; v != "" {
				raw = append(raw, Candidate{URL: v, Source: group.source})
			}
		}
	}

	if href, ok := doc.Find(`link[rel="image_src"]`).First().Attr("href"); ok {
		raw = append(raw, Candidate{URL: href, Source: SourceLinkRel})
	}

	if srcset, ok := doc.Find("picture source[srcset]").First().Attr("srcset"); ok {
		if u := srcsetFirst(srcset); u != "" {
			raw = append(raw, Candidate{URL: u, Source: SourcePicture})
		}
	}

	raw = append(raw, imgCandidates(doc)...)

	seen := make(map[string]bool, len(raw))
	out := make([]Candidate, 0, len(raw))
	for _, c := range raw {
		resolved := resolve(base, c.URL)
		if resolved == "" || seen[resolved] || IsBadImage(resolved) {
			continue
		}
		seen[resolved] = true
		c.URL = resolved
		out = append(out, c)
	}
	return out
}

func resolve(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "data:") {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// jsonLDCandidates gathers the recipe image (widest first), the AggregateRating image,
// the root image and the mainEntity image of every ld+json block.
func jsonLDCandidates(doc *goquery.Document) []Candidate {
	var out []Candidate
	for _, block := range extract.Blocks(doc) {
		if node, ok := extract.FindRecipe(block); ok {
			entries := imageEntries(node["image"])
			sort.SliceStable(entries, func(i, j int) bool { return entries[i].Width > entries[j].Width })
			out = append(out, entries...)

			if rating, ok := node["aggregateRating"].(map[string]any); ok {
				out = append(out, imageEntries(rating["image"])...)
			}
		}

		if root, ok := block.(map[string]any); ok {
			out = append(out, imageEntries(root["image"])...)
			if entity, ok := root["mainEntity"].(map[string]any); ok {
				out = append(out, imageEntries(entity["image"])...)
			}
		}
	}
	return out
}

// imageEntries normalizes a schema.org image value into {url, width, height} entries
func imageEntries(v any) []Candidate {
	switch val := v.(type) {
	case string:
		if val = strings.TrimSpace(val); val != "" {
			return []Candidate{{URL: val, Source: SourceJSONLD}}
		}
	case map[string]any:
		if u := extract.FirstImage(val); u != "" {
			return []Candidate{{
				URL:    u,
				Source: SourceJSONLD,
				Width:  number(val["width"]),
				Height: number(val["height"]),
			}}
		}
	case []any:
		var out []Candidate
		for _, item := range val {
			out = append(out, imageEntries(item)...)
		}
		return out
	}
	return nil
}

func number(v any) int {
	switch val := v.(type) {
	case float64:
		return int(val)
	case string:
		n, _ := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(val), "px"))
		return n
	case map[string]any:
		// QuantitativeValue
		return number(val["value"])
	}
	return 0
}

// metaContents walks the document once, keeping the first content value per meta key
func metaContents(doc *goquery.Document) map[string]string {
	contents := make(map[string]string)
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var key, content string
			for _, attr := range n.Attr {
				switch attr.Key {
				case "property", "name":
					if key == "" {
						key = strings.ToLower(strings.TrimSpace(attr.Val))
					}
				case "content":
					content = strings.TrimSpace(attr.Val)
				}
			}
			if key != "" && content != "" {
				if _, exists := contents[key]; !exists {
					contents[key] = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return contents
}

// imgCandidates scores every <img> and returns the best few, highest score first
func imgCandidates(doc *goquery.Document) []Candidate {
	var scored []scoredImg
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		if s, ok := scoreImg(img); ok {
			scored = append(scored, s)
		}
	})

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > maxScoredImgs {
		scored = scored[:maxScoredImgs]
	}

	out := make([]Candidate, 0, len(scored))
	for _, s := range scored {
		out = append(out, Candidate{URL: s.url, Source: SourceImg})
	}
	return out
}
