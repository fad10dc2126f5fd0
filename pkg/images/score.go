package images

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// minImgWidth rejects <img> tags whose declared width is smaller
const minImgWidth = 300

var (
	positiveWords = []string{"recipe", "hero", "featured", "main"}
	negativeWords = []string{"nav", "footer", "aside", "sidebar", "comment", "widget"}

	// lazyAttrs are checked in order for the image URL
	lazyAttrs = []string{"src", "data-src", "data-lazy-src", "data-original", "data-lazy", "data-real-src", "data-enlarge-src"}

	contentContainers = `article, main, [class*="recipe"], [class*="content"]`
)

// scoredImg is an <img> tag that survived rejection
type scoredImg struct {
	url   string
	score int
}

// scoreImg rates an <img> tag as a recipe photo. ok is false when the tag is rejected.
func scoreImg(img *goquery.Selection) (scoredImg, bool) {
	src := imgURL(img)
	if src == "" {
		return scoredImg{}, false
	}

	width, hasWidth := dimension(img, "width")
	height, hasHeight := dimension(img, "height")
	if hasWidth && width < minImgWidth {
		return scoredImg{}, false
	}

	score := 0
	switch {
	case width >= 600:
		score += 3
	case width >= 400:
		score += 2
	}
	switch {
	case height >= 400:
		score += 2
	case height >= 300:
		score += 1
	}
	if hasWidth && hasHeight && height > 0 {
		aspect := float64(width) / float64(height)
		if aspect >= 1.2 && aspect <= 2.2 {
			score += 2
		}
	}

	tokens := contextTokens(img)
	for _, w := range positiveWords {
		if strings.Contains(tokens, w) {
			score += 2
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(tokens, w) {
			score -= 3
		}
	}

	if img.Closest(contentContainers).Length() > 0 {
		score += 3
	}

	lowerURL := strings.ToLower(src)
	for _, w := range positiveWords {
		if strings.Contains(lowerURL, w) {
			score++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lowerURL, w) {
			score -= 2
		}
	}

	return scoredImg{url: src, score: score}, true
}

// imgURL picks the image URL from src and the lazy-loading attributes, upgrading to a
// srcset entry at least 600w wide when one exists. data: placeholders are skipped and
// data-srcset contributes its first URL as a last resort.
func imgURL(img *goquery.Selection) string {
	for _, attr := range []string{"srcset", "data-srcset"} {
		if v, ok := img.Attr(attr); ok {
			if u := srcsetAtLeast(v, 600); u != "" {
				return u
			}
		}
	}

	for _, attr := range lazyAttrs {
		v := strings.TrimSpace(img.AttrOr(attr, ""))
		if v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}

	if v, ok := img.Attr("data-srcset"); ok {
		if u := srcsetFirst(v); u != "" {
			return u
		}
	}
	return ""
}

// dimension reads the leading integer of a width or height attribute, so "150.0"
// and "150px" both give 150
func dimension(img *goquery.Selection, attr string) (int, bool) {
	v := strings.TrimSpace(img.AttrOr(attr, ""))
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(v[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// contextTokens joins the lowercased class, id and tag names of img and its ancestors
func contextTokens(img *goquery.Selection) string {
	var b strings.Builder
	add := func(s *goquery.Selection) {
		b.WriteString(strings.ToLower(s.AttrOr("class", "")))
		b.WriteByte(' ')
		b.WriteString(strings.ToLower(s.AttrOr("id", "")))
		b.WriteByte(' ')
	}
	add(img)
	img.Parents().Each(func(_ int, p *goquery.Selection) {
		add(p)
		b.WriteString(goquery.NodeName(p))
		b.WriteByte(' ')
	})
	return b.String()
}
