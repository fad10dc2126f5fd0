package images

import (
	"net/url"
	"path"
	"regexp"
	"strings"
)

// badWordRe matches decorative-image words as whole words; underscores, dashes, dots and
// slashes all count as separators.
var badWordRe = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(logo|icon|sprite|avatar|ad|banner|placeholder|pixel|spacer)s?(?:[^a-z0-9]|$)`)

// IsBadImage reports whether rawURL looks like a logo, icon, ad or tracking pixel
func IsBadImage(rawURL string) bool {
	if rawURL == "" {
		return true
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".svg", ".ico":
		return true
	}

	return badWordRe.MatchString(rawURL)
}
