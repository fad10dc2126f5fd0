package recipe

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	entityRe     = regexp.MustCompile(`&(#[0-9]{1,8}|#[xX][0-9a-fA-F]{1,7}|[a-zA-Z][a-zA-Z0-9]{1,31});`)
	stepPrefixRe = regexp.MustCompile(`(?i)^(?:step\s*\d+\s*[:.)\-–]?\s*|\d+\s*[.):\-–]\s+)`)
	durationRe   = regexp.MustCompile(`(?i)^P(?:(\d+(?:\.\d+)?)D)?(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

	mixedRe  = regexp.MustCompile(`^(\d+)\s+(\d+)\s*/\s*(\d+)`)
	fracRe   = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)`)
	rangeRe  = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*(?:-|–|—|to)\s*(\d+(?:\.\d+)?)`)
	approxRe = regexp.MustCompile(`(?:about|approx\.?|approximately|around|roughly|~)\s*(\d+(?:\.\d+)?)`)
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// CollapseWhitespace trims and folds runs of whitespace into single spaces
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// StripHTML removes markup tags, leaving the text content
func StripHTML(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	return CollapseWhitespace(tagRe.ReplaceAllString(s, " "))
}

// DecodeEntities decodes named and numeric (decimal and hex) HTML entities in a single pass.
// Numeric references outside 1..0x10FFFF are left untouched.
func DecodeEntities(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return entityRe.ReplaceAllStringFunc(s, func(m string) string {
		body := m[1 : len(m)-1]
		if body[0] != '#' {
			decoded := html.UnescapeString(m)
			return decoded
		}

		var (
			cp  int64
			err error
		)
		if len(body) > 1 && (body[1] == 'x' || body[1] == 'X') {
			cp, err = strconv.ParseInt(body[2:], 16, 64)
		} else {
			cp, err = strconv.ParseInt(body[1:], 10, 64)
		}
		if err != nil || cp < 1 || cp > 0x10FFFF || !utf8.ValidRune(rune(cp)) {
			return m
		}
		return string(rune(cp))
	})
}

// CleanText strips markup, decodes entities and collapses whitespace
func CleanText(s string) string {
	return CollapseWhitespace(DecodeEntities(StripHTML(s)))
}

// EnsureTerminalPunctuation appends a period when s does not already end a sentence
func EnsureTerminalPunctuation(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	switch last {
	case '.', '!', '?', '…':
		return s
	}
	return s + "."
}

// StripStepNumber removes leading "1.", "2)", "Step 3:" style numbering
func StripStepNumber(s string) string {
	s = strings.TrimSpace(s)
	stripped := strings.TrimSpace(stepPrefixRe.ReplaceAllString(s, ""))
	if stripped == "" {
		return s
	}
	return stripped
}

// NormalizeStep cleans a single instruction step for output
func NormalizeStep(s string) string {
	s = StripStepNumber(CleanText(s))
	if s == "" {
		return ""
	}
	return EnsureTerminalPunctuation(s)
}

// ParseDuration renders an ISO-8601 duration such as PT1H30M as "1h 30min".
// Values that are not ISO durations are returned trimmed, unchanged.
func ParseDuration(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	m := durationRe.FindStringSubmatch(value)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "" && m[4] == "") {
		return value
	}

	parse := func(v string) float64 {
		if v == "" {
			return 0
		}
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}

	totalMinutes := int(math.Round(parse(m[1])*24*60 + parse(m[2])*60 + parse(m[3]) + parse(m[4])/60))
	if totalMinutes <= 0 {
		return ""
	}

	hours, minutes := totalMinutes/60, totalMinutes%60
	switch {
	case hours > 0 && minutes > 0:
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	default:
		return fmt.Sprintf("%dmin", minutes)
	}
}

// ParseYield extracts a serving count from the many shapes recipeYield takes.
// Returns false when nothing numeric could be found.
func ParseYield(value any) (int, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return roundPositive(v)
	case int:
		return roundPositive(float64(v))
	case string:
		return parseYieldString(v)
	case []any:
		for _, item := range v {
			if n, ok := ParseYield(item); ok {
				return n, true
			}
		}
	case []string:
		for _, item := range v {
			if n, ok := parseYieldString(item); ok {
				return n, true
			}
		}
	case map[string]any:
		if n, ok := ParseYield(v["value"]); ok {
			return n, true
		}
	}
	return 0, false
}

func parseYieldString(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(DecodeEntities(s)))
	if s == "" {
		return 0, false
	}

	if m := approxRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.ParseFloat(m[1], 64)
		return roundPositive(n)
	}

	idx := strings.IndexAny(s, "0123456789")
	if idx < 0 {
		return 0, false
	}
	s = s[idx:]

	if m := mixedRe.FindStringSubmatch(s); m != nil {
		whole, _ := strconv.ParseFloat(m[1], 64)
		num, _ := strconv.ParseFloat(m[2], 64)
		den, _ := strconv.ParseFloat(m[3], 64)
		if den != 0 {
			return roundPositive(whole + num/den)
		}
	}
	if m := fracRe.FindStringSubmatch(s); m != nil {
		num, _ := strconv.ParseFloat(m[1], 64)
		den, _ := strconv.ParseFloat(m[2], 64)
		if den != 0 {
			return roundPositive(num / den)
		}
	}
	if m := rangeRe.FindStringSubmatch(s); m != nil {
		low, _ := strconv.ParseFloat(m[1], 64)
		high, _ := strconv.ParseFloat(m[2], 64)
		return roundPositive((low + high) / 2)
	}
	if m := numberRe.FindString(s); m != "" {
		n, _ := strconv.ParseFloat(m, 64)
		return roundPositive(n)
	}
	return 0, false
}

func roundPositive(f float64) (int, bool) {
	n := int(math.Round(f))
	if n <= 0 {
		return 0, false
	}
	return n, true
}
