// Package jsonsafe turns near-JSON text returned by language models into parsed values.
package jsonsafe

import (
	"regexp"
	"strings"
)

var (
	fenceRe         = regexp.MustCompile("(?m)^\\s*```[a-zA-Z0-9]*\\s*$")
	inlineFenceRe   = regexp.MustCompile("```(?:json|JSON)?")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
	doubleCommaRe   = regexp.MustCompile(`,(\s*,)+`)
	leadingCommaRe  = regexp.MustCompile(`([\[{]\s*),`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_$][A-Za-z0-9_$\-]*)(\s*:)`)
)

// Sanitize applies the repair passes in a fixed order: code fences, null bytes,
// comments, stray quotes inside strings, then structural fixes outside string literals.
func Sanitize(content string) string {
	s := fenceRe.ReplaceAllString(content, "")
	s = inlineFenceRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\x00", "")
	s = stripComments(s)
	s = escapeStrayQuotes(s)
	s = mapOutsideStrings(s, func(segment string) string {
		segment = doubleCommaRe.ReplaceAllString(segment, ",")
		segment = leadingCommaRe.ReplaceAllString(segment, "$1")
		segment = trailingCommaRe.ReplaceAllString(segment, "$1")
		segment = bareKeyRe.ReplaceAllString(segment, `$1"$2"$3`)
		return segment
	})
	return strings.TrimSpace(s)
}

// escapeStrayQuotes escapes a double quote found inside a string literal unless the next
// significant character could legally follow a closing quote.
func escapeStrayQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			b.WriteByte(c)
			continue
		}

		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '\n':
			b.WriteString(`\n`)
			continue
		case c == '\r':
			continue
		case c == '\t':
			b.WriteString(`\t`)
			continue
		case c == '"':
			if closesString(s[i+1:]) {
				inString = false
			} else {
				b.WriteString(`\"`)
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

func closesString(rest string) bool {
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case ' ', '\t', '\n', '\r':
			continue
		case ',', '}', ']', ':':
			return true
		case '/':
			return i+1 < len(rest) && (rest[i+1] == '/' || rest[i+1] == '*')
		default:
			return false
		}
	}
	return true
}

// stripComments removes // line and /* block */ comments that sit outside string literals
func stripComments(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			b.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		if c == '"' {
			inString = true
			b.WriteByte(c)
			continue
		}
		if c == '/' && i+1 < len(s) {
			switch s[i+1] {
			case '/':
				for i < len(s) && s[i] != '\n' {
					i++
				}
				if i < len(s) {
					b.WriteByte('\n')
				}
				continue
			case '*':
				end := strings.Index(s[i+2:], "*/")
				if end < 0 {
					i = len(s)
				} else {
					i += end + 3
				}
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// mapOutsideStrings applies fn to every run of text that is not inside a string literal
func mapOutsideStrings(s string, fn func(string) string) string {
	var (
		b        strings.Builder
		start    int
		inString bool
		escaped  bool
	)
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				b.WriteString(s[start : i+1])
				start = i + 1
			}
			continue
		}
		if c == '"' {
			b.WriteString(fn(s[start:i]))
			start = i
			inString = true
		}
	}

	if inString {
		b.WriteString(s[start:])
	} else {
		b.WriteString(fn(s[start:]))
	}
	return b.String()
}
