package prompt

import (
	"strings"
	"text/template"
	"unicode/utf8"
)

// TemplateFuncs returns the helpers available inside prompt templates
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"add":      func(a, b int) int { return a + b },
		"join":     strings.Join,
		"truncate": Truncate,
		"upper":    strings.ToUpper,
	}
}

// Truncate shortens s to at most limit runes without splitting a character
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
