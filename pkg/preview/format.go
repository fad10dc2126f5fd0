// Package preview provides an interactive browser for cached recipes using Bubble Tea.
package preview

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

const ruler = "═══════════════════════════════════════════════════════════════════════\n"

// wrapText wraps text to the specified width, breaking at word boundaries when possible
func wrapText(text string, width int) string {
	if width <= 0 {
		width = 70
	}

	var result strings.Builder
	var line strings.Builder
	lineLen := 0

	words := strings.Fields(text)
	for i, word := range words {
		wordLen := utf8.RuneCountInString(word)

		if lineLen > 0 && lineLen+1+wordLen > width {
			result.WriteString(line.String())
			result.WriteString("\n")
			line.Reset()
			lineLen = 0
		}

		if lineLen > 0 {
			line.WriteString(" ")
			lineLen++
		}

		line.WriteString(word)
		lineLen += wordLen

		if i == len(words)-1 {
			result.WriteString(line.String())
		}
	}

	return result.String()
}

// FormatCompactListItem formats a cached recipe as a single list line
// Example: " 1. [scrape  8🥕  6📝] 2025-10-21  Weeknight Chili"
func FormatCompactListItem(index int, entry recipe.CacheEntry) string {
	title := entry.Recipe.Title
	const maxTitleLength = 60
	if utf8.RuneCountInString(title) > maxTitleLength {
		title = string([]rune(title)[:maxTitleLength-3]) + "..."
	}

	return fmt.Sprintf("%2d. [%-6s %2d🥕 %2d📝] %s  %s",
		index+1,
		entry.Provenance,
		len(entry.Recipe.Ingredients),
		len(entry.Recipe.Instructions),
		entry.UpdatedAt.Format("2006-01-02"),
		title)
}

// FormatDetailedItem formats a cached recipe with all of its fields
func FormatDetailedItem(entry recipe.CacheEntry, now time.Time) string {
	r := entry.Recipe
	var b strings.Builder

	b.WriteString(ruler)
	fmt.Fprintf(&b, "Title: %s\n", r.Title)
	fmt.Fprintf(&b, "Source: %s\n", entry.URL)
	fmt.Fprintf(&b, "Provenance: %s | Cached: %s\n", entry.Provenance, formatTimeAgo(entry.UpdatedAt, now))

	var timing []string
	for _, t := range []struct{ label, value string }{
		{"prep", r.PrepTime}, {"cook", r.CookTime}, {"total", r.TotalTime},
	} {
		if t.value != "" {
			timing = append(timing, t.label+" "+t.value)
		}
	}
	fmt.Fprintf(&b, "Serves: %d | Difficulty: %s", r.Servings, r.Difficulty)
	if len(timing) > 0 {
		fmt.Fprintf(&b, " | %s", strings.Join(timing, ", "))
	}
	b.WriteString("\n")

	if len(r.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(r.Tags, ", "))
	}
	if r.ImageURL != "" {
		fmt.Fprintf(&b, "Image: %s\n", r.ImageURL)
	}
	if r.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", wrapText(r.Description, 70))
	}

	if len(r.Ingredients) > 0 {
		b.WriteString("\nIngredients:\n")
		for _, ing := range r.Ingredients {
			fmt.Fprintf(&b, "  • %s\n", ing)
		}
	}
	if len(r.Instructions) > 0 {
		b.WriteString("\nInstructions:\n")
		for i, step := range r.Instructions {
			wrapped := strings.ReplaceAll(wrapText(step, 64), "\n", "\n      ")
			fmt.Fprintf(&b, "  %2d. %s\n", i+1, wrapped)
		}
	}

	b.WriteString(ruler)
	return b.String()
}

// FormatYAMLItem renders the recipe as YAML, as written by `import --format yaml`
func FormatYAMLItem(entry recipe.CacheEntry) string {
	out, err := yaml.Marshal(entry.Recipe)
	if err != nil {
		return fmt.Sprintf("Error rendering YAML: %s", err)
	}
	return string(out)
}

// formatTimeAgo formats t relative to now as a human-readable "X ago" string
func formatTimeAgo(t, now time.Time) string {
	duration := now.Sub(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		mins := int(duration.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case duration < 24*time.Hour:
		hours := int(duration.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case duration < 7*24*time.Hour:
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02")
	}
}
