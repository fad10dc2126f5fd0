package images

import (
	"sort"
	"strconv"
	"strings"
)

type srcsetEntry struct {
	url   string
	width int
}

// parseSrcset reads "a.jpg 400w, b.jpg 800w" style values. Entries without a width
// descriptor get width 0.
func parseSrcset(value string) []srcsetEntry {
	var entries []srcsetEntry
	for _, part := range strings.Split(value, ",") {
		fields := strings.Fields(strings.TrimSpace(part))
		if len(fields) == 0 || strings.HasPrefix(fields[0], "data:") {
			continue
		}
		entry := srcsetEntry{url: fields[0]}
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			entry.width, _ = strconv.Atoi(strings.TrimSuffix(fields[1], "w"))
		}
		entries = append(entries, entry)
	}
	return entries
}

// srcsetAtLeast returns the narrowest entry at least minWidth wide
func srcsetAtLeast(value string, minWidth int) string {
	entries := parseSrcset(value)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].width < entries[j].width })
	for _, e := range entries {
		if e.width >= minWidth {
			return e.url
		}
	}
	return ""
}

// srcsetFirst returns the first usable entry
func srcsetFirst(value string) string {
	entries := parseSrcset(value)
	if len(entries) == 0 {
		return ""
	}
	return entries[0].url
}
