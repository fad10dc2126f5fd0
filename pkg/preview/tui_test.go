package preview

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func twoEntries() []recipe.CacheEntry {
	second := sampleEntry()
	second.Recipe.Title = "Banana Bread"
	second.Provenance = recipe.ProvenanceAI
	return []recipe.CacheEntry{sampleEntry(), second}
}

func TestModelNavigation(t *testing.T) {
	m := NewModel(twoEntries(), "sqlite")

	m = press(t, m, "k")
	if m.cursor != 0 {
		t.Fatalf("cursor moved above first item: %d", m.cursor)
	}
	m = press(t, m, "j")
	m = press(t, m, "j")
	if m.cursor != 1 {
		t.Fatalf("expected cursor clamped at 1, got %d", m.cursor)
	}
	m = press(t, m, "g")
	if m.cursor != 0 {
		t.Fatalf("expected g to jump to the first item, got %d", m.cursor)
	}
	m = press(t, m, "G")

	m = press(t, m, "enter")
	if m.viewMode != DetailViewMode {
		t.Fatalf("expected detail view, got mode %d", m.viewMode)
	}
	if !strings.Contains(m.View(), "Title: Banana Bread") {
		t.Errorf("detail view does not show the selected recipe")
	}

	m = press(t, m, "y")
	if m.viewMode != YAMLViewMode || !strings.Contains(m.View(), "title: Banana Bread") {
		t.Fatalf("expected YAML view of the selected recipe, got mode %d", m.viewMode)
	}

	m = press(t, m, "y")
	if m.viewMode != DetailViewMode {
		t.Fatalf("expected toggle back to detail view, got %d", m.viewMode)
	}

	m = press(t, m, "esc")
	if m.viewMode != ListViewMode {
		t.Fatalf("expected list view after esc, got %d", m.viewMode)
	}
	if !strings.Contains(m.View(), "Recipe Cache - sqlite (2 recipes)") {
		t.Errorf("list header missing:\n%s", m.View())
	}
}

func TestModelProvenanceFilter(t *testing.T) {
	m := NewModel(twoEntries(), "redis")
	m = press(t, m, "G")

	m = press(t, m, "p")
	if len(m.visible) != 1 || m.cursor != 0 {
		t.Fatalf("scrape filter: visible=%v cursor=%d", m.visible, m.cursor)
	}
	if entry, _ := m.selected(); entry.Provenance != recipe.ProvenanceScrape {
		t.Errorf("selected %q under scrape filter", entry.Provenance)
	}
	if !strings.Contains(m.View(), "scrape only: 1") {
		t.Errorf("filter not shown in header:\n%s", m.View())
	}

	m = press(t, m, "p")
	if entry, _ := m.selected(); entry.Recipe.Title != "Banana Bread" {
		t.Errorf("ai filter selected %q", entry.Recipe.Title)
	}

	m = press(t, m, "p")
	if len(m.visible) != 2 {
		t.Errorf("expected the filter to cycle back to all, got %v", m.visible)
	}
}

func TestModelQuit(t *testing.T) {
	m := NewModel(twoEntries(), "sqlite")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected tea.QuitMsg")
	}
}
