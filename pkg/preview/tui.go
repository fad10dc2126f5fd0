package preview

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/recipe-forge/pkg/recipe"
)

// ViewMode represents the current view mode
type ViewMode int

// View modes for the preview TUI
const (
	ListViewMode ViewMode = iota
	DetailViewMode
	YAMLViewMode
)

// chrome is the number of list rows taken by the header and footer
const chrome = 6

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("12")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// provenanceFilters is the cycle order of the "p" key; empty shows everything
var provenanceFilters = []recipe.Provenance{"", recipe.ProvenanceScrape, recipe.ProvenanceAI}

// Model is the Bubble Tea model for browsing cached recipes
type Model struct {
	all      []recipe.CacheEntry
	visible  []int // indexes into all that pass the filter
	filter   int   // index into provenanceFilters
	cursor   int   // position within visible
	viewMode ViewMode
	backend  string
	width    int
	height   int
	now      func() time.Time
}

// NewModel creates a new preview model over cached entries from backend
func NewModel(items []recipe.CacheEntry, backend string) Model {
	m := Model{all: items, backend: backend, now: time.Now}
	m.applyFilter()
	return m
}

func (m *Model) applyFilter() {
	want := provenanceFilters[m.filter]
	m.visible = make([]int, 0, len(m.all))
	for i, entry := range m.all {
		if want == "" || entry.Provenance == want {
			m.visible = append(m.visible, i)
		}
	}
	if m.cursor >= len(m.visible) {
		m.cursor = max(len(m.visible)-1, 0)
	}
}

// selected returns the entry under the cursor
func (m Model) selected() (recipe.CacheEntry, bool) {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return recipe.CacheEntry{}, false
	}
	return m.all[m.visible[m.cursor]], true
}

func (m Model) pageSize() int {
	if m.height > chrome {
		return m.height - chrome
	}
	return 10
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tea.KeyMsg:
		if key := msg.String(); key == "q" || key == "ctrl+c" {
			return m, tea.Quit
		}
		if m.viewMode == ListViewMode {
			return m.updateList(msg.String()), nil
		}
		return m.updateDetail(msg.String()), nil
	}
	return m, nil
}

func (m Model) updateList(key string) Model {
	last := len(m.visible) - 1
	switch key {
	case "up", "k":
		m.cursor = max(m.cursor-1, 0)
	case "down", "j":
		m.cursor = max(min(m.cursor+1, last), 0)
	case "pgup":
		m.cursor = max(m.cursor-m.pageSize(), 0)
	case "pgdown":
		m.cursor = max(min(m.cursor+m.pageSize(), last), 0)
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = max(last, 0)
	case "p":
		m.filter = (m.filter + 1) % len(provenanceFilters)
		m.applyFilter()
	case "enter":
		if _, ok := m.selected(); ok {
			m.viewMode = DetailViewMode
		}
	case "y":
		if _, ok := m.selected(); ok {
			m.viewMode = YAMLViewMode
		}
	}
	return m
}

func (m Model) updateDetail(key string) Model {
	switch key {
	case "esc", "backspace":
		m.viewMode = ListViewMode
	case "y":
		if m.viewMode == DetailViewMode {
			m.viewMode = YAMLViewMode
		} else {
			m.viewMode = DetailViewMode
		}
	}
	return m
}

// View implements tea.Model
func (m Model) View() string {
	switch m.viewMode {
	case DetailViewMode:
		entry, ok := m.selected()
		if !ok {
			return "No recipe selected"
		}
		return FormatDetailedItem(entry, m.now()) + "\n" +
			footerStyle.Render("esc: back to list • y: YAML view • q: quit")
	case YAMLViewMode:
		entry, ok := m.selected()
		if !ok {
			return "No recipe selected"
		}
		return headerStyle.Render("YAML Preview - "+entry.URL) + "\n\n" + FormatYAMLItem(entry) + "\n" +
			footerStyle.Render("esc: back to list • y: detail view • q: quit")
	default:
		return m.renderList()
	}
}

// visibleRange keeps the cursor near the middle of the screen once the list overflows
func (m Model) visibleRange() (int, int) {
	if m.height <= 0 || len(m.visible) <= m.height-chrome {
		return 0, len(m.visible)
	}
	rows := max(m.height-chrome, 1)
	start := max(m.cursor-rows/2, 0)
	end := start + rows
	if end > len(m.visible) {
		end = len(m.visible)
		start = max(end-rows, 0)
	}
	return start, end
}

func (m Model) renderList() string {
	var b strings.Builder

	header := fmt.Sprintf("Recipe Cache - %s (%d recipes)", m.backend, len(m.all))
	if f := provenanceFilters[m.filter]; f != "" {
		header += fmt.Sprintf(" • %s only: %d", f, len(m.visible))
	}
	b.WriteString(headerStyle.Render(header))
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString("  No recipes match the filter\n")
	}

	start, end := m.visibleRange()
	for pos := start; pos < end; pos++ {
		line := FormatCompactListItem(m.visible[pos], m.all[m.visible[pos]])
		if pos == m.cursor {
			b.WriteString(selectedStyle.Render("→ " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render("↑/↓ j/k: navigate • g/G: first/last • enter: details • y: YAML • p: provenance filter • q: quit"))
	return b.String()
}

// Run starts the Bubble Tea program
func Run(items []recipe.CacheEntry, backend string) error {
	if len(items) == 0 {
		fmt.Println("No cached recipes to preview")
		return nil
	}

	p := tea.NewProgram(NewModel(items, backend), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
