package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fenilsonani/macsweep/internal/catalog"
	"github.com/fenilsonani/macsweep/internal/cleaner"
	"github.com/fenilsonani/macsweep/internal/scanner"
	"github.com/fenilsonani/macsweep/internal/ui/styles"
	"github.com/fenilsonani/macsweep/pkg/utils"
)

// CategoryRow is one selectable category in the checklist
type CategoryRow struct {
	Name       string
	Label      string
	Type       string
	Count      int
	Size       int64
	Selected   bool
	Privileged bool
	Safety     styles.Safety
}

// SelectorModel is a category checklist followed by a confirmation prompt
type SelectorModel struct {
	rows       []CategoryRow
	cursor     int
	method     cleaner.Method
	confirming bool
	confirmed  bool
	width      int
}

// NewSelector builds rows for every non-empty category. Risky categories start
// unchecked; the rest keep the inventory's selection.
func NewSelector(inv *scanner.Inventory, cat *catalog.Catalog, method cleaner.Method) SelectorModel {
	var rows []CategoryRow
	for _, res := range inv.Categories {
		if len(res.Items) == 0 {
			continue
		}

		row := CategoryRow{
			Name:  res.Name,
			Label: res.Label,
			Type:  catalog.TypeOther,
			Count: len(res.Items),
			Size:  res.TotalSize,
		}
		if cat != nil {
			if c, ok := cat.Get(res.Name); ok {
				row.Type = c.Type
			}
		}
		row.Safety = styles.SafetyFor(row.Type)

		for _, item := range res.Items {
			row.Selected = row.Selected || item.Selected
			row.Privileged = row.Privileged || item.RequiresPrivileges
		}
		if row.Safety == styles.SafetyRisky {
			row.Selected = false
		}
		rows = append(rows, row)
	}

	return SelectorModel{rows: rows, method: method, width: 80}
}

// Rows returns the current checklist state
func (m SelectorModel) Rows() []CategoryRow {
	return m.rows
}

// Confirmed reports whether the user accepted the selection
func (m SelectorModel) Confirmed() bool {
	return m.confirmed
}

// SelectedSize is the total size of checked categories
func (m SelectorModel) SelectedSize() (count int, size int64) {
	for _, r := range m.rows {
		if r.Selected {
			count += r.Count
			size += r.Size
		}
	}
	return count, size
}

// Apply copies the checklist onto the inventory's per-item selection
func (m SelectorModel) Apply(inv *scanner.Inventory) {
	shown := make(map[string]bool, len(m.rows))
	for _, r := range m.rows {
		shown[r.Name] = true
		inv.SelectCategory(r.Name, r.Selected)
	}
	for _, res := range inv.Categories {
		if !shown[res.Name] {
			inv.SelectCategory(res.Name, false)
		}
	}
}

// Init initializes the selector
func (m SelectorModel) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m SelectorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		if m.confirming {
			return m.updateConfirm(msg)
		}

		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "g":
			m.cursor = 0
		case "G":
			if len(m.rows) > 0 {
				m.cursor = len(m.rows) - 1
			}
		case " ", "space":
			if m.cursor < len(m.rows) {
				m.rows[m.cursor].Selected = !m.rows[m.cursor].Selected
			}
		case "x":
			if m.cursor < len(m.rows) {
				m.rows[m.cursor].Selected = !m.rows[m.cursor].Selected
				if m.cursor < len(m.rows)-1 {
					m.cursor++
				}
			}
		case "ctrl+a", "a":
			for i := range m.rows {
				m.rows[i].Selected = true
			}
		case "ctrl+d", "n":
			for i := range m.rows {
				m.rows[i].Selected = false
			}
		case "enter":
			if n, _ := m.SelectedSize(); n > 0 {
				m.confirming = true
			}
		}
	}

	return m, nil
}

func (m SelectorModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.confirmed = true
		return m, tea.Quit
	case "ctrl+c":
		return m, tea.Quit
	case "n", "N", "esc":
		m.confirming = false
	}
	return m, nil
}

// View renders the checklist or the confirmation prompt
func (m SelectorModel) View() string {
	if m.confirming {
		return m.confirmView()
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("🧹 Select categories to clean"))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(styles.DimStyle.Render("Nothing reclaimable was found."))
		b.WriteString("\n\n")
		b.WriteString(styles.HelpStyle.Render("q: quit"))
		return b.String()
	}

	labelWidth := 0
	for _, r := range m.rows {
		labelWidth = max(labelWidth, lipgloss.Width(r.Label))
	}

	for i, r := range m.rows {
		cursor := "  "
		if i == m.cursor {
			cursor = styles.SelectedStyle.Render("▸ ")
		}
		box := styles.UncheckedBox()
		if r.Selected {
			box = styles.CheckedBox()
		}

		label := fmt.Sprintf("%-*s", labelWidth, r.Label)
		if i == m.cursor {
			label = styles.SelectedStyle.Render(label)
		}

		line := fmt.Sprintf("%s%s %s %s %6d files %10s  %s",
			cursor, box, styles.CategoryIcon(r.Type), label, r.Count,
			styles.FileSizeStyle.Render(utils.FormatBytes(r.Size)),
			styles.SafetyStyle(r.Safety).Render(r.Safety.String()))
		if r.Privileged {
			line += " " + styles.PrivilegedBadgeStyle.Render("admin")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	count, size := m.SelectedSize()
	b.WriteString("\n")
	b.WriteString(styles.BoldStyle.Render(fmt.Sprintf("Selected: %d files, %s", count, utils.FormatBytes(size))))
	b.WriteString(styles.DimStyle.Render(fmt.Sprintf("  method: %s", m.method)))
	b.WriteString("\n\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓: move • space: toggle • a: all • n: none • enter: continue • q: quit"))
	b.WriteString("\n")
	return b.String()
}

func (m SelectorModel) confirmView() string {
	var b strings.Builder
	count, size := m.SelectedSize()

	b.WriteString(styles.TitleStyle.Render("⚠️  Confirm"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("Clean %d files (%s) using %s?\n", count, utils.FormatBytes(size), m.method))

	switch m.method {
	case cleaner.MethodSecure:
		b.WriteString(styles.WarningStyle.Render("Secure erase overwrites files in place and cannot be undone."))
		b.WriteString("\n")
	case cleaner.MethodPrivileged:
		b.WriteString(styles.WarningStyle.Render("Files are removed by the privileged helper and cannot be recovered."))
		b.WriteString("\n")
	default:
		b.WriteString(styles.DimStyle.Render("Files are moved to the Trash."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("y: clean • n: back"))
	b.WriteString("\n")
	return b.String()
}
