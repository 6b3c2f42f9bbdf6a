package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fenilsonani/macsweep/internal/catalog"
)

// Theme colors
var (
	Primary   = lipgloss.Color("#7C3AED")
	Secondary = lipgloss.Color("#A78BFA")
	Success   = lipgloss.Color("#10B981")
	Warning   = lipgloss.Color("#F59E0B")
	Danger    = lipgloss.Color("#EF4444")
	Info      = lipgloss.Color("#3B82F6")
	Muted     = lipgloss.Color("#6B7280")
	TextDim   = lipgloss.Color("#9CA3AF")
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary)

	SelectedStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	CheckboxStyle = lipgloss.NewStyle().
			Foreground(Success)

	CheckboxUncheckedStyle = lipgloss.NewStyle().
				Foreground(Muted)

	FilePathStyle = lipgloss.NewStyle().
			Foreground(Info)

	FileSizeStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(Danger).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(TextDim).
			Italic(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(TextDim)

	BoldStyle = lipgloss.NewStyle().
			Bold(true)

	PrivilegedBadgeStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(Danger).
				Padding(0, 1)
)

// CheckedBox renders a ticked checkbox
func CheckedBox() string {
	return CheckboxStyle.Render("☑")
}

// UncheckedBox renders an empty checkbox
func UncheckedBox() string {
	return CheckboxUncheckedStyle.Render("☐")
}

// Safety is how confident we are that a category can be removed without review
type Safety int

const (
	SafetyRisky Safety = iota
	SafetyCaution
	SafetySafe
)

func (s Safety) String() string {
	switch s {
	case SafetySafe:
		return "SAFE"
	case SafetyCaution:
		return "CAUTION"
	default:
		return "RISKY"
	}
}

// SafetyFor classifies a catalog type
func SafetyFor(itemType string) Safety {
	switch itemType {
	case catalog.TypeCache, catalog.TypeLog, catalog.TypeTemp:
		return SafetySafe
	case catalog.TypeDuplicate, catalog.TypeTrash:
		return SafetyCaution
	default:
		return SafetyRisky
	}
}

// SafetyStyle colours a safety label
func SafetyStyle(s Safety) lipgloss.Style {
	switch s {
	case SafetySafe:
		return lipgloss.NewStyle().Foreground(Success)
	case SafetyCaution:
		return lipgloss.NewStyle().Foreground(Warning)
	default:
		return lipgloss.NewStyle().Foreground(Danger)
	}
}

// CategoryIcon picks an icon from the catalog type
func CategoryIcon(itemType string) string {
	switch itemType {
	case catalog.TypeCache:
		return "💾"
	case catalog.TypeLog:
		return "📜"
	case catalog.TypeTemp:
		return "⏳"
	case catalog.TypeDownload:
		return "📥"
	case catalog.TypeDuplicate:
		return "👯"
	case catalog.TypeLarge:
		return "📀"
	case catalog.TypeTrash:
		return "🗑️"
	default:
		return "📁"
	}
}

// ProgressBar renders a fixed-width text bar for non-interactive output
func ProgressBar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	fraction = min(max(fraction, 0), 1)
	filled := int(fraction * float64(width))
	return lipgloss.NewStyle().Foreground(Primary).Render(
		strings.Repeat("█", filled) + strings.Repeat("░", width-filled))
}
