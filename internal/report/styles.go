package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/testsmell/internal/taxonomy"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers (e.g. the assembly name).
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// SeverityError through SeverityInfo color-code violations.
	SeverityError   lipgloss.Style
	SeverityWarning lipgloss.Style
	SeverityInfo    lipgloss.Style

	// Type styles declaring-type nodes of the violation tree.
	Type lipgloss.Style

	// Clean styles tests without violations.
	Clean lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// Fail styles analysis failures.
	Fail lipgloss.Style

	// Border is used for table borders and tree branches.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		SeverityError:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		SeverityWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		SeverityInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("75")),

		Type:  lipgloss.NewStyle().Bold(true),
		Clean: lipgloss.NewStyle().Foreground(lipgloss.Color("40")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		Fail: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// SeverityStyle returns the appropriate style for a severity.
func (s Styles) SeverityStyle(sev taxonomy.Severity) lipgloss.Style {
	switch sev {
	case taxonomy.SeverityError:
		return s.SeverityError
	case taxonomy.SeverityWarning:
		return s.SeverityWarning
	case taxonomy.SeverityInfo:
		return s.SeverityInfo
	default:
		return s.Muted
	}
}
