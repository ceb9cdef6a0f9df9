package output

import "github.com/charmbracelet/lipgloss"

// Styles holds the lipgloss styles used for text output. They are
// created per renderer so color detection follows the output stream.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Info    lipgloss.Style

	// Status markers with a fixed glyph, rendered via String().
	StatusActive   lipgloss.Style
	StatusInactive lipgloss.Style
}

func newStyles(lr *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1: lr.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "39"}),
		Header2: lr.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "61", Dark: "75"}),
		Bold:    lr.NewStyle().Bold(true),
		Muted:   lr.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "243"}),
		Success: lr.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"}),
		Warning: lr.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "214"}),
		Error:   lr.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"}),
		Info:    lr.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "26", Dark: "45"}),

		StatusActive:   lr.NewStyle().SetString("*").Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "42"}),
		StatusInactive: lr.NewStyle().SetString("-").Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "243"}),
	}
}
