// Package watch implements the pipeline watch TUI: a live view over
// the stage-run history index.
package watch

import "github.com/charmbracelet/lipgloss"

// Theme centralizes all styling for the watch TUI.
type Theme struct {
	StatusOK     lipgloss.Style
	StatusFailed lipgloss.Style

	Border    lipgloss.Style
	Title     lipgloss.Style
	Header    lipgloss.Style
	Dim       lipgloss.Style
	Highlight lipgloss.Style
}

func NewDefaultTheme() Theme {
	purple := lipgloss.Color("#874BFD")

	return Theme{
		StatusOK:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")),

		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(purple),
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1),
		Header: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#61AFEF")),
		Dim: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")),
		Highlight: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")),
	}
}
