package ui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles shared across screens.
type Styles struct {
	Title    lipgloss.Style
	Subtle   lipgloss.Style
	Error    lipgloss.Style
	Notice   lipgloss.Style
	Selected lipgloss.Style
	Peer     lipgloss.Style
	Self     lipgloss.Style
	Pending  lipgloss.Style
	Frame    lipgloss.Style
}

// DefaultStyles returns the default terminal styling.
func DefaultStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62")),
		Subtle:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		Notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("178")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		Peer:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		Self:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		Pending:  lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		Frame:    lipgloss.NewStyle().Padding(0, 1),
	}
}
