// Package ui provides the styles and key bindings of the interactive menu.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme colors.
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"}
	ColorText    = lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"}
)

// Styles contains the lipgloss styles of the menu.
type Styles struct {
	App            lipgloss.Style
	Title          lipgloss.Style
	Subtitle       lipgloss.Style
	ListItem       lipgloss.Style
	ListItemActive lipgloss.Style
	Description    lipgloss.Style
	Success        lipgloss.Style
	Warning        lipgloss.Style
	Error          lipgloss.Style
	Help           lipgloss.Style
	HelpKey        lipgloss.Style
}

// DefaultStyles returns the default menu styles.
func DefaultStyles() Styles {
	return Styles{
		App: lipgloss.NewStyle().
			Padding(1, 2),

		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		Subtitle: lipgloss.NewStyle().
			Foreground(ColorMuted).
			MarginBottom(1),

		ListItem: lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(ColorText),

		ListItemActive: lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(ColorPrimary).
			Bold(true),

		Description: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Success: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		Warning: lipgloss.NewStyle().
			Foreground(ColorWarning),

		Error: lipgloss.NewStyle().
			Foreground(ColorError),

		Help: lipgloss.NewStyle().
			Foreground(ColorMuted),

		HelpKey: lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true),
	}
}

// WithWidth returns styles adapted for a terminal width.
func (s Styles) WithWidth(width int) Styles {
	s.App = s.App.Width(width)
	return s
}
