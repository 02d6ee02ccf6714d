package tui

import "github.com/charmbracelet/lipgloss"

var (
	AccentColor  = lipgloss.Color("#A78BFA") // violet-400
	SuccessColor = lipgloss.Color("#10B981") // green
	ErrorColor   = lipgloss.Color("#F87171") // red-400
	MutedColor   = lipgloss.Color("#9CA3AF") // gray

	Title   = lipgloss.NewStyle().Bold(true).Foreground(AccentColor)
	Accent  = lipgloss.NewStyle().Foreground(AccentColor)
	Success = lipgloss.NewStyle().Foreground(SuccessColor)
	Failure = lipgloss.NewStyle().Bold(true).Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)
)
