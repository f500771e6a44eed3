package tui

import "github.com/charmbracelet/lipgloss"

var (
	tabActiveStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("245")).
		Padding(0, 2)

	statusBarStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("236")).
		Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("196"))

	selectedRowStyle = lipgloss.NewStyle().
		Bold(true).
		Background(lipgloss.Color("238"))

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)
