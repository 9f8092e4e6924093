package ui

import "github.com/charmbracelet/lipgloss"

// Plain ANSI colours so the palette follows the user's terminal theme.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle is dimmed so descriptions recede behind names.
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	PromptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	ToolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	ReasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)
