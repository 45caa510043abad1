package tui

import (
	"github.com/charmbracelet/lipgloss"
)

var (
	primaryColor   = lipgloss.Color("#7C3AED") // violet
	secondaryColor = lipgloss.Color("#10B981") // emerald
	warnColor      = lipgloss.Color("#F59E0B") // amber
	errorColor     = lipgloss.Color("#EF4444")
	successColor   = lipgloss.Color("#22C55E")

	fgColor     = lipgloss.Color("#CDD6F4")
	mutedColor  = lipgloss.Color("#6C7086")
	borderColor = lipgloss.Color("#45475A")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1).
			Padding(0, 1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	successStyle = lipgloss.NewStyle().
			Foreground(successColor).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	// headerStyle is the banner above the feed and the compose form.
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(fgColor).
			Background(primaryColor).
			Padding(0, 2).
			MarginBottom(1)

	inputLabelStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Bold(true)

	spinnerStyle = lipgloss.NewStyle().
			Foreground(warnColor)
)

// counterWarnRatio is the share of the content limit at which the counter turns amber.
const counterWarnRatio = 0.9

// counterStyle colours the content length counter as it approaches limit.
func counterStyle(n, limit int) lipgloss.Style {
	style := lipgloss.NewStyle().Padding(0, 1)
	switch {
	case n > limit:
		return style.Foreground(errorColor).Bold(true)
	case float64(n) >= float64(limit)*counterWarnRatio:
		return style.Foreground(warnColor)
	default:
		return style.Foreground(mutedColor)
	}
}
