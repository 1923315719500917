package cmd

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/multiworker/internal/event"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#A78BFA") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#F87171") // Red
	mutedColor     = lipgloss.Color("#9CA3AF") // Gray

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	successStyle = lipgloss.NewStyle().Foreground(secondaryColor)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	nameStyle    = lipgloss.NewStyle().Bold(true).Width(12)
)

// statusIcon returns an icon for a task event kind
func statusIcon(kind event.Kind) string {
	switch kind {
	case event.KindStarted:
		return "●"
	case event.KindRetrying:
		return "⟳"
	case event.KindSucceeded:
		return "✓"
	case event.KindFailed:
		return "✗"
	default:
		return "○"
	}
}

// statusStyle returns the style for a task event kind
func statusStyle(kind event.Kind) lipgloss.Style {
	switch kind {
	case event.KindRetrying:
		return warningStyle
	case event.KindSucceeded:
		return successStyle
	case event.KindFailed:
		return errorStyle
	default:
		return mutedStyle
	}
}
