// Package util provides the text and time formatting shared by the engine
// logs, the transcript writer and the terminal printer.
package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Ellipsis marks text that was cut short.
const Ellipsis = "..."

// OneLine collapses every run of whitespace, newlines included, into a
// single space and trims the ends.
func OneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Preview returns s on one line, cut to at most maxRunes runes including the
// ellipsis. It is meant for log attributes, not terminal output.
func Preview(s string, maxRunes int) string {
	s = OneLine(s)
	if maxRunes <= len(Ellipsis) {
		return Ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes-len(Ellipsis)]) + Ellipsis
}

// FitWidth cuts s to at most width terminal columns. Styling escape codes are
// preserved and wide characters count for their display width.
func FitWidth(s string, width int) string {
	if width <= len(Ellipsis) {
		return Ellipsis
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, Ellipsis)
}

// FormatElapsed renders d as zero-padded MM:SS. Minutes are not wrapped at
// an hour, so 75 minutes is "75:00". Negative durations render as "00:00".
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
