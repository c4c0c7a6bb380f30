package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Colors
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorPlaying   = lipgloss.Color("#10B981") // Green
	colorWarning   = lipgloss.Color("#F59E0B") // Amber
	colorError     = lipgloss.Color("#EF4444") // Red
	colorTextMuted = lipgloss.Color("#9CA3AF") // Gray
	colorTextDim   = lipgloss.Color("#6B7280") // Darker gray
	colorCursor    = lipgloss.Color("237")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	accentStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	playingStyle = lipgloss.NewStyle().
			Foreground(colorPlaying)

	pausedStyle = lipgloss.NewStyle().
			Foreground(colorWarning)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorError)

	cursorStyle = lipgloss.NewStyle().
			Background(colorCursor)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorTextDim).
			Padding(0, 1)

	focusedBorder = borderStyle.
			BorderForeground(colorPrimary)
)

// formatTime renders d as m:ss, or h:mm:ss past an hour.
func formatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// progressBar draws a bar width cells wide.
func progressBar(pos, dur time.Duration, width int) string {
	filled := 0
	if dur > 0 {
		filled = int(float64(pos) / float64(dur) * float64(width))
	}
	filled = min(max(filled, 0), width)
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// truncate shortens s to limit runes, ending in an ellipsis.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}
