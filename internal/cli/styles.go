package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/playback"
)

// Colors
var (
	colorPrimary   = lipgloss.Color("#7C3AED") // Purple
	colorPlaying   = lipgloss.Color("#10B981") // Green
	colorWarning   = lipgloss.Color("#F59E0B") // Amber
	colorTextMuted = lipgloss.Color("#9CA3AF") // Gray
	colorTextDim   = lipgloss.Color("#6B7280") // Darker gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true)

	artistStyle = lipgloss.NewStyle().
			Foreground(colorTextMuted)

	labelStyle = lipgloss.NewStyle().
			Foreground(colorTextDim)

	highlightStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorPrimary)

	playingStyle = lipgloss.NewStyle().
			Foreground(colorPlaying)

	pausedStyle = lipgloss.NewStyle().
			Foreground(colorWarning)
)

// stateLabel renders a playback state with its icon.
func stateLabel(s playback.State) string {
	switch s {
	case playback.StatePlaying:
		return playingStyle.Render("▶ playing")
	case playback.StatePaused:
		return pausedStyle.Render("⏸ paused")
	case playback.StateLoading:
		return labelStyle.Render("… loading")
	default:
		return labelStyle.Render("■ stopped")
	}
}

// nowPlayingLines renders the now-playing block shown by status and the
// play console.
func nowPlayingLines(item *core.QueueItem, st core.PlayerState, state playback.State, volume int, repeat core.RepeatMode, shuffled bool) string {
	var b strings.Builder

	if item == nil {
		b.WriteString(stateLabel(playback.StateEmpty))
		b.WriteString("\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%s  %s\n", stateLabel(state), titleStyle.Render(item.Track.Title))
	fmt.Fprintf(&b, "   %s\n", artistStyle.Render(item.Track.Artist+" · "+item.Track.Album))
	fmt.Fprintf(&b, "   %s %s %s\n",
		FormatDuration(st.Position),
		highlightStyle.Render(FormatProgress(st.Position, st.Duration, 30)),
		FormatDuration(st.Duration))

	flags := []string{fmt.Sprintf("vol %d%%", volume), "repeat " + repeat.String()}
	if shuffled {
		flags = append(flags, "shuffled")
	}
	fmt.Fprintf(&b, "   %s\n", labelStyle.Render(strings.Join(flags, " · ")))
	return b.String()
}
