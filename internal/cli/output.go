package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/tessro/spool/internal/core"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// queueRow is the JSON shape of one queue item.
type queueRow struct {
	Position int    `json:"position"`
	ItemID   int64  `json:"item_id"`
	Selected bool   `json:"selected"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album"`
	Duration string `json:"duration"`
}

func queueRows(q *core.Queue, limit int) []queueRow {
	items := q.Items
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	rows := make([]queueRow, len(items))
	for i, it := range items {
		rows[i] = queueRow{
			Position: i + 1,
			ItemID:   it.ID,
			Selected: it.ID == q.SelectedItemID,
			Title:    it.Track.Title,
			Artist:   it.Track.Artist,
			Album:    it.Track.Album,
			Duration: FormatDuration(it.Track.Duration),
		}
	}
	return rows
}

// renderQueue draws the queue as a table, marking the selected item.
func renderQueue(w io.Writer, q *core.Queue, limit int) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"", "#", "ID", "Title", "Artist", "Album", "Time"})

	for _, r := range queueRows(q, limit) {
		tw.AppendRow(table.Row{
			StatusIcon(r.Selected),
			r.Position,
			r.ItemID,
			TruncateString(r.Title, 40),
			TruncateString(r.Artist, 28),
			TruncateString(r.Album, 28),
			r.Duration,
		})
	}
	if hidden := q.Len() - limit; limit > 0 && hidden > 0 {
		tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("… %d more", hidden)})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	tw.Render()
}

// StatusIcon returns an icon for the given boolean status.
func StatusIcon(active bool) string {
	if active {
		return "●"
	}
	return "○"
}

// TruncateString truncates a string to maxLen runes, adding "..." if
// truncated.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatDuration formats a duration as m:ss or h:mm:ss.
func FormatDuration(d time.Duration) string {
	seconds := int(d / time.Second)
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatProgress formats a progress bar.
func FormatProgress(current, total time.Duration, width int) string {
	if total <= 0 {
		return strings.Repeat("─", width)
	}

	filled := int(float64(current) / float64(total) * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}

// parseIDs parses item IDs given as separate arguments or comma lists.
func parseIDs(args []string) ([]int64, error) {
	var ids []int64
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid item id: %q", part)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no item ids given")
	}
	return ids, nil
}
