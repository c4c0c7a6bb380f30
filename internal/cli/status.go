package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessro/spool/internal/core"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/session"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved queue and playback settings",
	Long: `Shows the local playback settings and the item the media server has
selected in the saved queue.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusResult is the JSON shape of the status command.
type statusResult struct {
	Volume   int       `json:"volume"`
	Repeat   string    `json:"repeat"`
	QueueID  int64     `json:"queue_id,omitempty"`
	Shuffled bool      `json:"shuffled"`
	Total    int       `json:"total,omitempty"`
	Selected *queueRow `json:"selected,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, err := openSettings()
	if err != nil {
		return err
	}
	st := store.Get()

	result := statusResult{
		Volume: st.Volume,
		Repeat: st.Repeat.String(),
	}

	var q *core.Queue
	r, err := session.OpenRemote(cmd.Context(), cfg, store, session.WithLogger(logger))
	switch {
	case err == nil:
		q = r.Queue()
	case errors.Is(err, spoolerrors.ErrNoActiveQueue):
	default:
		return err
	}

	if q != nil {
		result.QueueID = q.ID
		result.Shuffled = q.Shuffled
		result.Total = q.TotalCount
		for _, row := range queueRows(q, 0) {
			if row.Selected {
				result.Selected = &row
				break
			}
		}
	}

	if JSONOutput() {
		return printJSON(result)
	}

	fmt.Println(titleStyle.Render("Spool"))
	flags := []string{fmt.Sprintf("vol %d%%", result.Volume), "repeat " + result.Repeat}
	if q == nil {
		fmt.Printf("  %s\n", labelStyle.Render(strings.Join(flags, " · ")))
		fmt.Printf("  %s\n", labelStyle.Render("No saved queue"))
		return nil
	}
	if q.Shuffled {
		flags = append(flags, "shuffled")
	}
	fmt.Printf("  %s\n", labelStyle.Render(strings.Join(flags, " · ")))
	fmt.Printf("  %s %d (%d items)\n", labelStyle.Render("queue"), q.ID, q.TotalCount)

	item := q.Selected()
	if item == nil {
		fmt.Printf("  %s\n", labelStyle.Render("Nothing selected"))
		return nil
	}
	fmt.Printf("  %s %s\n", highlightStyle.Render("▸"), titleStyle.Render(item.Track.Title))
	fmt.Printf("    %s\n", artistStyle.Render(item.Track.Artist+" · "+item.Track.Album))
	return nil
}
