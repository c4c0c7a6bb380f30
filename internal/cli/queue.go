package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/session"
)

var (
	queueLimit    int
	queueAddNext  bool
	queueAddAfter int64
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Show and edit the saved play queue",
	Long: `View and edit the play queue saved by the last 'spool play'.

Edits go straight to the media server. A running 'spool play' picks them up
the next time it re-fetches the queue.`,
	RunE: runQueueList,
}

var queueListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the queue",
	RunE:    runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <uri>...",
	Short: "Add library items to the queue",
	Long: `Add one or more library URIs to the queue.

Examples:
  spool queue add "library://x/item//library/metadata/42"
  spool queue add --next "library://x/item//library/metadata/42"
  spool queue add --after 1007 "library://x/item//library/metadata/42"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQueueAdd,
}

var queueRemoveCmd = &cobra.Command{
	Use:     "rm <item>",
	Aliases: []string{"remove"},
	Short:   "Remove an item from the queue",
	Args:    cobra.ExactArgs(1),
	RunE:    runQueueRemove,
}

var queueMoveCmd = &cobra.Command{
	Use:   "move <items> <before|after <item>|end>",
	Short: "Move items in the queue",
	Long: `Move one or more items, given as a comma-separated list, to a new
position. The moved items keep the order they were listed in.

Examples:
  spool queue move 1005 after 1001
  spool queue move 1009,1004,1006 before 1002
  spool queue move 1003 end`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runQueueMove,
}

var shuffleCmd = &cobra.Command{
	Use:   "shuffle",
	Short: "Toggle shuffle on the queue",
	Long:  `Shuffle the items after the selected one, or restore their original order.`,
	Args:  cobra.NoArgs,
	RunE:  runShuffle,
}

func init() {
	queueCmd.Flags().IntVarP(&queueLimit, "limit", "l", 50, "Maximum number of items to show")
	queueListCmd.Flags().IntVarP(&queueLimit, "limit", "l", 50, "Maximum number of items to show")
	queueAddCmd.Flags().BoolVar(&queueAddNext, "next", false, "Play after the selected item")
	queueAddCmd.Flags().Int64Var(&queueAddAfter, "after", 0, "Insert after this item")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	queueCmd.AddCommand(queueMoveCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(shuffleCmd)
}

// openRemote loads the saved queue for editing without playback.
func openRemote(ctx context.Context) (*session.Remote, error) {
	store, err := openSettings()
	if err != nil {
		return nil, err
	}
	return session.OpenRemote(ctx, cfg, store, session.WithLogger(logger))
}

func runQueueList(cmd *cobra.Command, args []string) error {
	r, err := openRemote(cmd.Context())
	if err != nil {
		return err
	}
	return printQueue(r.Queue())
}

func printQueue(q *core.Queue) error {
	if JSONOutput() {
		return printJSON(map[string]any{
			"queue_id":         q.ID,
			"selected_item_id": q.SelectedItemID,
			"shuffled":         q.Shuffled,
			"total":            q.TotalCount,
			"items":            queueRows(q, queueLimit),
		})
	}
	if q.Len() == 0 {
		fmt.Println("Queue is empty")
		return nil
	}
	renderQueue(os.Stdout, q, queueLimit)
	return nil
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	at := core.Placement{End: true}
	switch {
	case queueAddAfter > 0:
		at = core.Placement{After: queueAddAfter}
	case queueAddNext:
		at = core.Placement{Next: true}
	}

	r, err := openRemote(cmd.Context())
	if err != nil {
		return err
	}
	if err := r.Add(cmd.Context(), args, at); err != nil {
		return err
	}
	return printQueue(r.Queue())
}

func runQueueRemove(cmd *cobra.Command, args []string) error {
	id, err := oneID(args)
	if err != nil {
		return err
	}
	r, err := openRemote(cmd.Context())
	if err != nil {
		return err
	}
	if err := r.Remove(cmd.Context(), id); err != nil {
		return err
	}
	return printQueue(r.Queue())
}

func runQueueMove(cmd *cobra.Command, args []string) error {
	ids, err := parseIDs(args[:1])
	if err != nil {
		return err
	}
	target, err := parseDropTarget(args[1:])
	if err != nil {
		return err
	}
	r, err := openRemote(cmd.Context())
	if err != nil {
		return err
	}
	if err := r.Move(cmd.Context(), ids, target); err != nil {
		return err
	}
	return printQueue(r.Queue())
}

func runShuffle(cmd *cobra.Command, args []string) error {
	r, err := openRemote(cmd.Context())
	if err != nil {
		return err
	}
	if err := r.ToggleShuffle(cmd.Context()); err != nil {
		return err
	}
	if JSONOutput() {
		return printJSON(map[string]bool{"shuffled": r.Queue().Shuffled})
	}
	if r.Queue().Shuffled {
		fmt.Println("Shuffle on")
	} else {
		fmt.Println("Shuffle off")
	}
	return nil
}
