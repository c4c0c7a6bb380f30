package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tessro/spool/internal/audio/beepengine"
	"github.com/tessro/spool/internal/session"
	"github.com/tessro/spool/internal/tail"
	"github.com/tessro/spool/internal/tui"
)

var (
	playShuffle   bool
	playStart     string
	playPaused    bool
	playNoEmoji   bool
	playTimestamp bool
	playFormat    string
)

var playCmd = &cobra.Command{
	Use:   "play <uri>",
	Short: "Build a play queue from a library URI and play it",
	Long: `Create a play queue on the media server from a library URI, such as an
album, playlist or single track, and play it through the local audio engine.

Playback runs in a full-screen player. Press ? for the keys and : for the
console commands; q or Ctrl+C stops playback and keeps the queue for
'spool resume'.

Examples:
  spool play "library://x/directory//library/metadata/1234"
  spool play --shuffle "library://x/directory//library/metadata/1234"
  spool play --start 5678 "library://x/directory//library/metadata/1234"`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Reopen the last queue",
	Long: `Re-fetch the queue saved by the last run and load its selected item,
paused. Press space in the player to start playing.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func init() {
	for _, c := range []*cobra.Command{playCmd, resumeCmd} {
		c.Flags().BoolVar(&playNoEmoji, "no-emoji", false, "disable emoji in event lines")
		c.Flags().BoolVarP(&playTimestamp, "timestamp", "t", false, "show timestamps on event lines")
		c.Flags().StringVarP(&playFormat, "format", "f", "", "custom event line template")
	}
	playCmd.Flags().BoolVarP(&playShuffle, "shuffle", "s", false, "shuffle the new queue")
	playCmd.Flags().StringVar(&playStart, "start", "", "rating key of the track to start from")
	playCmd.Flags().BoolVar(&playPaused, "paused", false, "load the first track without playing it")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(resumeCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	if playPaused {
		cfg.Playback.Autoplay = false
	}
	return runConsole(cmd.Context(), func(ctx context.Context, s *session.Session) error {
		return s.PlayURI(ctx, args[0], playShuffle, playStart)
	})
}

func runResume(cmd *cobra.Command, args []string) error {
	return runConsole(cmd.Context(), func(ctx context.Context, s *session.Session) error {
		return s.Restore(ctx)
	})
}

// openSession builds a session on the local audio device.
func openSession() (*session.Session, error) {
	store, err := openSettings()
	if err != nil {
		return nil, err
	}
	eng, err := beepengine.New(beepengine.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	s := session.New(cfg, store, eng, session.WithLogger(logger))
	s.Start(context.Background())
	return s, nil
}

// runConsole starts playback and shows the player until the queue ends,
// the user quits, or the process is interrupted.
func runConsole(parent context.Context, start func(context.Context, *session.Session) error) error {
	if _, err := tail.ParseTemplate(playFormat); err != nil {
		return err
	}
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			logger.Warn("failed to close audio engine", "err", cerr)
		}
	}()

	if err := start(ctx, s); err != nil {
		return err
	}

	formatter := tail.NewFormatter(
		tail.WithEmoji(!playNoEmoji),
		tail.WithTimestamp(playTimestamp),
		tail.WithTemplate(playFormat),
	)
	watcher := tail.NewWatcher(s, time.Second)
	go func() { _ = watcher.Start(ctx) }()
	defer watcher.Stop()

	c := &console{s: s}
	ended, err := tui.Run(ctx, s,
		tui.WithEvents(watcher.Events(), formatter.Format),
		tui.WithCommandLine(c.run),
	)
	if err != nil {
		return err
	}
	if ended {
		fmt.Println("End of queue")
	}
	return nil
}
