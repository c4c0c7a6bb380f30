package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tessro/spool/internal/core"
	"github.com/tessro/spool/internal/settings"
)

var (
	volumeUp   bool
	volumeDown bool
)

var volumeCmd = &cobra.Command{
	Use:   "volume [level]",
	Short: "Set or adjust volume",
	Long: `Set the playback volume (0-100) or adjust it up/down.

A running 'spool play' applies the change as soon as the settings file is
written.

Examples:
  spool volume 50      # Set volume to 50%
  spool volume --up    # Increase volume by 10%
  spool volume --down  # Decrease volume by 10%`,
	Args: cobra.MaximumNArgs(1),
	RunE: runVolume,
}

var repeatCmd = &cobra.Command{
	Use:   "repeat [off|one|all]",
	Short: "Set or cycle the repeat mode",
	Long: `Set the repeat mode. Without an argument, cycles off → all → one → off.

The mode is sent to the media server the next time the queue is fetched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRepeat,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the saved queue",
	Long:  `Clear the saved queue so 'spool resume' has nothing to reopen.`,
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func init() {
	volumeCmd.Flags().BoolVar(&volumeUp, "up", false, "Increase volume by 10%")
	volumeCmd.Flags().BoolVar(&volumeDown, "down", false, "Decrease volume by 10%")

	rootCmd.AddCommand(volumeCmd)
	rootCmd.AddCommand(repeatCmd)
	rootCmd.AddCommand(resetCmd)
}

func runVolume(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !volumeUp && !volumeDown {
		return fmt.Errorf("specify a volume level or use --up/--down")
	}

	store, err := openSettings()
	if err != nil {
		return err
	}

	var level int
	if len(args) > 0 {
		if level, err = parseVolume(args[0]); err != nil {
			return err
		}
	}

	err = store.Update(func(st *settings.Settings) {
		switch {
		case volumeUp:
			st.Volume += 10
		case volumeDown:
			st.Volume -= 10
		default:
			st.Volume = level
		}
	})
	if err != nil {
		return err
	}

	volume := store.Get().Volume
	if JSONOutput() {
		return printJSON(map[string]int{"volume": volume})
	}
	fmt.Printf("Volume: %s\n", highlightStyle.Render(strconv.Itoa(volume)+"%"))
	return nil
}

func runRepeat(cmd *cobra.Command, args []string) error {
	store, err := openSettings()
	if err != nil {
		return err
	}

	mode := store.Get().Repeat.Cycle()
	if len(args) > 0 {
		if mode, err = core.ParseRepeatMode(args[0]); err != nil {
			return err
		}
	}

	if err := store.Update(func(st *settings.Settings) { st.Repeat = mode }); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]string{"repeat": mode.String()})
	}
	fmt.Printf("Repeat: %s\n", highlightStyle.Render(mode.String()))
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	store, err := openSettings()
	if err != nil {
		return err
	}
	if err := store.Update(func(st *settings.Settings) { st.LastQueueID = core.NoQueue }); err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(map[string]string{"status": "reset"})
	}
	fmt.Println("Saved queue cleared")
	return nil
}
