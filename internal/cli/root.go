package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/tessro/spool/internal/config"
	spoolerrors "github.com/tessro/spool/internal/errors"
	"github.com/tessro/spool/internal/logging"
	"github.com/tessro/spool/internal/settings"
)

var (
	cfgFile string
	jsonOut bool
	verbose bool

	cfg       *config.Config
	logger    *log.Logger
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "spool",
	Short: "Play music from your media server with a server-side play queue",
	Long: `Spool plays tracks from a personal media server through a local gapless
audio engine while keeping the server's play queue in sync.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ~/.spoolrc)")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() error {
	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("%w: %v", spoolerrors.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", spoolerrors.ErrInvalidConfig, err)
	}

	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logger, logCloser, err = logging.Open(cfg.Log.File, level)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	return nil
}

// openSettings loads the local settings file named by the config.
func openSettings() (*settings.Store, error) {
	store, err := settings.NewStore(cfg.Settings.Path)
	if err != nil {
		return nil, err
	}
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return store, nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, spoolerrors.Format(err))
		os.Exit(1)
	}
}

// Config returns the loaded configuration.
func Config() *config.Config {
	return cfg
}

// JSONOutput returns true if JSON output is requested.
func JSONOutput() bool {
	return jsonOut
}

// Verbose returns true if verbose output is requested.
func Verbose() bool {
	return verbose
}
