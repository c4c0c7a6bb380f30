package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/tessro/spool/internal/audio/beepengine"
)

var (
	// Set via ldflags at build time
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Audio     bool   `json:"audio"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := versionInfo{
			Version:   Version,
			Commit:    Commit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
			Platform:  runtime.GOOS + "/" + runtime.GOARCH,
			Audio:     beepengine.Available,
		}
		if JSONOutput() {
			return printJSON(info)
		}

		fmt.Printf("spool %s\n", info.Version)
		if Verbose() {
			fmt.Printf("  %s %s\n", labelStyle.Render("commit:    "), info.Commit)
			fmt.Printf("  %s %s\n", labelStyle.Render("built:     "), info.BuildDate)
			fmt.Printf("  %s %s\n", labelStyle.Render("go version:"), info.GoVersion)
			fmt.Printf("  %s %s\n", labelStyle.Render("platform:  "), info.Platform)
			fmt.Printf("  %s %t\n", labelStyle.Render("audio:     "), info.Audio)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
