package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version is injected by GoReleaser via ldflags at build time
	Version = "dev"
	// Commit is injected by GoReleaser via ldflags at build time
	Commit = "none"
	// BuildDate is injected by GoReleaser via ldflags at build time
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the application version",
	Long:  `Displays the current running version of draconic-bonus alongside the build metadata.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprint(cmd.OutOrStdout(), versionText())
	},
}

func versionText() string {
	return fmt.Sprintf("draconic-bonus version %s\nCommit: %s\nBuild date: %s\nOS/Arch: %s/%s\n",
		Version, Commit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
