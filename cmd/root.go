package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/parley-labs/Parley/cli/internal/ui"
	"github.com/parley-labs/Parley/cli/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "parley",
	Short:   "Terminal client for Parley video meetings over WebRTC",
	Long: `Parley is a command-line client for real-time video meetings. It joins
a meeting room over a WebSocket signaling channel, publishes your microphone
and camera through WebRTC, and receives every other participant's feed, all
from the terminal.`,
	Version: version.Version,
}

// Execute runs the CLI. An interrupt cancels the command context so a
// running meeting can leave cleanly instead of dying mid-session.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
