// Package cmd contains the CLI setup and commands exposed to the user
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "parleyd",
	Short: "Parley real-time chat server",
	Long: `Parleyd is the session and message-routing server for Parley.

It binds each WebSocket connection to a unique display name, routes global
and private messages with delivery acknowledgements, keeps a bounded
in-memory message history, and broadcasts roster changes and typing
indicators. All state is volatile and lost on restart.`,
}

// Execute executes the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
