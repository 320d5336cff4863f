package cmd

import (
	"github.com/spf13/cobra"

	"github.com/parleychat/parley/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Parley server",
	Args:  cobra.MaximumNArgs(0),
	Run:   runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer(_ *cobra.Command, _ []string) {
	s := server.New()
	s.RegisterRoutes()
	s.Start()
}
