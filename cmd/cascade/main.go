package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cascade",
		Short: "Multiplayer falling-blocks game server for terminals",
		Long: `Cascade is a co-op falling-blocks game played over the network.

Players connect with a plain terminal (netcat and "stty raw" is enough)
or through a websocket bridge, share a lobby with up to six people, and
play on one combined field with a single shared score.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
