// Command messenger is the terminal client for the relay: it keeps a
// local SQLite history per device and talks to the relay over the
// realtime channel, with HTTP directory fallback.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "messenger",
	Short:         "Presence-aware messenger client",
	Long:          "Chat through a presence-aware relay. History is stored locally per device;\nthe relay itself keeps nothing.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
