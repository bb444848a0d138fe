package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "botchat",
	Short: "botchat simulates a group chat full of bots",
	Long: `botchat runs a handful of simulated chat regulars that post into a shared
conversation at human-like intervals, optionally using an OpenAI model for
their lines.`,
}

func main() {
	rootCmd.Version = Version
	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
