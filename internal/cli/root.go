package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentbus",
	Short: "Durable coordination runtime for multi-agent workflows",
	Long:  "An ordered, hash-chained event bus with human-in-the-loop approval gates,\ngraceful tool degradation, and history replay for coordinating AI agents.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.agentbus/config.yaml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
