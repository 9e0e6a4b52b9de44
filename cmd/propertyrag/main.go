// Propertyrag answers questions about a Swiss property portfolio by
// planning tool calls over structured data and document passages.
//
// Usage:
//
//	# Serve the HTTP API
//	propertyrag serve
//
//	# Serve MCP on stdio
//	propertyrag mcp
//
//	# Ask one question in-process
//	propertyrag query "rendement avenue de la gare 12 martigny"
//
// Configuration is read from ~/.config/propertyrag/config.yaml (or --config)
// and PROPERTYRAG_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "propertyrag",
	Short: "Agentic retrieval over a Swiss property portfolio",
	Long: `propertyrag plans tool calls for a natural-language question, validates
the result, scores its confidence and corrects or replans low-confidence
answers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/propertyrag/config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "propertyrag %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", gitCommit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", buildDate)
	},
}
