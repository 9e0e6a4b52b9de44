package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/DanielJandric/embeddingsall-sub000/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the agentic_query tool over MCP stdio",
	Long: `Serve the agentic_query tool to an MCP client over stdin/stdout.
Logs go to stderr.

Examples:
  propertyrag mcp
  propertyrag mcp --config ~/.config/propertyrag/config.yaml`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath, appOptions{stderrLogs: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "propertyrag",
		Version: version,
		Logger:  a.logger,
	}, a.service)
	if err != nil {
		return err
	}
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
