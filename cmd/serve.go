package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mcpkit/mcpserver/internal/app"
)

// serveDebug enables verbose (debug-level) logging.
var serveDebug bool

// serveCmd starts the server and blocks until it is told to stop.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Starts the MCP server: loads configuration from the environment, wires the
tool registry, workflow engine, and configured plugins, then begins
accepting MCP connections over the configured transport (STDIO or HTTP).

The process runs until it receives SIGINT/SIGTERM or its context is
cancelled, then shuts down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Run(ctx, app.Options{Debug: serveDebug}); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

func init() {
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
}
