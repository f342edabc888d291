package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
)

// rootCmd is the entry point when the binary is invoked without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "mcpserver",
	Short: "An MCP server framework: tool registry, workflows, and plugins over STDIO or HTTP",
	Long: `mcpserver hosts Model Context Protocol tools and workflows behind a single
binary. It speaks MCP over STDIO or streamable HTTP, discovers plugins from
a manifest directory, and - when HTTP is selected - fronts itself with a
built-in OAuth 2.1 authorization server.

Configuration is entirely environment-driven; see SPEC_FULL.md section 6
for the full variable list. Run 'mcpserver serve' to start the server.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main() to
// inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute runs the root command, exiting the process with a non-zero
// status on failure.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpserver version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
