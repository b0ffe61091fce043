package commands

import (
	"os"

	"github.com/spf13/cobra"

	mcpcommands "github.com/opencode-ai/agentcmd/pkg/mcpserver/commands"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve enabled commands over MCP stdio",
	Long: `Run an MCP server on stdin/stdout whose tools are the enabled commands.
Logs never go to stdout; use --print-logs to see them on stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		s := mcpcommands.NewServer(a.Registry, Version)
		return mcpcommands.Serve(cmd.Context(), s, os.Stdin, os.Stdout)
	},
}
