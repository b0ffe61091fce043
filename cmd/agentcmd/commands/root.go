// Package commands provides the CLI commands for agentcmd.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcmd/internal/app"
	"github.com/opencode-ai/agentcmd/internal/config"
	"github.com/opencode-ai/agentcmd/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	workspace string
)

var rootCmd = &cobra.Command{
	Use:   "agentcmd",
	Short: "agentcmd - commands for autonomous agents",
	Long: `agentcmd exposes file, git, shell, task and plugin commands that an
autonomous agent can invoke by name with JSON arguments.

Run 'agentcmd commands' to see the catalog, 'agentcmd run <name>' to invoke
a single command, or 'agentcmd serve' / 'agentcmd mcp' to serve them.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: configured workspace or current directory)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("agentcmd %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pipeCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setupLogging sends logs to stderr with --print-logs and to the state
// directory otherwise, so stdout stays clean for replies and MCP frames.
func setupLogging(cmd *cobra.Command, args []string) error {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(logLevel)
	if printLogs {
		cfg.Output = os.Stderr
		cfg.Pretty = true
	} else {
		cfg.File = config.DefaultPaths().LogFile()
	}
	return logging.Init(cfg)
}

// newApp builds the runtime for the --workspace flag.
func newApp() (*app.App, error) {
	dir := workspace
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		dir = abs
	}
	return app.New(app.Options{WorkDir: dir})
}
