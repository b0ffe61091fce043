package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcmd/internal/catalog"
)

var (
	catalogFormat   string
	catalogCategory string
	catalogQuery    string
)

var catalogCmd = &cobra.Command{
	Use:     "commands",
	Aliases: []string{"catalog"},
	Short:   "List available commands",
	Long: `List every registered command with its arguments and whether it is
enabled in the current environment.

Examples:
  agentcmd commands
  agentcmd commands --format json
  agentcmd commands --category git_operations
  agentcmd commands --jq '.[] | select(.enabled | not) | .name'`,
	Args: cobra.NoArgs,
	RunE: runCatalog,
}

func init() {
	catalogCmd.Flags().StringVarP(&catalogFormat, "format", "f", "markdown", "Output format (markdown|text|json|yaml)")
	catalogCmd.Flags().StringVarP(&catalogCategory, "category", "c", "", "Only show one category or plugin")
	catalogCmd.Flags().StringVarP(&catalogQuery, "jq", "q", "", "Filter the JSON catalog with a jq program (ignores --format)")
}

func runCatalog(cmd *cobra.Command, args []string) error {
	format, err := catalog.ParseFormat(catalogFormat)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	infos := catalog.Filter(a.Registry.Catalog(), catalogCategory)
	if catalogQuery != "" {
		return catalog.Query(os.Stdout, infos, catalogQuery)
	}
	return catalog.Render(os.Stdout, infos, format)
}
