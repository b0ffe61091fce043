package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/task"
)

var (
	runArgs  []string
	runInput string
)

var runCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Invoke a single command",
	Long: `Invoke one command by name and print the reply an agent would receive.

Arguments come from --input as a JSON object, from --arg key=value pairs, or
both (pairs win). Values of integer, number, boolean, array and object
arguments are parsed as JSON.

Examples:
  agentcmd run read_file --arg filename=README.md
  agentcmd run list_files --input '{"directory":"internal","ignore":["*_test.go"]}'
  agentcmd run shutdown --arg reason="nothing left"`,
	Args: cobra.ExactArgs(1),
	RunE: runCommand,
}

func init() {
	runCmd.Flags().StringArrayVarP(&runArgs, "arg", "a", nil, "Argument as key=value (repeatable)")
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "Arguments as a JSON object")
}

func runCommand(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	name := args[0]
	var argDefs []command.Arg
	if c, ok := a.Registry.Get(name); ok {
		argDefs = c.Args()
	}
	input, err := buildInput(argDefs, runInput, runArgs)
	if err != nil {
		return err
	}

	result, err := a.Registry.Invoke(cmd.Context(), name, input)
	reply := command.Reply(result, err)
	if err != nil {
		if _, ok := task.IsShutdown(err); ok {
			fmt.Println(reply)
			return nil
		}
		fmt.Fprintln(os.Stderr, color.New(color.FgRed).Sprint(reply))
		return fmt.Errorf("%s failed", name)
	}
	fmt.Println(reply)
	return nil
}

// buildInput merges a JSON object with key=value pairs into command input.
func buildInput(argDefs []command.Arg, raw string, pairs []string) (json.RawMessage, error) {
	fields := map[string]any{}
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("invalid --input: %w", err)
		}
	}

	types := map[string]string{}
	for _, a := range argDefs {
		types[a.Name] = a.Type
	}

	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --arg %q, want key=value", pair)
		}
		switch types[key] {
		case "integer", "number", "boolean", "array", "object":
			var v any
			if err := json.Unmarshal([]byte(value), &v); err != nil {
				return nil, fmt.Errorf("argument %s: %w", key, err)
			}
			fields[key] = v
		default:
			fields[key] = value
		}
	}
	return json.Marshal(fields)
}
