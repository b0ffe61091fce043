// Package main provides the entry point for the agentcmd CLI.
package main

import (
	"fmt"
	"os"

	"github.com/opencode-ai/agentcmd/cmd/agentcmd/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
