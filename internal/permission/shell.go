package permission

import (
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellCommand represents a parsed program invocation with its arguments.
type ShellCommand struct {
	Name string   // Program name (e.g., "rm", "git")
	Args []string // Arguments as written, with expansions left symbolic
}

// ParseShellCommand parses a command line into the program invocations it
// contains, including those inside pipelines, chains and subshells.
func ParseShellCommand(line string) ([]ShellCommand, error) {
	parser := syntax.NewParser(
		syntax.Variant(syntax.LangBash),
		syntax.KeepComments(false),
	)

	file, err := parser.Parse(strings.NewReader(line), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var commands []ShellCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			name := wordToString(call.Args[0])
			if name == "" {
				return true
			}
			words := []string{name}
			for _, arg := range call.Args[1:] {
				words = append(words, wordToString(arg))
			}
			if words = Unwrap(words); len(words) > 0 {
				commands = append(commands, ShellCommand{Name: words[0], Args: words[1:]})
			}
		}
		return true
	})

	return commands, nil
}

// wrappers run their first operand as the command.
var wrappers = map[string]bool{"exec": true, "command": true, "builtin": true}

// Unwrap strips leading exec, command and builtin words, with their
// options, so that args[0] names the program that actually runs. A bare
// wrapper yields nil.
func Unwrap(args []string) []string {
	for len(args) > 0 && wrappers[filepath.Base(args[0])] {
		args = args[1:]
		for len(args) > 0 && strings.HasPrefix(args[0], "-") {
			done := args[0] == "--"
			args = args[1:]
			if done {
				break
			}
		}
	}
	return args
}

func wordToString(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		case *syntax.ParamExp:
			sb.WriteString("$" + p.Param.Value)
		case *syntax.CmdSubst:
			sb.WriteString("$()")
		}
	}
	return sb.String()
}

// Shell control modes.
const (
	ControlAllowlist = "allowlist"
	ControlDenylist  = "denylist"
)

// DefaultDenylist applies when denylist mode has no explicit list.
var DefaultDenylist = []string{"sudo", "su"}

// ShellPolicy decides which programs execute_shell may run.
type ShellPolicy struct {
	Control   string
	Allowlist []string
	Denylist  []string
}

// Check parses line and rejects it if any invoked program violates the policy.
func (p ShellPolicy) Check(line string) error {
	commands, err := ParseShellCommand(line)
	if err != nil {
		return err
	}
	if len(commands) == 0 {
		return fmt.Errorf("no command found in %q", line)
	}
	for _, c := range commands {
		if err := p.CheckProgram(c.Name); err != nil {
			return err
		}
	}
	return nil
}

// CheckProgram applies the policy to a single program name.
func (p ShellPolicy) CheckProgram(program string) error {
	name := filepath.Base(program)
	if p.mode() == ControlAllowlist {
		if !contains(p.Allowlist, name) {
			return fmt.Errorf("command %q is not in the allowlist", name)
		}
		return nil
	}
	deny := p.Denylist
	if len(deny) == 0 {
		deny = DefaultDenylist
	}
	if contains(deny, name) {
		return fmt.Errorf("command %q is denylisted", name)
	}
	return nil
}

func (p ShellPolicy) mode() string {
	if strings.EqualFold(p.Control, ControlAllowlist) {
		return ControlAllowlist
	}
	return ControlDenylist
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if strings.TrimSpace(item) == name {
			return true
		}
	}
	return false
}
