// Package shell provides execute_shell, which runs a command line inside the
// workspace through an embedded POSIX shell interpreter.
package shell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/permission"
	"github.com/opencode-ai/agentcmd/pkg/types"
	"github.com/rs/zerolog/log"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	DefaultTimeout  = 120 * time.Second
	MaxOutputLength = 30000
)

// DisabledReason is reported when local command execution is off.
const DisabledReason = "set EXECUTE_LOCAL_COMMANDS=true"

// Options configures execute_shell.
type Options struct {
	Enabled bool
	Policy  permission.ShellPolicy
	Timeout time.Duration
}

// OptionsFrom derives Options from the loaded configuration.
func OptionsFrom(cfg *types.Config) Options {
	opts := Options{Enabled: cfg.LocalCommandsAllowed()}
	if sc := cfg.Shell; sc != nil {
		opts.Policy = permission.ShellPolicy{
			Control:   sc.Control,
			Allowlist: sc.Allowlist,
			Denylist:  sc.Denylist,
		}
		if sc.Timeout > 0 {
			opts.Timeout = time.Duration(sc.Timeout) * time.Second
		}
	}
	return opts
}

// Register adds execute_shell to reg.
func Register(reg *command.Registry, opts Options) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	r := &runner{opts: opts}
	reg.Register(command.New("execute_shell", "Execute Shell Command, non-interactive commands only",
		command.CategoryShell,
		[]command.Arg{{Name: "command_line", Description: "The command line to execute", Required: true}},
		r.execute), command.Require(opts.Enabled, DisabledReason))
}

type runner struct {
	opts Options
}

func (r *runner) execute(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
	var in struct {
		CommandLine string `json:"command_line"`
	}
	if err := command.Decode(input, &in); err != nil {
		return nil, err
	}
	if err := r.opts.Policy.Check(in.CommandLine); err != nil {
		return nil, fmt.Errorf("not allowed to execute %q: %w", in.CommandLine, err)
	}

	dir, err := cctx.Resolve(".")
	if err != nil {
		return nil, err
	}

	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(in.CommandLine), "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %w", err)
	}

	var stdout, stderr bytes.Buffer
	sh, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, &stdout, &stderr),
		interp.CallHandler(r.callHandler),
		interp.ExecHandlers(r.execGuard),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	log.Debug().Str("dir", dir).Str("command", in.CommandLine).Msg("executing shell command")
	cctx.SetMetadata(in.CommandLine, map[string]any{"command": in.CommandLine})

	runErr := sh.Run(runCtx, file)
	exitCode := 0
	var status interp.ExitStatus
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		fmt.Fprintf(&stderr, "\n(Command timed out after %v)", r.opts.Timeout)
		exitCode = -1
	case runErr == nil:
	case errors.As(runErr, &status):
		exitCode = int(status)
	default:
		return nil, fmt.Errorf("failed to run command: %w", runErr)
	}

	output := fmt.Sprintf("STDOUT:\n%s\nSTDERR:\n%s", truncate(stdout.String()), truncate(stderr.String()))
	return &command.Result{
		Title:  in.CommandLine,
		Output: output,
		Metadata: map[string]any{
			"exit": exitCode,
		},
	}, nil
}

// callHandler re-checks programs at run time, catching names produced by
// expansions the static check only saw as "$VAR". Builtins reached through
// exec, command or builtin never hit the exec handler, so the wrapped name
// is checked here.
func (r *runner) callHandler(ctx context.Context, args []string) ([]string, error) {
	if prog := permission.Unwrap(args); len(prog) > 0 {
		if err := r.opts.Policy.CheckProgram(prog[0]); err != nil {
			return nil, err
		}
	}
	return args, nil
}

// execGuard checks every external program right before it starts.
func (r *runner) execGuard(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			if err := r.opts.Policy.CheckProgram(args[0]); err != nil {
				return err
			}
		}
		return next(ctx, args)
	}
}

func truncate(s string) string {
	if len(s) > MaxOutputLength {
		return s[:MaxOutputLength] + "\n\n(Output truncated)"
	}
	return s
}
