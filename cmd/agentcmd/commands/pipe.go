package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/task"
)

// maxLineSize bounds a single request line.
const maxLineSize = 10 * 1024 * 1024

var pipeCmd = &cobra.Command{
	Use:   "pipe",
	Short: "Execute commands read as JSON lines from stdin",
	Long: `Read one request per line from stdin and write one reply per line to
stdout. Requests look like

  {"command": {"name": "read_file", "args": {"filename": "go.mod"}}}

and replies like

  {"command": "read_file", "reply": "module ..."}

The loop ends at end of input or after the shutdown command.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return servePipe(cmd.Context(), a.Registry, os.Stdin, os.Stdout)
	},
}

type pipeReply struct {
	Command string `json:"command"`
	Reply   string `json:"reply"`
}

// servePipe answers each request line on in with a reply line on out.
func servePipe(ctx context.Context, reg *command.Registry, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		name, input, err := parseRequest(line)
		var reply string
		var stop bool
		if err != nil {
			reply = command.Reply(nil, err)
		} else {
			result, err := reg.Invoke(ctx, name, input)
			reply = command.Reply(result, err)
			_, stop = task.IsShutdown(err)
		}

		if err := enc.Encode(pipeReply{Command: name, Reply: reply}); err != nil {
			return err
		}
		if stop {
			log.Info().Msg("pipe stopped by shutdown")
			return nil
		}
	}
	return scanner.Err()
}

func parseRequest(line string) (string, json.RawMessage, error) {
	if !gjson.Valid(line) {
		return "", nil, errInvalidRequest("line is not valid JSON")
	}
	name := gjson.Get(line, "command.name")
	if name.Type != gjson.String || name.String() == "" {
		return "", nil, errInvalidRequest("missing command.name")
	}
	args := gjson.Get(line, "command.args")
	if !args.Exists() || args.Type == gjson.Null {
		return name.String(), json.RawMessage(`{}`), nil
	}
	if !args.IsObject() {
		return name.String(), nil, errInvalidRequest("command.args must be an object")
	}
	return name.String(), json.RawMessage(args.Raw), nil
}

type errInvalidRequest string

func (e errInvalidRequest) Error() string { return "invalid request: " + string(e) }
