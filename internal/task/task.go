// Package task holds the task_statuses commands an agent uses to report
// that its work is over.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/event"
	"github.com/rs/zerolog/log"
)

// ShutdownError is returned by the shutdown command. Front-ends check for it
// with errors.As and stop serving.
type ShutdownError struct {
	Reason string
}

func (e *ShutdownError) Error() string {
	return "shutdown requested: " + e.Reason
}

// Reply is the text the agent sees for its own shutdown.
func (e *ShutdownError) Reply() string {
	return fmt.Sprintf("Shutting down: %s", e.Reason)
}

// IsShutdown reports whether err carries a shutdown request.
func IsShutdown(err error) (*ShutdownError, bool) {
	var s *ShutdownError
	if errors.As(err, &s) {
		return s, true
	}
	return nil, false
}

// Register adds the task commands to reg. Shutdown events go to bus, or the
// default bus when nil.
func Register(reg *command.Registry, bus *event.Bus) {
	if bus == nil {
		bus = event.Default()
	}
	reg.Register(command.New("shutdown",
		"All Tasks Complete / Nothing Left to Do (Shutdown)",
		command.CategoryTask,
		[]command.Arg{{Name: "reason", Description: "Why the agent is done", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
			var in struct {
				Reason string `json:"reason"`
			}
			if err := command.Decode(input, &in); err != nil {
				return nil, err
			}
			log.Info().Str("reason", in.Reason).Msg("shutting down")
			bus.PublishSync(event.Event{
				Type: event.AgentShutdown,
				Data: event.AgentShutdownData{Reason: in.Reason},
			})
			return nil, &ShutdownError{Reason: in.Reason}
		}), command.Always)
}
