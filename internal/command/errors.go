package command

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownCommand is matched by every UnknownCommandError.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrDisabled is matched by every DisabledError.
	ErrDisabled = errors.New("command disabled")
)

// UnknownCommandError is returned when invoking a name nobody registered.
type UnknownCommandError struct {
	Name       string
	Suggestion string
}

func (e *UnknownCommandError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("unknown command %q (did you mean %q?)", e.Name, e.Suggestion)
	}
	return fmt.Sprintf("unknown command %q", e.Name)
}

func (e *UnknownCommandError) Unwrap() error { return ErrUnknownCommand }

// DisabledError is returned when invoking an env disabled command.
type DisabledError struct {
	Name   string
	Reason string
}

func (e *DisabledError) Error() string {
	return fmt.Sprintf("command %s is disabled: %s", e.Name, e.Reason)
}

func (e *DisabledError) Unwrap() error { return ErrDisabled }

// MissingArgError reports a required argument absent from the input.
type MissingArgError struct {
	Command string
	Arg     string
}

func (e *MissingArgError) Error() string {
	return fmt.Sprintf("%s: missing required argument %q", e.Command, e.Arg)
}

// Replier lets an error choose its own agent-facing text.
type Replier interface {
	Reply() string
}

// Reply renders an invocation outcome as the text an agent receives.
// Failures become "Error: <message>".
func Reply(result *Result, err error) string {
	if err != nil {
		var r Replier
		if errors.As(err, &r) {
			return r.Reply()
		}
		return "Error: " + err.Error()
	}
	if result == nil {
		return ""
	}
	return result.Output
}
