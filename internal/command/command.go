package command

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/opencode-ai/agentcmd/internal/permission"
)

// Built-in command categories, in catalog order.
const (
	CategoryFile   = "file_operations"
	CategoryGit    = "git_operations"
	CategoryShell  = "execute_code"
	CategoryTask   = "task_statuses"
	CategoryPlugin = "plugins"
)

var categoryRank = map[string]int{
	CategoryFile:   0,
	CategoryGit:    1,
	CategoryShell:  2,
	CategoryTask:   3,
	CategoryPlugin: 4,
}

// Command defines the interface for all agent commands.
type Command interface {
	// Name returns the identifier agents use to invoke the command.
	Name() string

	// Label returns the short human-readable description.
	Label() string

	// Category returns the grouping the command belongs to.
	Category() string

	// Args returns the ordered argument signature.
	Args() []Arg

	// Execute runs the command with JSON encoded arguments.
	Execute(ctx context.Context, input json.RawMessage, cctx *Context) (*Result, error)
}

// Plugged is implemented by commands contributed by a third-party plugin.
type Plugged interface {
	Plugin() string
}

// Arg describes one command argument.
type Arg struct {
	Name        string
	Type        string // JSON schema type; empty means "string"
	Description string
	Required    bool
}

// Context provides execution context to commands.
type Context struct {
	CallID    string
	WorkDir   string
	Workspace *permission.Workspace

	// OnMetadata receives progress updates from long-running commands.
	OnMetadata func(title string, meta map[string]any)
}

// Resolve maps a path argument into the workspace.
func (c *Context) Resolve(path string) (string, error) {
	if c.Workspace == nil {
		c.Workspace = permission.NewWorkspace(c.WorkDir, true)
	}
	return c.Workspace.Resolve(path)
}

// SetMetadata reports progress if a listener is attached.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c != nil && c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// Result represents the output of a command execution.
type Result struct {
	Title    string         `json:"title"`
	Output   string         `json:"output"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Func is the signature of a command body.
type Func func(ctx context.Context, input json.RawMessage, cctx *Context) (*Result, error)

// BaseCommand implements Command from plain values.
type BaseCommand struct {
	name     string
	label    string
	category string
	plugin   string
	args     []Arg
	execute  Func
}

// New creates a built-in command.
func New(name, label, category string, args []Arg, execute Func) *BaseCommand {
	return &BaseCommand{
		name:     name,
		label:    label,
		category: category,
		args:     args,
		execute:  execute,
	}
}

// NewPlugin creates a command attributed to a third-party plugin.
func NewPlugin(plugin, name, label string, args []Arg, execute Func) *BaseCommand {
	c := New(name, label, CategoryPlugin, args, execute)
	c.plugin = plugin
	return c
}

func (c *BaseCommand) Name() string     { return c.name }
func (c *BaseCommand) Label() string    { return c.label }
func (c *BaseCommand) Category() string { return c.category }
func (c *BaseCommand) Args() []Arg      { return c.args }
func (c *BaseCommand) Plugin() string   { return c.plugin }

func (c *BaseCommand) Execute(ctx context.Context, input json.RawMessage, cctx *Context) (*Result, error) {
	return c.execute(ctx, input, cctx)
}

// Decode unmarshals command input into v.
func Decode(input json.RawMessage, v any) error {
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(input, v); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	return nil
}

// Schema builds the JSON schema object for an argument list.
func Schema(args []Arg) json.RawMessage {
	props := make(map[string]any, len(args))
	required := make([]string, 0, len(args))
	for _, a := range args {
		typ := a.Type
		if typ == "" {
			typ = "string"
		}
		prop := map[string]any{"type": typ}
		if a.Description != "" {
			prop["description"] = a.Description
		}
		if typ == "array" {
			prop["items"] = map[string]any{"type": "string"}
		}
		props[a.Name] = prop
		if a.Required {
			required = append(required, a.Name)
		}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	data, _ := json.Marshal(schema)
	return data
}

// pluginOf returns the plugin name of cmd, or "".
func pluginOf(cmd Command) string {
	if p, ok := cmd.(Plugged); ok {
		return p.Plugin()
	}
	return ""
}
