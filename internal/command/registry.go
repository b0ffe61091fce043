package command

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/oklog/ulid/v2"
	"github.com/opencode-ai/agentcmd/internal/event"
	"github.com/opencode-ai/agentcmd/internal/permission"
	"github.com/opencode-ai/agentcmd/pkg/types"
	"github.com/rs/zerolog/log"
)

// Gate records whether a command may run in this environment.
type Gate struct {
	Enabled bool
	Reason  string
}

// Always is the gate of commands with no environment requirement.
var Always = Gate{Enabled: true}

// Require enables a command only when cond holds; reason explains the
// switch the operator has to flip.
func Require(cond bool, reason string) Gate {
	if cond {
		return Always
	}
	return Gate{Reason: reason}
}

type entry struct {
	cmd   Command
	gate  Gate
	order int
}

// Registry manages command registration, lookup and invocation.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	next    int
	workDir string
	ws      *permission.Workspace
	config  *types.Config
	bus     *event.Bus
}

// NewRegistry creates an empty registry. Category and per-command switches
// in config are applied to every registered command.
func NewRegistry(workDir string, config *types.Config) *Registry {
	if config == nil {
		config = &types.Config{}
	}
	return &Registry{
		entries: make(map[string]*entry),
		workDir: workDir,
		ws:      permission.NewWorkspace(workDir, config.WorkspaceRestricted()),
		config:  config,
		bus:     event.Default(),
	}
}

// SetBus redirects invocation events to bus.
func (r *Registry) SetBus(bus *event.Bus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bus = bus
}

// WorkDir returns the workspace root commands run in.
func (r *Registry) WorkDir() string {
	return r.workDir
}

// Workspace returns the path resolver handed to every command.
func (r *Registry) Workspace() *permission.Workspace {
	return r.ws
}

// Register adds a command; a later registration under the same name
// replaces the earlier one but keeps its catalog position.
func (r *Registry) Register(cmd Command, gate Gate) {
	gate = r.applyConfig(cmd, gate)

	r.mu.Lock()
	defer r.mu.Unlock()

	order := r.next
	if old, ok := r.entries[cmd.Name()]; ok {
		order = old.order
	} else {
		r.next++
	}
	r.entries[cmd.Name()] = &entry{cmd: cmd, gate: gate, order: order}
	log.Debug().
		Str("command", cmd.Name()).
		Bool("enabled", gate.Enabled).
		Str("reason", gate.Reason).
		Msg("registered command")
}

func (r *Registry) applyConfig(cmd Command, gate Gate) Gate {
	if !gate.Enabled {
		return gate
	}
	// Plugin commands answer to both "plugins" and their plugin name.
	for _, category := range []string{cmd.Category(), pluginOf(cmd)} {
		if category != "" && r.config.CategoryDisabled(category) {
			return Gate{Reason: fmt.Sprintf("category %s listed in DISABLED_COMMAND_CATEGORIES", category)}
		}
	}
	if enabled, ok := r.config.Commands[cmd.Name()]; ok && !enabled {
		return Gate{Reason: "disabled in config"}
	}
	return gate
}

// Get retrieves a command by name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.cmd, true
}

// Gate returns the enablement of a registered command.
func (r *Registry) Gate(name string) (Gate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Gate{}, false
	}
	return e.gate, true
}

// sorted returns entries by category rank, plugin name, then registration order.
func (r *Registry) sorted() []*entry {
	r.mu.RLock()
	list := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		list = append(list, e)
	}
	r.mu.RUnlock()

	sort.SliceStable(list, func(i, j int) bool {
		ci, cj := rank(list[i].cmd.Category()), rank(list[j].cmd.Category())
		if ci != cj {
			return ci < cj
		}
		pi, pj := pluginOf(list[i].cmd), pluginOf(list[j].cmd)
		if pi != pj {
			return pi < pj
		}
		return list[i].order < list[j].order
	})
	return list
}

func rank(category string) int {
	if r, ok := categoryRank[category]; ok {
		return r
	}
	return len(categoryRank)
}

// List returns all registered commands in catalog order.
func (r *Registry) List() []Command {
	sorted := r.sorted()
	cmds := make([]Command, len(sorted))
	for i, e := range sorted {
		cmds[i] = e.cmd
	}
	return cmds
}

// Names returns all command names in catalog order.
func (r *Registry) Names() []string {
	sorted := r.sorted()
	names := make([]string, len(sorted))
	for i, e := range sorted {
		names[i] = e.cmd.Name()
	}
	return names
}

// Catalog describes every registered command, enabled or not.
func (r *Registry) Catalog() []types.CommandInfo {
	sorted := r.sorted()
	infos := make([]types.CommandInfo, 0, len(sorted))
	for _, e := range sorted {
		infos = append(infos, describe(e))
	}
	return infos
}

// Info describes one command.
func (r *Registry) Info(name string) (types.CommandInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return types.CommandInfo{}, false
	}
	return describe(e), true
}

func describe(e *entry) types.CommandInfo {
	args := make([]types.ArgInfo, 0, len(e.cmd.Args()))
	for _, a := range e.cmd.Args() {
		typ := a.Type
		if typ == "" {
			typ = "string"
		}
		args = append(args, types.ArgInfo{
			Name:        a.Name,
			Type:        typ,
			Description: a.Description,
			Required:    a.Required,
		})
	}
	return types.CommandInfo{
		Name:        e.cmd.Name(),
		Label:       e.cmd.Label(),
		Category:    e.cmd.Category(),
		Plugin:      pluginOf(e.cmd),
		Args:        args,
		Enabled:     e.gate.Enabled,
		DisabledFor: e.gate.Reason,
	}
}

// Invoke runs a command by name. Unknown and disabled commands fail
// without executing anything.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) (*Result, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	bus := r.bus
	r.mu.RUnlock()

	if !ok {
		return nil, &UnknownCommandError{Name: name, Suggestion: r.suggest(name)}
	}
	if !e.gate.Enabled {
		return nil, &DisabledError{Name: name, Reason: e.gate.Reason}
	}
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	if err := checkRequired(e.cmd, input); err != nil {
		return nil, err
	}

	cctx := &Context{
		CallID:    ulid.Make().String(),
		WorkDir:   r.workDir,
		Workspace: r.ws,
	}
	logger := log.With().Str("command", name).Str("callID", cctx.CallID).Logger()
	cctx.OnMetadata = func(title string, meta map[string]any) {
		logger.Debug().Str("title", title).Interface("meta", meta).Msg("progress")
	}

	bus.Publish(event.Event{
		Type: event.CommandStarted,
		Data: event.CommandStartedData{CallID: cctx.CallID, Command: name},
	})

	start := time.Now()
	result, err := e.cmd.Execute(ctx, input, cctx)
	elapsed := time.Since(start)

	finished := event.CommandFinishedData{
		CallID:     cctx.CallID,
		Command:    name,
		DurationMs: elapsed.Milliseconds(),
	}
	if err != nil {
		finished.Error = err.Error()
		logger.Warn().Err(err).Dur("elapsed", elapsed).Msg("command failed")
	} else {
		logger.Info().Dur("elapsed", elapsed).Msg("command executed")
	}
	bus.Publish(event.Event{Type: event.CommandFinished, Data: finished})

	return result, err
}

// checkRequired verifies every required argument is present and non-null.
func checkRequired(cmd Command, input json.RawMessage) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(input, &fields); err != nil {
		return fmt.Errorf("invalid input: %w", err)
	}
	for _, a := range cmd.Args() {
		if !a.Required {
			continue
		}
		raw, ok := fields[a.Name]
		if !ok || string(raw) == "null" {
			return &MissingArgError{Command: cmd.Name(), Arg: a.Name}
		}
	}
	return nil
}

// suggest returns the closest registered name, if it is close enough to be
// a plausible typo.
func (r *Registry) suggest(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	best, bestDist := "", -1
	for candidate := range r.entries {
		d := levenshtein.ComputeDistance(name, candidate)
		if bestDist < 0 || d < bestDist || (d == bestDist && candidate < best) {
			best, bestDist = candidate, d
		}
	}
	limit := max(2, len(name)/3)
	if bestDist < 0 || bestDist > limit {
		return ""
	}
	return best
}
