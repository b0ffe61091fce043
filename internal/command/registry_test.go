package command

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opencode-ai/agentcmd/internal/event"
	"github.com/opencode-ai/agentcmd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoCommand(name, category string) *BaseCommand {
	return New(name, "Echo "+name, category,
		[]Arg{{Name: "text", Required: true}},
		func(ctx context.Context, input json.RawMessage, cctx *Context) (*Result, error) {
			var in struct {
				Text string `json:"text"`
			}
			if err := Decode(input, &in); err != nil {
				return nil, err
			}
			return &Result{Title: name, Output: in.Text}, nil
		})
}

func failingCommand(name string) *BaseCommand {
	return New(name, "Fails", CategoryFile, nil,
		func(ctx context.Context, input json.RawMessage, cctx *Context) (*Result, error) {
			return nil, errors.New("boom")
		})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("read_file", CategoryFile), Always)

	cmd, ok := r.Get("read_file")
	require.True(t, ok)
	assert.Equal(t, "read_file", cmd.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_CatalogOrder(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("shutdown", CategoryTask), Always)
	r.Register(echoCommand("git_add", CategoryGit), Always)
	r.Register(NewPlugin("wikipedia", "wikipedia_search", "Search", nil, nil), Always)
	r.Register(NewPlugin("asana", "asana_create_task", "Create", nil, nil), Always)
	r.Register(echoCommand("write_to_file", CategoryFile), Always)
	r.Register(echoCommand("read_file", CategoryFile), Always)

	assert.Equal(t, []string{
		"write_to_file", "read_file",
		"git_add",
		"shutdown",
		"asana_create_task", "wikipedia_search",
	}, r.Names())
}

func TestRegistry_ReplaceKeepsPosition(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("a", CategoryFile), Always)
	r.Register(echoCommand("b", CategoryFile), Always)
	r.Register(echoCommand("a", CategoryFile), Require(false, "off"))

	assert.Equal(t, []string{"a", "b"}, r.Names())
	gate, ok := r.Gate("a")
	require.True(t, ok)
	assert.False(t, gate.Enabled)
}

func TestRegistry_Invoke(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("echo", CategoryFile), Always)

	result, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, "hi", result.Output)
	assert.Equal(t, "hi", Reply(result, err))
}

func TestRegistry_InvokeUnknownSuggests(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("write_to_file", CategoryFile), Always)

	_, err := r.Invoke(context.Background(), "write_to_fil", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownCommand))

	var unknown *UnknownCommandError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "write_to_file", unknown.Suggestion)

	_, err = r.Invoke(context.Background(), "completely_different", nil)
	require.True(t, errors.As(err, &unknown))
	assert.Empty(t, unknown.Suggestion)
}

func TestRegistry_InvokeDisabled(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	called := false
	r.Register(New("download_file", "Download File", CategoryFile, nil,
		func(ctx context.Context, input json.RawMessage, cctx *Context) (*Result, error) {
			called = true
			return &Result{}, nil
		}), Require(false, "set ALLOW_DOWNLOADS=true"))

	result, err := r.Invoke(context.Background(), "download_file", nil)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, ErrDisabled))
	assert.False(t, called, "disabled command must not execute")
	assert.Equal(t, "Error: command download_file is disabled: set ALLOW_DOWNLOADS=true", Reply(result, err))
}

func TestRegistry_ConfigSwitches(t *testing.T) {
	cfg := &types.Config{
		DisabledCategories: []string{"git_operations", "discord"},
		Commands:           map[string]bool{"delete_file": false, "read_file": true},
	}
	r := NewRegistry("/tmp", cfg)
	r.Register(echoCommand("git_add", CategoryGit), Always)
	r.Register(echoCommand("delete_file", CategoryFile), Always)
	r.Register(echoCommand("read_file", CategoryFile), Always)
	r.Register(NewPlugin("discord", "discord_send_message", "Send", nil, nil), Always)

	for name, want := range map[string]bool{
		"git_add":              false,
		"delete_file":          false,
		"read_file":            true,
		"discord_send_message": false,
	} {
		gate, ok := r.Gate(name)
		require.True(t, ok, name)
		assert.Equal(t, want, gate.Enabled, name)
		if !want {
			assert.NotEmpty(t, gate.Reason, name)
		}
	}
}

func TestRegistry_PluginsCategorySwitch(t *testing.T) {
	r := NewRegistry("/tmp", &types.Config{DisabledCategories: []string{"plugins"}})
	r.Register(NewPlugin("wikipedia", "wikipedia_search", "Search", nil, nil), Always)
	r.Register(echoCommand("read_file", CategoryFile), Always)

	gate, ok := r.Gate("wikipedia_search")
	require.True(t, ok)
	assert.False(t, gate.Enabled)
	assert.Contains(t, gate.Reason, "plugins")

	gate, _ = r.Gate("read_file")
	assert.True(t, gate.Enabled)
}

func TestRegistry_MissingRequiredArg(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(echoCommand("echo", CategoryFile), Always)

	_, err := r.Invoke(context.Background(), "echo", json.RawMessage(`{}`))
	var missing *MissingArgError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "text", missing.Arg)

	_, err = r.Invoke(context.Background(), "echo", json.RawMessage(`not json`))
	assert.Error(t, err)
}

func TestRegistry_InvokeError(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(failingCommand("bad"), Always)

	result, err := r.Invoke(context.Background(), "bad", nil)
	assert.Equal(t, "Error: boom", Reply(result, err))
}

func TestRegistry_PublishesEvents(t *testing.T) {
	bus := event.NewBus()
	defer bus.Close()

	r := NewRegistry("/tmp", nil)
	r.SetBus(bus)
	r.Register(failingCommand("bad"), Always)

	var mu sync.Mutex
	var got []event.Event
	var wg sync.WaitGroup
	wg.Add(2)
	bus.SubscribeAll(func(e event.Event) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		wg.Done()
	})

	_, _ = r.Invoke(context.Background(), "bad", nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	var finished *event.CommandFinishedData
	for _, e := range got {
		if e.Type == event.CommandFinished {
			d := e.Data.(event.CommandFinishedData)
			finished = &d
		}
	}
	require.NotNil(t, finished)
	assert.Equal(t, "boom", finished.Error)
	assert.NotEmpty(t, finished.CallID)
}

func TestRegistry_Catalog(t *testing.T) {
	r := NewRegistry("/tmp", nil)
	r.Register(New("write_to_file", "Write to file", CategoryFile, []Arg{
		{Name: "filename", Required: true},
		{Name: "text", Required: true},
	}, nil), Always)
	r.Register(NewPlugin("asana", "asana_list_tasks", "List tasks", nil, nil), Require(false, "set ASANA_ACCESS_TOKEN"))

	catalog := r.Catalog()
	require.Len(t, catalog, 2)
	assert.Equal(t, `"filename": "<filename>", "text": "<text>"`, catalog[0].Signature())
	assert.True(t, catalog[0].Enabled)
	assert.Equal(t, "asana", catalog[1].Plugin)
	assert.False(t, catalog[1].Enabled)
	assert.Equal(t, "set ASANA_ACCESS_TOKEN", catalog[1].DisabledFor)
}

type replyErr struct{}

func (replyErr) Error() string { return "internal" }
func (replyErr) Reply() string { return "custom reply" }

func TestReply(t *testing.T) {
	assert.Equal(t, "", Reply(nil, nil))
	assert.Equal(t, "custom reply", Reply(nil, replyErr{}))
	assert.Equal(t, "Error: x", Reply(nil, errors.New("x")))
}

func TestSchema(t *testing.T) {
	raw := Schema([]Arg{
		{Name: "filename", Required: true, Description: "file"},
		{Name: "limit", Type: "integer"},
		{Name: "ignore", Type: "array"},
	})
	var s struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, "object", s.Type)
	assert.Equal(t, []string{"filename"}, s.Required)
	assert.Equal(t, "integer", s.Properties["limit"]["type"])
	assert.Contains(t, s.Properties["ignore"], "items")
}
