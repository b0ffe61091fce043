// Package app wires configuration, storage and every command package into a
// ready-to-use registry shared by the CLI, HTTP and MCP front-ends.
package app

import (
	"fmt"
	"net/http"
	"os"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/config"
	"github.com/opencode-ai/agentcmd/internal/event"
	"github.com/opencode-ai/agentcmd/internal/fileops"
	"github.com/opencode-ai/agentcmd/internal/gitops"
	"github.com/opencode-ai/agentcmd/internal/memory"
	"github.com/opencode-ai/agentcmd/internal/plugin"
	"github.com/opencode-ai/agentcmd/internal/plugin/asana"
	"github.com/opencode-ai/agentcmd/internal/plugin/discord"
	"github.com/opencode-ai/agentcmd/internal/plugin/wikipedia"
	"github.com/opencode-ai/agentcmd/internal/shell"
	"github.com/opencode-ai/agentcmd/internal/storage"
	"github.com/opencode-ai/agentcmd/internal/task"
	"github.com/opencode-ai/agentcmd/pkg/types"
	"github.com/rs/zerolog/log"
)

// Options controls how an App is built.
type Options struct {
	// WorkDir is the workspace. Empty means the configured workspace or the
	// current directory.
	WorkDir string
	// Config skips loading when set.
	Config *types.Config
	// StorageDir overrides the XDG data location for memory storage.
	StorageDir string
	// HTTPClient is used for downloads, GitHub and plugin calls.
	HTTPClient *http.Client
}

// App holds the assembled runtime.
type App struct {
	Config   *types.Config
	WorkDir  string
	Bus      *event.Bus
	Registry *command.Registry
	Storage  *storage.Store
	Memory   *memory.Store
	OpLog    *fileops.OpLog
}

// New loads configuration and registers every command.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		dir := opts.WorkDir
		if dir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return nil, err
			}
			dir = wd
		}
		loaded, err := config.Load(dir)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = cfg.Workspace
	}
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		workDir = wd
	}
	cfg.Workspace = workDir

	storageDir := opts.StorageDir
	if storageDir == "" {
		paths := config.DefaultPaths()
		if err := paths.Ensure(); err != nil {
			return nil, err
		}
		storageDir = paths.StorageDir()
	}
	store, err := storage.Open(storageDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &App{
		Config:  cfg,
		WorkDir: workDir,
		Bus:     event.NewBus(),
		Storage: store,
		Memory:  memory.New(store),
		OpLog:   fileops.NewOpLog(config.OpLogPath(cfg)),
	}
	a.Registry = command.NewRegistry(workDir, cfg)
	a.Registry.SetBus(a.Bus)

	fileops.Register(a.Registry, fileops.Options{
		Log:            a.OpLog,
		Memory:         a.Memory,
		AllowDownloads: cfg.DownloadsAllowed(),
		Client:         opts.HTTPClient,
		Bus:            a.Bus,
	})
	gitops.Register(a.Registry, gitops.Options{Github: cfg.Github, HTTPClient: opts.HTTPClient})
	shell.Register(a.Registry, shell.OptionsFrom(cfg))
	task.Register(a.Registry, a.Bus)

	client := plugin.NewClient(opts.HTTPClient)
	asana.Register(a.Registry, cfg, client)
	discord.Register(a.Registry, cfg, client)
	wikipedia.Register(a.Registry, cfg, client)

	log.Info().
		Str("workspace", workDir).
		Int("commands", len(a.Registry.Names())).
		Msg("command registry ready")
	return a, nil
}

// Close releases the event bus.
func (a *App) Close() error {
	return a.Bus.Close()
}
