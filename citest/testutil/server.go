package testutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/opencode-ai/agentcmd/internal/app"
	"github.com/opencode-ai/agentcmd/internal/server"
	"github.com/opencode-ai/agentcmd/pkg/types"
)

// TestServer is a live agentcmd HTTP server backed by a scratch workspace.
type TestServer struct {
	Server  *server.Server
	App     *app.App
	BaseURL string
	Config  *types.Config
	TempDir string
	WorkDir string
}

// Option adjusts a TestServer before it starts.
type Option func(*options)

type options struct {
	workDir string
	tweaks  []func(*types.Config)
}

// WithWorkDir serves an existing directory instead of a fresh one.
func WithWorkDir(dir string) Option {
	return func(o *options) { o.workDir = dir }
}

// WithConfig edits the configuration the registry is built from.
func WithConfig(fn func(*types.Config)) Option {
	return func(o *options) { o.tweaks = append(o.tweaks, fn) }
}

// StartTestServer builds an app in a temp dir and serves it on a free port.
// Local shell execution is on; every file the app writes stays in TempDir.
func StartTestServer(opts ...Option) (ts *TestServer, err error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	tmp, err := os.MkdirTemp("", "agentcmd-test-*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			os.RemoveAll(tmp)
		}
	}()

	work := o.workDir
	if work == "" {
		work = filepath.Join(tmp, "workspace")
		if err := os.Mkdir(work, 0o755); err != nil {
			return nil, err
		}
	}

	cfg := &types.Config{
		Workspace:            work,
		FileLoggerPath:       filepath.Join(tmp, "file_logger.txt"),
		ExecuteLocalCommands: types.Bool(true),
	}
	for _, tweak := range o.tweaks {
		tweak(cfg)
	}

	a, err := app.New(app.Options{WorkDir: work, Config: cfg, StorageDir: filepath.Join(tmp, "storage")})
	if err != nil {
		return nil, fmt.Errorf("build app: %w", err)
	}

	port, err := freePort()
	if err != nil {
		a.Close()
		return nil, err
	}
	sc := server.DefaultConfig()
	sc.Port = port
	srv := server.New(sc, a.Registry, a.Bus)
	go srv.Start()

	ts = &TestServer{
		Server:  srv,
		App:     a,
		BaseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		Config:  cfg,
		TempDir: tmp,
		WorkDir: work,
	}
	if err := ts.awaitReady(10 * time.Second); err != nil {
		srv.Shutdown(context.Background())
		a.Close()
		return nil, err
	}
	return ts, nil
}

// Stop shuts the server down and removes TempDir.
func (ts *TestServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := ts.Server.Shutdown(ctx)
	ts.App.Close()
	return errors.Join(err, os.RemoveAll(ts.TempDir))
}

// Client returns an HTTP client for the server.
func (ts *TestServer) Client() *TestClient {
	return NewTestClient(ts.BaseURL)
}

// SSEClient returns an event stream client for the server.
func (ts *TestServer) SSEClient() *SSEClient {
	return NewSSEClient(ts.BaseURL)
}

func (ts *TestServer) awaitReady(timeout time.Duration) error {
	c := ts.Client()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if resp, err := c.Get(context.Background(), "/path"); err == nil && resp.IsSuccess() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("server at %s not ready after %v", ts.BaseURL, timeout)
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
