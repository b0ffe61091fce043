package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/agentcmd/internal/server"
	"github.com/opencode-ai/agentcmd/internal/vcs"
)

var (
	servePort     int
	serveHostname string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP command server",
	Long: `Serve the command registry over HTTP.

Commands are listed at GET /command and invoked with POST /command/{name}.
GET /event streams command and branch events. The server stops on SIGINT,
SIGTERM or when an agent invokes the shutdown command.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default: config server.port or 8080)")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "127.0.0.1", "Hostname to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info().Str("version", Version).Str("workspace", a.WorkDir).Msg("starting agentcmd server")

	serverConfig := server.DefaultConfig()
	serverConfig.Hostname = serveHostname
	switch {
	case servePort != 0:
		serverConfig.Port = servePort
	case a.Config.Server != nil && a.Config.Server.Port != 0:
		serverConfig.Port = a.Config.Server.Port
	}
	srv := server.New(serverConfig, a.Registry, a.Bus)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watcher := vcs.NewWatcher(a.WorkDir, a.Bus); watcher != nil {
		watchCtx, stopWatch := context.WithCancel(ctx)
		defer stopWatch()
		go func() {
			if err := watcher.Run(watchCtx); err != nil {
				log.Warn().Err(err).Msg("VCS watcher stopped")
			}
		}()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr()).Msg("server listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-ctx.Done():
			log.Info().Msg("shutting down server")
		case <-srv.Done():
			log.Info().Str("reason", srv.ShutdownReason()).Msg("shutdown requested by agent")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
