// Package commands exposes a command registry as an MCP server so any MCP
// client can list and invoke the agent commands.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/task"
)

// ServerName is reported to clients during initialization.
const ServerName = "agentcmd"

// shutdownGrace lets the shutdown reply reach the client before the
// transport closes.
const shutdownGrace = 200 * time.Millisecond

// Server wraps an MCP server whose tools are the enabled registry commands.
type Server struct {
	*server.MCPServer

	reg      *command.Registry
	tools    []string
	once     sync.Once
	shutdown chan string
}

// NewServer creates an MCP server with one tool per enabled command.
// Disabled commands are not advertised.
func NewServer(reg *command.Registry, version string) *Server {
	s := &Server{
		MCPServer: server.NewMCPServer(
			ServerName,
			version,
			server.WithToolCapabilities(true),
		),
		reg:      reg,
		shutdown: make(chan string, 1),
	}

	for _, info := range reg.Catalog() {
		if !info.Enabled {
			continue
		}
		cmd, _ := reg.Get(info.Name)
		tool := mcp.NewToolWithRawSchema(info.Name, info.Label, command.Schema(cmd.Args()))
		s.AddTool(tool, s.handler(info.Name))
		s.tools = append(s.tools, info.Name)
	}
	return s
}

// Tools returns the advertised tool names in catalog order.
func (s *Server) Tools() []string {
	return s.tools
}

// Shutdown delivers the reason once an agent invokes the shutdown command.
func (s *Server) Shutdown() <-chan string {
	return s.shutdown
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, err := json.Marshal(request.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		result, err := s.reg.Invoke(ctx, name, input)
		reply := command.Reply(result, err)
		if err != nil {
			if shutdown, ok := task.IsShutdown(err); ok {
				s.signalShutdown(shutdown.Reason)
				return mcp.NewToolResultText(reply), nil
			}
			log.Debug().Str("tool", name).Err(err).Msg("mcp tool call failed")
			return mcp.NewToolResultError(reply), nil
		}
		return mcp.NewToolResultText(reply), nil
	}
}

func (s *Server) signalShutdown(reason string) {
	s.once.Do(func() {
		s.shutdown <- reason
	})
}

// Serve speaks MCP over in/out until ctx is done or an agent requests
// shutdown. The CLI passes stdin and stdout.
func Serve(ctx context.Context, s *Server, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case reason := <-s.Shutdown():
			log.Info().Str("reason", reason).Msg("shutdown requested over mcp")
			time.Sleep(shutdownGrace)
			cancel()
		case <-ctx.Done():
		}
	}()

	stdio := server.NewStdioServer(s.MCPServer)
	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
