package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/opencode-ai/agentcmd/internal/catalog"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/task"
	"github.com/opencode-ai/agentcmd/pkg/types"
)

// maxRequestBody bounds POST /command/{name} bodies.
const maxRequestBody = 10 << 20

// InvokeResponse is the body returned by POST /command/{name}.
type InvokeResponse struct {
	Command  string         `json:"command"`
	Reply    string         `json:"reply"`
	Title    string         `json:"title,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
	Shutdown bool           `json:"shutdown,omitempty"`
}

// listCommands handles GET /command
func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	infos := catalog.Filter(s.registry.Catalog(), r.URL.Query().Get("category"))
	if infos == nil {
		infos = []types.CommandInfo{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// getCommand handles GET /command/{name}
func (s *Server) getCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	info, ok := s.registry.Info(name)
	if !ok {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "Command not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// executeCommand handles POST /command/{name}. The body is the argument
// object; an empty body means no arguments.
func (s *Server) executeCommand(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), nil)
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) > 0 && (body[0] != '{' || !json.Valid(body)) {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Request body must be a JSON object", nil)
		return
	}

	result, err := s.registry.Invoke(r.Context(), name, body)
	if writeRefusal(w, err) {
		return
	}

	resp := InvokeResponse{Command: name, Reply: command.Reply(result, err)}
	if result != nil {
		resp.Title = result.Title
		resp.Metadata = result.Metadata
	}
	if err != nil {
		resp.Error = err.Error()
	}
	if sd, ok := task.IsShutdown(err); ok {
		resp.Shutdown = true
		resp.Error = ""
		writeJSON(w, http.StatusOK, resp)
		s.requestShutdown(sd.Reason)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// renderCatalog handles GET /catalog
func (s *Server) renderCatalog(w http.ResponseWriter, r *http.Request) {
	format, err := catalog.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, err.Error(), nil)
		return
	}
	infos := catalog.Filter(s.registry.Catalog(), r.URL.Query().Get("category"))

	var buf bytes.Buffer
	if err := catalog.Render(&buf, infos, format); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error(), nil)
		return
	}
	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

var contentTypes = map[catalog.Format]string{
	catalog.FormatMarkdown: "text/markdown; charset=utf-8",
	catalog.FormatText:     "text/plain; charset=utf-8",
	catalog.FormatJSON:     "application/json",
	catalog.FormatYAML:     "application/yaml",
}

// getPath handles GET /path
func (s *Server) getPath(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"directory": s.registry.WorkDir(),
	})
}
