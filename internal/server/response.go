package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/agentcmd/internal/command"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names what went wrong. Details carries the suggestion,
// disabled reason or missing argument when there is one.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePermissionDenied = "PERMISSION_DENIED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("response not written")
	}
}

// writeError replies with code and message; details may be nil.
func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	writeJSON(w, status, ErrorResponse{Error: ErrorDetail{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// writeRefusal answers for invocations the registry refused before running
// anything. It reports false for every other error, which the caller
// turns into a reply.
func writeRefusal(w http.ResponseWriter, err error) bool {
	var unknown *command.UnknownCommandError
	var disabled *command.DisabledError
	var missing *command.MissingArgError
	switch {
	case errors.As(err, &unknown):
		var details map[string]any
		if unknown.Suggestion != "" {
			details = map[string]any{"suggestion": unknown.Suggestion}
		}
		writeError(w, http.StatusNotFound, ErrCodeNotFound, unknown.Error(), details)
	case errors.As(err, &disabled):
		writeError(w, http.StatusForbidden, ErrCodePermissionDenied, disabled.Error(),
			map[string]any{"reason": disabled.Reason})
	case errors.As(err, &missing):
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, missing.Error(),
			map[string]any{"arg": missing.Arg})
	default:
		return false
	}
	return true
}
