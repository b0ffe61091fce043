package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcmd/internal/command"
)

func TestBuildInput(t *testing.T) {
	argDefs := []command.Arg{
		{Name: "filename"},
		{Name: "limit", Type: "integer"},
		{Name: "ignore", Type: "array"},
	}

	tests := []struct {
		name    string
		raw     string
		pairs   []string
		want    map[string]any
		wantErr bool
	}{
		{"empty", "", nil, map[string]any{}, false},
		{"pairs", "", []string{"filename=123", "limit=5"}, map[string]any{"filename": "123", "limit": float64(5)}, false},
		{"value with equals", "", []string{"filename=a=b"}, map[string]any{"filename": "a=b"}, false},
		{"array", "", []string{`ignore=["*.go"]`}, map[string]any{"ignore": []any{"*.go"}}, false},
		{"pairs override input", `{"filename":"x","limit":1}`, []string{"filename=y"}, map[string]any{"filename": "y", "limit": float64(1)}, false},
		{"unknown arg stays string", "", []string{"other=true"}, map[string]any{"other": "true"}, false},
		{"bad pair", "", []string{"novalue"}, nil, true},
		{"bad typed value", "", []string{"limit=many"}, nil, true},
		{"bad input", `[1,2]`, nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := buildInput(argDefs, tt.raw, tt.pairs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			var got map[string]any
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}
