package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
	}{
		{"DEBUG", DebugLevel},
		{"  debug  ", DebugLevel},
		{"INFO", InfoLevel},
		{"WARN", WarnLevel},
		{"warning", WarnLevel},
		{"ERROR", ErrorLevel},
		{"fatal", FatalLevel},
		{"", InfoLevel},
		{"INVALID", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInit_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: InfoLevel, Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Init(DefaultConfig())

	Info().Str("command", "read_file").Msg("invoked")

	out := buf.String()
	if !strings.Contains(out, `"command":"read_file"`) || !strings.Contains(out, `"message":"invoked"`) {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestInit_SetsPackageLogger(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: DebugLevel, Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Init(DefaultConfig())

	log.Debug().Msg("from zerolog/log")
	if !strings.Contains(buf.String(), "from zerolog/log") {
		t.Error("zerolog/log should write through the configured logger")
	}
}

func TestInit_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: WarnLevel, Output: &buf}); err != nil {
		t.Fatal(err)
	}
	defer Init(DefaultConfig())

	Info().Msg("hidden")
	Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be written")
	}
}

func TestInit_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "agentcmd.log")
	if err := Init(Config{Level: InfoLevel, File: path}); err != nil {
		t.Fatal(err)
	}
	Error().Msg("to file")
	if err := Close(); err != nil {
		t.Fatal(err)
	}
	defer Init(DefaultConfig())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file missing: %v", err)
	}
	if !strings.Contains(string(data), "to file") {
		t.Errorf("unexpected file content: %s", data)
	}
}

func TestInit_Pretty(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(Config{Level: InfoLevel, Output: &buf, Pretty: true}); err != nil {
		t.Fatal(err)
	}
	defer Init(DefaultConfig())

	Info().Msg("pretty")
	if strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Error("pretty output should not be JSON")
	}
}
