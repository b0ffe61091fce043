// Package logging configures the zerolog logger shared by every package.
//
// Code logs through github.com/rs/zerolog/log; Init swaps the logger behind
// it. The helpers below are shorthands for the same logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level aliases zerolog.Level so callers need not import zerolog.
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config selects where logs go and how they look.
type Config struct {
	Level Level
	// Output defaults to stderr. File, when set, takes precedence.
	Output io.Writer
	File   string
	// Pretty switches to zerolog's console writer. It has no effect on files.
	Pretty     bool
	TimeFormat string
}

// DefaultConfig logs info and above as JSON to stderr.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Output: os.Stderr, TimeFormat: time.RFC3339}
}

var (
	mu   sync.Mutex
	file *os.File
)

// Init installs a logger built from cfg, closing any file a previous call
// opened.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()
	closeFile()

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		file, out = f, f
	case cfg.Pretty:
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat
	log.Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
	return nil
}

// Close releases the log file, if one is open.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	return closeFile()
}

func closeFile() error {
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// ParseLevel maps a level name to a Level, case-insensitively. "warning" is
// accepted for warn; anything unknown is InfoLevel.
func ParseLevel(s string) Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	switch lvl, err := zerolog.ParseLevel(s); {
	case err != nil, s == "", lvl > FatalLevel, lvl < DebugLevel:
		return InfoLevel
	default:
		return lvl
	}
}

func Debug() *zerolog.Event { return log.Debug() }
func Info() *zerolog.Event  { return log.Info() }
func Warn() *zerolog.Event  { return log.Warn() }
func Error() *zerolog.Event { return log.Error() }

func init() {
	_ = Init(DefaultConfig())
}
