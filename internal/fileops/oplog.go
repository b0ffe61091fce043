package fileops

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Operation is a file mutation recorded in the operation log.
type Operation string

const (
	OpWrite  Operation = "write"
	OpAppend Operation = "append"
	OpDelete Operation = "delete"
)

// loggerTag prefixes lines written by older agents.
const loggerTag = "File Operation Logger"

// Entry is one parsed line of the operation log.
type Entry struct {
	Op       Operation
	Path     string
	Checksum string
}

// String formats e the way it is stored.
func (e Entry) String() string {
	if e.Checksum == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Path)
	}
	return fmt.Sprintf("%s: %s #%s", e.Op, e.Path, e.Checksum)
}

// Checksum returns the hex MD5 of text.
func Checksum(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ParseEntry parses a log line. ok is false for blank or malformed lines.
func ParseEntry(line string) (Entry, bool) {
	line = strings.TrimSpace(strings.ReplaceAll(line, loggerTag, ""))
	if line == "" {
		return Entry{}, false
	}
	op, tail, found := strings.Cut(line, ": ")
	if !found {
		return Entry{}, false
	}

	switch Operation(strings.TrimSpace(op)) {
	case OpWrite, OpAppend:
		e := Entry{Op: Operation(strings.TrimSpace(op))}
		if i := strings.LastIndex(tail, " #"); i >= 0 {
			e.Path = strings.TrimSpace(tail[:i])
			e.Checksum = strings.TrimSpace(tail[i+2:])
		} else {
			e.Path = strings.TrimSpace(tail)
		}
		return e, e.Path != ""
	case OpDelete:
		path := strings.TrimSpace(tail)
		return Entry{Op: OpDelete, Path: path}, path != ""
	default:
		return Entry{}, false
	}
}

// OpLog is the append-only record of file mutations used to suppress
// repeated writes and deletes.
type OpLog struct {
	path string
	mu   sync.Mutex
}

// NewOpLog opens the log stored at path. The file is created on first Record.
func NewOpLog(path string) *OpLog {
	return &OpLog{path: path}
}

// Path returns the log file location.
func (l *OpLog) Path() string {
	return l.path
}

// Entries reads every well-formed entry in order.
func (l *OpLog) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries()
}

func (l *OpLog) entries() ([]Entry, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open operation log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if e, ok := ParseEntry(scanner.Text()); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read operation log: %w", err)
	}
	return entries, nil
}

// State replays the log into the expected checksum of every live file.
func (l *OpLog) State() (map[string]string, error) {
	entries, err := l.Entries()
	if err != nil {
		return nil, err
	}
	return replay(entries), nil
}

func replay(entries []Entry) map[string]string {
	state := make(map[string]string)
	for _, e := range entries {
		switch e.Op {
		case OpWrite, OpAppend:
			state[e.Path] = e.Checksum
		case OpDelete:
			delete(state, e.Path)
		}
	}
	return state
}

// IsDuplicate reports whether op on path has already been performed.
// A write repeats when the live checksum matches; a delete repeats when
// the most recent logged operation on path was itself a delete.
func (l *OpLog) IsDuplicate(op Operation, path, checksum string) (bool, error) {
	entries, err := l.Entries()
	if err != nil {
		return false, err
	}

	switch op {
	case OpWrite:
		sum, ok := replay(entries)[path]
		return ok && sum == checksum, nil
	case OpDelete:
		for i := len(entries) - 1; i >= 0; i-- {
			if entries[i].Path == path {
				return entries[i].Op == OpDelete, nil
			}
		}
	}
	return false, nil
}

// Record appends an entry to the log.
func (l *OpLog) Record(op Operation, path, checksum string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open operation log: %w", err)
	}
	defer f.Close()

	entry := Entry{Op: op, Path: path, Checksum: checksum}
	log.Debug().Str("entry", entry.String()).Msg("logging file operation")
	if _, err := fmt.Fprintln(f, entry.String()); err != nil {
		return fmt.Errorf("write operation log: %w", err)
	}
	return nil
}
