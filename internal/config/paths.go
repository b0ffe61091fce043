package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appDir = "agentcmd"

// Paths are the per-user directories agentcmd reads and writes.
type Paths struct {
	Data   string
	Config string
	State  string
}

// DefaultPaths resolves Paths from the XDG variables, falling back to the
// usual locations under the home directory (APPDATA on Windows).
func DefaultPaths() Paths {
	return Paths{
		Data:   xdgDir("XDG_DATA_HOME", ".local", "share"),
		Config: xdgDir("XDG_CONFIG_HOME", ".config"),
		State:  xdgDir("XDG_STATE_HOME", ".local", "state"),
	}
}

func xdgDir(env string, fallback ...string) string {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appDir)
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), appDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(append(append([]string{home}, fallback...), appDir)...)
}

// Ensure creates every directory in p.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.Data, p.Config, p.State} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// StorageDir holds the memory store.
func (p Paths) StorageDir() string { return filepath.Join(p.Data, "storage") }

// LogFile receives logs when they are not printed to stderr.
func (p Paths) LogFile() string { return filepath.Join(p.State, appDir+".log") }
