package permission

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrOutsideWorkspace is returned for paths that escape a restricted workspace.
var ErrOutsideWorkspace = errors.New("path is outside the workspace")

// Workspace resolves command paths against a root directory.
type Workspace struct {
	root     string
	restrict bool
}

// NewWorkspace creates a workspace rooted at root. With restrict set, every
// resolved path must stay under root.
func NewWorkspace(root string, restrict bool) *Workspace {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Workspace{root: filepath.Clean(root), restrict: restrict}
}

// Root returns the workspace directory.
func (w *Workspace) Root() string {
	return w.root
}

// Restricted reports whether paths are confined to the root.
func (w *Workspace) Restricted() bool {
	return w.restrict
}

// Resolve turns a command argument into an absolute, cleaned path.
// Relative paths are joined with the root; "~/" expands to the home directory.
func (w *Workspace) Resolve(path string) (string, error) {
	if path == "" {
		return "", errors.New("empty path")
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve %s: %w", path, err)
		}
		path = filepath.Join(home, path[2:])
	}

	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(w.root, resolved)
	}
	resolved = filepath.Clean(resolved)

	if w.restrict && !IsWithinDir(resolved, w.root) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideWorkspace)
	}
	return resolved, nil
}

// Relative returns path relative to the root, or path itself when it lies
// elsewhere.
func (w *Workspace) Relative(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// IsWithinDir checks if path is within or under directory.
func IsWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)

	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
