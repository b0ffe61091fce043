package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
)

// RandomString returns n random hex characters.
func RandomString(n int) string {
	b := make([]byte, n/2+1)
	rand.Read(b)
	return hex.EncodeToString(b)[:n]
}

// UniqueName returns prefix-<random><ext>, for files that must not collide
// across specs sharing one workspace.
func UniqueName(prefix, ext string) string {
	return prefix + "-" + RandomString(8) + ext
}

// WorkspacePath joins rel onto the server workspace.
func (ts *TestServer) WorkspacePath(rel string) string {
	return filepath.Join(ts.WorkDir, rel)
}

// WriteWorkspaceFile seeds a file in the workspace, creating parents.
func (ts *TestServer) WriteWorkspaceFile(rel, content string) (string, error) {
	path := ts.WorkspacePath(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte(content), 0644)
}

// ReadWorkspaceFile reads a workspace file as a string.
func (ts *TestServer) ReadWorkspaceFile(rel string) (string, error) {
	data, err := os.ReadFile(ts.WorkspacePath(rel))
	return string(data), err
}
