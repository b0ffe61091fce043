// Package permission decides what commands may touch.
//
// Workspace confines file paths to the agent's workspace directory when
// restriction is enabled. ShellPolicy parses shell command lines with
// mvdan.cc/sh and checks every invoked program against an allowlist or a
// denylist before execute_shell runs anything.
package permission
