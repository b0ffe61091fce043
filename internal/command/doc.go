// Package command provides the registry every agent command lives in.
//
// A Command has a name, a label, a category (or plugin) and an ordered
// argument signature. The Registry is the single source of truth for which
// commands exist and whether each is enabled in the current environment:
// registration takes a Gate computed from configuration, and the registry
// additionally applies DISABLED_COMMAND_CATEGORIES and per-command switches.
//
// Disabled commands stay in the catalog with their reason so the reference
// listing can show them as "env disabled". Invoking one returns a
// DisabledError without running it.
//
// Invoke assigns a ULID call ID, publishes command.started and
// command.finished events, and logs the outcome. Reply turns the outcome
// into the plain text an agent receives; failures read "Error: ...".
//
// EinoTools exposes the enabled commands as eino tools for agent frameworks
// built on cloudwego/eino.
package command
