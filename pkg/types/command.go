package types

// CommandInfo is the catalog entry for a single command.
// It is what the reference listing, the HTTP API and the MCP server expose.
type CommandInfo struct {
	Name        string    `json:"name" yaml:"name"`
	Label       string    `json:"label" yaml:"label"`
	Category    string    `json:"category" yaml:"category"`
	Plugin      string    `json:"plugin,omitempty" yaml:"plugin,omitempty"`
	Args        []ArgInfo `json:"args" yaml:"args"`
	Enabled     bool      `json:"enabled" yaml:"enabled"`
	DisabledFor string    `json:"disabledReason,omitempty" yaml:"disabled_reason,omitempty"`
}

// ArgInfo describes one command argument.
type ArgInfo struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool   `json:"required" yaml:"required"`
}

// Signature renders the argument list the way the reference listing does:
// "filename": "<filename>", "text": "<text>".
func (c CommandInfo) Signature() string {
	out := ""
	for i, a := range c.Args {
		if i > 0 {
			out += ", "
		}
		out += `"` + a.Name + `": "<` + a.Name + `>"`
	}
	return out
}
