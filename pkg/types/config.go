package types

import "strings"

// Config represents the agentcmd configuration.
// Files may be JSON, JSONC or TOML; all three decode into this struct.
type Config struct {
	// Schema reference (for editor support)
	Schema string `json:"$schema,omitempty" toml:"schema,omitempty"`

	// Workspace is the directory commands operate in.
	Workspace string `json:"workspace,omitempty" toml:"workspace,omitempty"`

	// RestrictToWorkspace rejects absolute paths outside the workspace.
	// Nil means enabled.
	RestrictToWorkspace *bool `json:"restrictToWorkspace,omitempty" toml:"restrict_to_workspace,omitempty"`

	// FileLoggerPath overrides the operation log location.
	FileLoggerPath string `json:"fileLoggerPath,omitempty" toml:"file_logger_path,omitempty"`

	// AllowDownloads and ExecuteLocalCommands default to off. Pointers let a
	// project file switch off what the global file switched on.
	AllowDownloads       *bool `json:"allowDownloads,omitempty" toml:"allow_downloads,omitempty"`
	ExecuteLocalCommands *bool `json:"executeLocalCommands,omitempty" toml:"execute_local_commands,omitempty"`

	// DisabledCategories turns off whole command categories.
	DisabledCategories []string `json:"disabledCategories,omitempty" toml:"disabled_categories,omitempty"`

	// Commands enables or disables individual commands by name.
	Commands map[string]bool `json:"commands,omitempty" toml:"commands,omitempty"`

	Github  *GithubConfig  `json:"github,omitempty" toml:"github,omitempty"`
	Shell   *ShellConfig   `json:"shell,omitempty" toml:"shell,omitempty"`
	Plugins *PluginsConfig `json:"plugins,omitempty" toml:"plugins,omitempty"`
	Server  *ServerConfig  `json:"server,omitempty" toml:"server,omitempty"`
}

// GithubConfig holds credentials used by remote git commands.
type GithubConfig struct {
	Username    string `json:"username,omitempty" toml:"username,omitempty"`
	APIKey      string `json:"apiKey,omitempty" toml:"api_key,omitempty"`
	AuthorName  string `json:"authorName,omitempty" toml:"author_name,omitempty"`
	AuthorEmail string `json:"authorEmail,omitempty" toml:"author_email,omitempty"`
	// BaseURL points the GitHub client at an enterprise or test server.
	BaseURL string `json:"baseURL,omitempty" toml:"base_url,omitempty"`
}

// ShellConfig controls execute_shell.
type ShellConfig struct {
	Control   string   `json:"control,omitempty" toml:"control,omitempty"` // "allowlist" | "denylist"
	Allowlist []string `json:"allowlist,omitempty" toml:"allowlist,omitempty"`
	Denylist  []string `json:"denylist,omitempty" toml:"denylist,omitempty"`
	Timeout   int      `json:"timeout,omitempty" toml:"timeout,omitempty"` // seconds
}

// PluginsConfig holds third-party integration settings.
type PluginsConfig struct {
	Allowlisted []string         `json:"allowlisted,omitempty" toml:"allowlisted,omitempty"`
	Asana       *AsanaConfig     `json:"asana,omitempty" toml:"asana,omitempty"`
	Discord     *DiscordConfig   `json:"discord,omitempty" toml:"discord,omitempty"`
	Wikipedia   *WikipediaConfig `json:"wikipedia,omitempty" toml:"wikipedia,omitempty"`
}

// AsanaConfig configures the Asana plugin.
type AsanaConfig struct {
	AccessToken string `json:"accessToken,omitempty" toml:"access_token,omitempty"`
	ProjectID   string `json:"projectID,omitempty" toml:"project_id,omitempty"`
	WorkspaceID string `json:"workspaceID,omitempty" toml:"workspace_id,omitempty"`
	BaseURL     string `json:"baseURL,omitempty" toml:"base_url,omitempty"`
}

// DiscordConfig configures the Discord plugin.
type DiscordConfig struct {
	WebhookURL string `json:"webhookURL,omitempty" toml:"webhook_url,omitempty"`
	Username   string `json:"username,omitempty" toml:"username,omitempty"`
}

// WikipediaConfig configures the Wikipedia plugin.
type WikipediaConfig struct {
	Language string `json:"language,omitempty" toml:"language,omitempty"`
	BaseURL  string `json:"baseURL,omitempty" toml:"base_url,omitempty"`
}

// ServerConfig configures the HTTP front-end.
type ServerConfig struct {
	Port int `json:"port,omitempty" toml:"port,omitempty"`
}

// WorkspaceRestricted reports whether paths must stay inside the workspace.
func (c *Config) WorkspaceRestricted() bool {
	return c.RestrictToWorkspace == nil || *c.RestrictToWorkspace
}

// DownloadsAllowed reports whether download_file may run.
func (c *Config) DownloadsAllowed() bool {
	return c.AllowDownloads != nil && *c.AllowDownloads
}

// LocalCommandsAllowed reports whether execute_shell may run.
func (c *Config) LocalCommandsAllowed() bool {
	return c.ExecuteLocalCommands != nil && *c.ExecuteLocalCommands
}

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }

// CategoryDisabled reports whether a command category is turned off.
func (c *Config) CategoryDisabled(category string) bool {
	for _, d := range c.DisabledCategories {
		if strings.EqualFold(strings.TrimSpace(d), category) {
			return true
		}
	}
	return false
}

// PluginAllowed reports whether a plugin is in the allowlist.
func (c *Config) PluginAllowed(name string) bool {
	if c.Plugins == nil {
		return false
	}
	for _, p := range c.Plugins.Allowlisted {
		if strings.EqualFold(strings.TrimSpace(p), name) {
			return true
		}
	}
	return false
}

// HasGithubCredentials reports whether both username and API key are set.
func (c *Config) HasGithubCredentials() bool {
	return c.Github != nil && c.Github.Username != "" && c.Github.APIKey != ""
}
