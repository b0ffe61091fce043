package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/opencode-ai/agentcmd/pkg/types"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/jsonc"
)

var envPattern = regexp.MustCompile(`\{env:([^}]+)\}`)

// Load loads configuration from multiple sources (priority order):
// 1. .env in the directory (never overrides the process environment)
// 2. Global config (~/.config/agentcmd/)
// 3. Project config (agentcmd.json[c], agentcmd.toml, .agentcmd/)
// 4. AGENTCMD_CONFIG file
// 5. AGENTCMD_CONFIG_CONTENT inline JSON
// 6. Environment variables
func Load(directory string) (*types.Config, error) {
	config := &types.Config{}

	if directory != "" {
		envFile := filepath.Join(directory, ".env")
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			log.Debug().Err(err).Str("file", envFile).Msg("skipping .env")
		}
	}

	loaded := make(map[string]bool)
	loadOnce := func(path string) error {
		absPath, err := filepath.Abs(path)
		if err != nil || loaded[absPath] {
			return nil
		}
		err = loadConfigFile(path, config)
		if err == nil {
			loaded[absPath] = true
			log.Debug().Str("file", absPath).Msg("loaded config")
			return nil
		}
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var candidates []string
	globalPath := DefaultPaths().Config
	candidates = append(candidates,
		filepath.Join(globalPath, "agentcmd.json"),
		filepath.Join(globalPath, "agentcmd.jsonc"),
		filepath.Join(globalPath, "agentcmd.toml"),
	)
	if directory != "" {
		projectDir := filepath.Join(directory, ".agentcmd")
		candidates = append(candidates,
			filepath.Join(directory, "agentcmd.json"),
			filepath.Join(directory, "agentcmd.jsonc"),
			filepath.Join(directory, "agentcmd.toml"),
			filepath.Join(projectDir, "agentcmd.json"),
			filepath.Join(projectDir, "agentcmd.jsonc"),
		)
	}
	if configPath := os.Getenv("AGENTCMD_CONFIG"); configPath != "" {
		candidates = append(candidates, configPath)
	}
	for _, path := range candidates {
		if err := loadOnce(path); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}

	if content := os.Getenv("AGENTCMD_CONFIG_CONTENT"); content != "" {
		var inline types.Config
		if err := json.Unmarshal(interpolate(jsonc.ToJSON([]byte(content))), &inline); err != nil {
			return nil, fmt.Errorf("AGENTCMD_CONFIG_CONTENT: %w", err)
		}
		mergeConfig(config, &inline)
	}

	applyEnvOverrides(config)

	if config.Workspace == "" {
		config.Workspace = directory
	}
	if config.Workspace != "" && !filepath.IsAbs(config.Workspace) {
		if abs, err := filepath.Abs(config.Workspace); err == nil {
			config.Workspace = abs
		}
	}

	return config, nil
}

// loadConfigFile decodes a single JSON, JSONC or TOML file into config.
func loadConfigFile(path string, config *types.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileConfig types.Config
	if strings.HasSuffix(path, ".toml") {
		if err := toml.Unmarshal(interpolate(data), &fileConfig); err != nil {
			return err
		}
	} else {
		if err := json.Unmarshal(interpolate(jsonc.ToJSON(data)), &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

// interpolate expands {env:VAR} placeholders.
func interpolate(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// mergeConfig merges source config into target. Scalars overwrite when set,
// lists append, maps merge by key.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Workspace != "" {
		target.Workspace = source.Workspace
	}
	if source.RestrictToWorkspace != nil {
		v := *source.RestrictToWorkspace
		target.RestrictToWorkspace = &v
	}
	if source.FileLoggerPath != "" {
		target.FileLoggerPath = source.FileLoggerPath
	}
	if source.AllowDownloads != nil {
		target.AllowDownloads = types.Bool(*source.AllowDownloads)
	}
	if source.ExecuteLocalCommands != nil {
		target.ExecuteLocalCommands = types.Bool(*source.ExecuteLocalCommands)
	}
	target.DisabledCategories = append(target.DisabledCategories, source.DisabledCategories...)

	if source.Commands != nil {
		if target.Commands == nil {
			target.Commands = make(map[string]bool)
		}
		for k, v := range source.Commands {
			target.Commands[k] = v
		}
	}

	if source.Github != nil {
		if target.Github == nil {
			target.Github = &types.GithubConfig{}
		}
		g := source.Github
		setString(&target.Github.Username, g.Username)
		setString(&target.Github.APIKey, g.APIKey)
		setString(&target.Github.AuthorName, g.AuthorName)
		setString(&target.Github.AuthorEmail, g.AuthorEmail)
		setString(&target.Github.BaseURL, g.BaseURL)
	}

	if source.Shell != nil {
		if target.Shell == nil {
			target.Shell = &types.ShellConfig{}
		}
		setString(&target.Shell.Control, source.Shell.Control)
		target.Shell.Allowlist = append(target.Shell.Allowlist, source.Shell.Allowlist...)
		target.Shell.Denylist = append(target.Shell.Denylist, source.Shell.Denylist...)
		if source.Shell.Timeout > 0 {
			target.Shell.Timeout = source.Shell.Timeout
		}
	}

	if source.Plugins != nil {
		mergePlugins(target, source.Plugins)
	}

	if source.Server != nil {
		if target.Server == nil {
			target.Server = &types.ServerConfig{}
		}
		if source.Server.Port > 0 {
			target.Server.Port = source.Server.Port
		}
	}
}

func mergePlugins(target *types.Config, src *types.PluginsConfig) {
	if target.Plugins == nil {
		target.Plugins = &types.PluginsConfig{}
	}
	p := target.Plugins
	p.Allowlisted = append(p.Allowlisted, src.Allowlisted...)
	if src.Asana != nil {
		if p.Asana == nil {
			p.Asana = &types.AsanaConfig{}
		}
		setString(&p.Asana.AccessToken, src.Asana.AccessToken)
		setString(&p.Asana.ProjectID, src.Asana.ProjectID)
		setString(&p.Asana.WorkspaceID, src.Asana.WorkspaceID)
		setString(&p.Asana.BaseURL, src.Asana.BaseURL)
	}
	if src.Discord != nil {
		if p.Discord == nil {
			p.Discord = &types.DiscordConfig{}
		}
		setString(&p.Discord.WebhookURL, src.Discord.WebhookURL)
		setString(&p.Discord.Username, src.Discord.Username)
	}
	if src.Wikipedia != nil {
		if p.Wikipedia == nil {
			p.Wikipedia = &types.WikipediaConfig{}
		}
		setString(&p.Wikipedia.Language, src.Wikipedia.Language)
		setString(&p.Wikipedia.BaseURL, src.Wikipedia.BaseURL)
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(config *types.Config) {
	if v := os.Getenv("AGENTCMD_WORKSPACE"); v != "" {
		config.Workspace = v
	}
	if v, ok := envBool("RESTRICT_TO_WORKSPACE"); ok {
		config.RestrictToWorkspace = &v
	}
	if v := os.Getenv("FILE_LOGGER_PATH"); v != "" {
		config.FileLoggerPath = v
	}
	if v, ok := envBool("ALLOW_DOWNLOADS"); ok {
		config.AllowDownloads = &v
	}
	if v, ok := envBool("EXECUTE_LOCAL_COMMANDS"); ok {
		config.ExecuteLocalCommands = &v
	}
	if v := envList("DISABLED_COMMAND_CATEGORIES"); v != nil {
		config.DisabledCategories = v
	}

	github := func() *types.GithubConfig {
		if config.Github == nil {
			config.Github = &types.GithubConfig{}
		}
		return config.Github
	}
	for env, dst := range map[string]func(string){
		"GITHUB_USERNAME":  func(v string) { github().Username = v },
		"GITHUB_API_KEY":   func(v string) { github().APIKey = v },
		"GIT_AUTHOR_NAME":  func(v string) { github().AuthorName = v },
		"GIT_AUTHOR_EMAIL": func(v string) { github().AuthorEmail = v },
	} {
		if v := os.Getenv(env); v != "" {
			dst(v)
		}
	}

	shell := func() *types.ShellConfig {
		if config.Shell == nil {
			config.Shell = &types.ShellConfig{}
		}
		return config.Shell
	}
	if v := os.Getenv("SHELL_COMMAND_CONTROL"); v != "" {
		shell().Control = strings.ToLower(v)
	}
	if v := envList("SHELL_ALLOWLIST"); v != nil {
		shell().Allowlist = v
	}
	if v := envList("SHELL_DENYLIST"); v != nil {
		shell().Denylist = v
	}

	plugins := func() *types.PluginsConfig {
		if config.Plugins == nil {
			config.Plugins = &types.PluginsConfig{}
		}
		return config.Plugins
	}
	if v := envList("ALLOWLISTED_PLUGINS"); v != nil {
		plugins().Allowlisted = v
	}
	if v := os.Getenv("ASANA_ACCESS_TOKEN"); v != "" {
		p := plugins()
		if p.Asana == nil {
			p.Asana = &types.AsanaConfig{}
		}
		p.Asana.AccessToken = v
	}
	if v := os.Getenv("ASANA_PROJECT_ID"); v != "" {
		p := plugins()
		if p.Asana == nil {
			p.Asana = &types.AsanaConfig{}
		}
		p.Asana.ProjectID = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		p := plugins()
		if p.Discord == nil {
			p.Discord = &types.DiscordConfig{}
		}
		p.Discord.WebhookURL = v
	}
	if v := os.Getenv("WIKIPEDIA_LANGUAGE"); v != "" {
		p := plugins()
		if p.Wikipedia == nil {
			p.Wikipedia = &types.WikipediaConfig{}
		}
		p.Wikipedia.Language = v
	}
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		log.Warn().Str("var", name).Str("value", raw).Msg("ignoring non-boolean value")
		return false, false
	}
	return v, true
}

func envList(name string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// OpLogPath returns the operation log path for the workspace.
func OpLogPath(config *types.Config) string {
	if config.FileLoggerPath != "" {
		return config.FileLoggerPath
	}
	return filepath.Join(config.Workspace, ".agentcmd", "file_logger.txt")
}
