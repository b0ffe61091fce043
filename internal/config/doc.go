// Package config provides configuration loading, merging, and path management
// for agentcmd.
//
// # Configuration Loading
//
// Load merges configuration from several sources, later sources winning:
//
//  1. A .env file in the working directory (loaded with godotenv; existing
//     process variables are never replaced)
//  2. Global config in ~/.config/agentcmd/ (agentcmd.json, agentcmd.jsonc,
//     agentcmd.toml)
//  3. Project config in the working directory and its .agentcmd/ folder
//  4. The file named by AGENTCMD_CONFIG
//  5. Inline JSON in AGENTCMD_CONFIG_CONTENT
//  6. Environment variables
//
// JSON files may carry comments (tidwall/jsonc). Any file may reference
// environment variables with {env:NAME}.
//
// # Environment Variables
//
// The variables below mirror the switches the command catalog reports as
// "env disabled":
//   - ALLOW_DOWNLOADS: enables download_file
//   - EXECUTE_LOCAL_COMMANDS: enables execute_shell
//   - GITHUB_USERNAME, GITHUB_API_KEY: enable remote git commands
//   - DISABLED_COMMAND_CATEGORIES: comma separated category names
//   - ALLOWLISTED_PLUGINS: comma separated plugin names
//   - RESTRICT_TO_WORKSPACE: keep paths inside the workspace (default true)
//   - SHELL_COMMAND_CONTROL, SHELL_ALLOWLIST, SHELL_DENYLIST
//   - ASANA_ACCESS_TOKEN, ASANA_PROJECT_ID, DISCORD_WEBHOOK_URL,
//     WIKIPEDIA_LANGUAGE
//
// # Paths
//
// DefaultPaths returns XDG compliant directories for data, config and state.
package config
