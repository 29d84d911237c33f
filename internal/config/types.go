// Package config loads and hot-reloads the JSONC configuration file that
// selects models, providers, per-agent profiles, default permissions, and
// MCP servers, grounded on go-opencode's internal/config (config.go,
// paths.go): the same global-then-project-then-env precedence, the same
// JSONC comment stripping (here delegated to tidwall/jsonc rather than a
// hand-rolled regexp), and the same XDG path layout.
package config

import (
	"github.com/vibeworks/agentcore/internal/mcp"
)

// Config is the top-level configuration, merged from the global file, the
// project file, and environment overrides, in that priority order.
type Config struct {
	Model      string `json:"model,omitempty"`
	SmallModel string `json:"small_model,omitempty"`

	Provider map[string]ProviderConfig `json:"provider,omitempty"`
	Agent    map[string]AgentConfig    `json:"agent,omitempty"`

	Permission *PermissionPolicy `json:"permission,omitempty"`

	MCP map[string]mcp.Config `json:"mcp,omitempty"`

	// Tools disables specific built-in tools process-wide by name when
	// set to false; absent entries default to enabled.
	Tools map[string]bool `json:"tools,omitempty"`

	// Instructions names extra instruction files appended to every
	// agent's system prompt (e.g. AGENTS.md-style project guidance).
	Instructions []string `json:"instructions,omitempty"`

	Watcher *WatcherConfig `json:"watcher,omitempty"`

	// MaxToolIterations overrides agentloop.DefaultMaxToolIterations when
	// positive.
	MaxToolIterations int `json:"max_tool_iterations,omitempty"`

	EnableCaching    bool `json:"enable_caching,omitempty"`
	EnableCompaction bool `json:"enable_compaction,omitempty"`
}

// ProviderConfig holds per-provider credentials and endpoint overrides.
type ProviderConfig struct {
	APIKey  string `json:"apiKey,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`
	Disable bool   `json:"disable,omitempty"`
}

// AgentConfig configures one named agent profile. ProfilePath, when set,
// names a YAML file (LoadAgentProfile) carrying a longer system prompt and
// tool allow-list than comfortably fits inline in JSONC.
type AgentConfig struct {
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Prompt      string   `json:"prompt,omitempty"`
	ProfilePath string   `json:"profile,omitempty"`

	Tools       map[string]bool   `json:"tools,omitempty"`
	Permission  *PermissionPolicy `json:"permission,omitempty"`
	Description string            `json:"description,omitempty"`
	Disable     bool              `json:"disable,omitempty"`
}

// PermissionPolicy carries the default decision ("allow"|"deny"|"ask")
// for a handful of sensitive tool categories, consumed by whatever
// builds a session's starting permission.RuleSet.
type PermissionPolicy struct {
	Edit        string `json:"edit,omitempty"`
	Bash        string `json:"bash,omitempty"`
	WebFetch    string `json:"webfetch,omitempty"`
	ExternalDir string `json:"external_directory,omitempty"`
}

// WatcherConfig configures the project file watcher.
type WatcherConfig struct {
	Ignore []string `json:"ignore,omitempty"`
}
