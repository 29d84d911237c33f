package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/tidwall/jsonc"
	"github.com/vibeworks/agentcore/internal/mcp"
)

// Load reads the global config, then the project config at directory
// (if any), then applies environment overrides, in that priority order —
// go-opencode's Load precedence, generalized from its fixed "opencode.json"
// filenames to agentcore.jsonc and its own Config shape.
func Load(directory string) (*Config, error) {
	cfg := &Config{
		Provider: make(map[string]ProviderConfig),
		Agent:    make(map[string]AgentConfig),
		MCP:      make(map[string]mcp.Config),
	}

	loadConfigFile(GlobalConfigPath(), cfg)
	if directory != "" {
		loadConfigFile(ProjectConfigPath(directory), cfg)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// loadConfigFile merges one JSONC file into cfg. A missing, unreadable or
// unparsable file leaves cfg untouched and its error is returned; Load
// ignores that error, so such a file simply contributes nothing.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	data = jsonc.ToJSON(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(cfg, &fileConfig)
	return nil
}

// mergeConfig overlays source onto target, field by field, the way
// go-opencode's mergeConfig does: scalars overwrite, maps merge key by
// key so a project file can add one agent profile without clobbering
// every agent the global file defined.
func mergeConfig(target, source *Config) {
	if source.Model != "" {
		target.Model = source.Model
	}
	if source.SmallModel != "" {
		target.SmallModel = source.SmallModel
	}

	if source.Provider != nil {
		if target.Provider == nil {
			target.Provider = make(map[string]ProviderConfig)
		}
		for k, v := range source.Provider {
			target.Provider[k] = v
		}
	}

	if source.Agent != nil {
		if target.Agent == nil {
			target.Agent = make(map[string]AgentConfig)
		}
		for k, v := range source.Agent {
			target.Agent[k] = v
		}
	}

	if source.MCP != nil {
		if target.MCP == nil {
			target.MCP = make(map[string]mcp.Config)
		}
		for k, v := range source.MCP {
			target.MCP[k] = v
		}
	}

	if source.Tools != nil {
		if target.Tools == nil {
			target.Tools = make(map[string]bool)
		}
		for k, v := range source.Tools {
			target.Tools[k] = v
		}
	}

	if len(source.Instructions) > 0 {
		target.Instructions = source.Instructions
	}
	if source.Permission != nil {
		target.Permission = source.Permission
	}
	if source.Watcher != nil {
		target.Watcher = source.Watcher
	}
	if source.MaxToolIterations > 0 {
		target.MaxToolIterations = source.MaxToolIterations
	}
	if source.EnableCaching {
		target.EnableCaching = true
	}
	if source.EnableCompaction {
		target.EnableCompaction = true
	}
}

// applyEnvOverrides applies the small set of environment variables that
// take precedence over both config files, mirroring go-opencode's
// applyEnvOverrides (provider API keys, model override).
func applyEnvOverrides(cfg *Config) {
	providerEnvVar := map[string]string{
		"anthropic": "ANTHROPIC_API_KEY",
		"openai":    "OPENAI_API_KEY",
		"ark":       "ARK_API_KEY",
	}

	for provider, envVar := range providerEnvVar {
		apiKey := os.Getenv(envVar)
		if apiKey == "" {
			continue
		}
		if cfg.Provider == nil {
			cfg.Provider = make(map[string]ProviderConfig)
		}
		p := cfg.Provider[provider]
		if p.APIKey == "" {
			p.APIKey = apiKey
			cfg.Provider[provider] = p
		}
	}

	if model := os.Getenv("AGENTCORE_MODEL"); model != "" {
		cfg.Model = model
	}
	if smallModel := os.Getenv("AGENTCORE_SMALL_MODEL"); smallModel != "" {
		cfg.SmallModel = smallModel
	}
}

// Save writes cfg as indented JSON to path, creating its parent
// directory if needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
