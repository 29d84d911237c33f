package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// AgentProfile is the body of an AgentConfig.ProfilePath YAML file: a
// longer system prompt and tool allow-list than comfortably fits inline
// in the JSONC config, for agents with elaborate instructions.
type AgentProfile struct {
	Prompt      string            `yaml:"prompt"`
	Description string            `yaml:"description"`
	Tools       map[string]bool   `yaml:"tools"`
	Permission  *PermissionPolicy `yaml:"permission"`
}

// LoadAgentProfile reads and parses the YAML file at path.
func LoadAgentProfile(path string) (*AgentProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profile AgentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ResolveAgent merges an AgentConfig with the profile its ProfilePath
// names, if any. Inline fields on the AgentConfig take precedence over
// the profile so a project file can override one field of a shared
// profile without forking the whole file.
func ResolveAgent(agent AgentConfig) (AgentConfig, error) {
	if agent.ProfilePath == "" {
		return agent, nil
	}

	profile, err := LoadAgentProfile(agent.ProfilePath)
	if err != nil {
		return agent, err
	}

	resolved := agent
	if resolved.Prompt == "" {
		resolved.Prompt = profile.Prompt
	}
	if resolved.Description == "" {
		resolved.Description = profile.Description
	}
	if resolved.Tools == nil {
		resolved.Tools = profile.Tools
	}
	if resolved.Permission == nil {
		resolved.Permission = profile.Permission
	}
	return resolved, nil
}
