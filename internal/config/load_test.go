package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibeworks/agentcore/internal/mcp"
)

func withIsolatedHome(t *testing.T) string {
	t.Helper()
	tmpHome := t.TempDir()
	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	t.Cleanup(func() { os.Setenv("HOME", oldHome) })
	return tmpHome
}

func writeGlobalConfig(t *testing.T, home, body string) {
	t.Helper()
	path := filepath.Join(home, ".config", "agentcore", "agentcore.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func writeProjectConfig(t *testing.T, dir, body string) {
	t.Helper()
	path := ProjectConfigPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func TestLoadParsesJSONCWithComments(t *testing.T) {
	home := withIsolatedHome(t)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	writeGlobalConfig(t, home, `{
		// model to use by default
		"model": "anthropic/claude-sonnet-4-20250514",
		/* small model handles naming and cheap calls */
		"small_model": "anthropic/claude-3-5-haiku-20241022"
	}`)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", cfg.Model)
	assert.Equal(t, "anthropic/claude-3-5-haiku-20241022", cfg.SmallModel)
}

func TestLoadMergesProjectOverGlobal(t *testing.T) {
	home := withIsolatedHome(t)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	writeGlobalConfig(t, home, `{
		"model": "anthropic/claude-sonnet-4-20250514",
		"agent": {"coder": {"tools": {"bash": true}}}
	}`)

	project := t.TempDir()
	writeProjectConfig(t, project, `{
		"model": "openai/gpt-4o",
		"agent": {"coder": {"tools": {"edit": true}}}
	}`)

	cfg, err := Load(project)
	require.NoError(t, err)
	assert.Equal(t, "openai/gpt-4o", cfg.Model)
	assert.True(t, cfg.Agent["coder"].Tools["edit"])
}

func TestLoadMCPConfigReusesMCPPackageType(t *testing.T) {
	home := withIsolatedHome(t)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	project := t.TempDir()
	writeProjectConfig(t, project, `{
		"mcp": {
			"filesystem": {
				"type": "local",
				"command": ["npx", "-y", "@modelcontextprotocol/server-filesystem"],
				"enabled": true
			}
		}
	}`)

	cfg, err := Load(project)
	require.NoError(t, err)

	fs, ok := cfg.MCP["filesystem"]
	require.True(t, ok)
	assert.Equal(t, mcp.TransportTypeLocal, fs.Type)
	assert.True(t, fs.Enabled)
}

func TestLoadEnvOverridesProviderAPIKeyWhenUnset(t *testing.T) {
	home := withIsolatedHome(t)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Provider["anthropic"].APIKey)
}

func TestLoadEnvModelOverridesFileModel(t *testing.T) {
	home := withIsolatedHome(t)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	writeGlobalConfig(t, home, `{"model": "file-model"}`)

	os.Setenv("AGENTCORE_MODEL", "env-model")
	defer os.Unsetenv("AGENTCORE_MODEL")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Model)
}

func TestLoadMissingFilesYieldsEmptyConfigNoError(t *testing.T) {
	home := withIsolatedHome(t)
	os.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	defer os.Unsetenv("XDG_CONFIG_HOME")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.Model)
}

func TestSaveWritesLoadableConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "agentcore.jsonc")

	cfg := &Config{Model: "anthropic/claude-sonnet-4-20250514"}
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "claude-sonnet-4-20250514")
}

func TestMergeConfigOverwritesScalarsAndMergesMaps(t *testing.T) {
	target := &Config{
		Model:    "old-model",
		Provider: map[string]ProviderConfig{"anthropic": {APIKey: "old-key"}},
	}
	source := &Config{
		Model:    "new-model",
		Provider: map[string]ProviderConfig{"openai": {APIKey: "openai-key"}},
	}

	mergeConfig(target, source)

	assert.Equal(t, "new-model", target.Model)
	assert.Len(t, target.Provider, 2)
	assert.Equal(t, "old-key", target.Provider["anthropic"].APIKey)
	assert.Equal(t, "openai-key", target.Provider["openai"].APIKey)
}
