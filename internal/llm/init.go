package llm

import (
	"context"

	"github.com/vibeworks/agentcore/internal/config"
	"github.com/vibeworks/agentcore/internal/logging"
)

// providerKind identifies which concrete NewXProvider constructor a
// config.ProviderConfig entry maps to. Grounded on go-opencode's
// InitializeProviders npm-string dispatch (registry.go), trimmed to a
// plain name key since this module has no npm-package-name concept.
type providerKind string

const (
	kindAnthropic providerKind = "anthropic"
	kindOpenAI    providerKind = "openai"
	kindArk       providerKind = "ark"
)

func inferKind(name string) providerKind {
	switch name {
	case "anthropic":
		return kindAnthropic
	case "openai":
		return kindOpenAI
	case "ark":
		return kindArk
	default:
		return providerKind(name)
	}
}

// InitializeProviders builds a Registry from every enabled entry in
// cfg.Provider, grounded on go-opencode's provider.InitializeProviders
// (registry.go): providers that fail to construct (missing credentials,
// unknown kind) are logged and skipped rather than aborting startup, so one
// misconfigured provider never prevents the others from registering.
func InitializeProviders(ctx context.Context, cfg *config.Config) (*Registry, error) {
	reg := NewRegistry()

	defaultProviderID, defaultModelID := ParseModelString(cfg.Model)

	for name, pc := range cfg.Provider {
		if pc.Disable {
			continue
		}

		modelID := ""
		if name == defaultProviderID {
			modelID = defaultModelID
		}

		var (
			p   Provider
			err error
		)

		switch inferKind(name) {
		case kindAnthropic:
			p, err = NewAnthropicProvider(ctx, &AnthropicConfig{
				ID: name, APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: modelID, MaxTokens: 8192,
			})
		case kindOpenAI:
			p, err = NewOpenAIProvider(ctx, &OpenAIConfig{
				ID: name, APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: modelID, MaxTokens: 4096,
			})
		case kindArk:
			p, err = NewArkProvider(ctx, &ArkConfig{
				ID: name, APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: modelID, MaxTokens: 4096,
			})
		default:
			logging.Warn().Str("provider", name).Msg("unknown provider kind, skipping")
			continue
		}

		if err != nil {
			logging.Warn().Str("provider", name).Err(err).Msg("failed to initialize provider")
			continue
		}
		reg.Register(p)
	}

	return reg, nil
}
