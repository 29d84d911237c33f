package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/components/model"
)

// AnthropicConfig configures the Claude-backed provider.
type AnthropicConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	UseBedrock bool
	Region     string
	Profile    string
}

// NewAnthropicProvider builds a Provider backed by eino's claude chat model.
func NewAnthropicProvider(ctx context.Context, cfg *AnthropicConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" && !cfg.UseBedrock {
		return nil, fmt.Errorf("llm: ANTHROPIC_API_KEY not set")
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}

	var chatModel model.ToolCallingChatModel
	var err error
	if cfg.UseBedrock {
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			ByBedrock: true,
			Region:    cfg.Region,
			Profile:   cfg.Profile,
			Model:     "anthropic." + modelID + "-v1:0",
			MaxTokens: cfg.MaxTokens,
		})
	} else {
		claudeCfg := &claude.Config{APIKey: apiKey, Model: modelID, MaxTokens: cfg.MaxTokens}
		if cfg.BaseURL != "" {
			claudeCfg.BaseURL = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, claudeCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("llm: create claude model: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "anthropic"
	}

	return &einoProvider{
		id:        id,
		name:      "Anthropic",
		chatModel: chatModel,
		buildOpts: func(req Request) []model.Option {
			return []model.Option{
				model.WithMaxTokens(req.MaxTokens),
				model.WithTemperature(float32(req.Temperature)),
			}
		},
	}, nil
}
