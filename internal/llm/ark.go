package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// ArkConfig configures the Volcengine ARK-backed provider.
type ArkConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string // ARK endpoint ID
	MaxTokens int
}

// NewArkProvider builds a Provider backed by eino's ark chat model.
func NewArkProvider(ctx context.Context, cfg *ArkConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ARK_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("llm: ARK_API_KEY not set")
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = os.Getenv("ARK_MODEL_ID")
	}
	if modelID == "" {
		return nil, fmt.Errorf("llm: ARK_MODEL_ID not set")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("ARK_BASE_URL")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	chatCfg := &ark.ChatModelConfig{APIKey: apiKey, Model: modelID, MaxTokens: &maxTokens}
	if baseURL != "" {
		chatCfg.BaseURL = baseURL
	}

	chatModel, err := ark.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create ark model: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "ark"
	}

	return &einoProvider{
		id:        id,
		name:      "ARK",
		chatModel: chatModel,
		buildOpts: func(req Request) []model.Option {
			return []model.Option{
				model.WithMaxTokens(req.MaxTokens),
				model.WithTemperature(float32(req.Temperature)),
			}
		},
	}, nil
}
