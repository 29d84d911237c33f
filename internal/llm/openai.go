package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// OpenAIConfig configures the OpenAI-backed provider (also used for Azure
// OpenAI and OpenAI-compatible endpoints via BaseURL).
type OpenAIConfig struct {
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	UseAzure   bool
	APIVersion string
}

// NewOpenAIProvider builds a Provider backed by eino's openai chat model.
func NewOpenAIProvider(ctx context.Context, cfg *OpenAIConfig) (Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		if cfg.UseAzure {
			apiKey = os.Getenv("AZURE_OPENAI_API_KEY")
		} else {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if apiKey == "" {
		return nil, fmt.Errorf("llm: OPENAI_API_KEY not set")
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	modelID := cfg.Model
	if modelID == "" {
		modelID = os.Getenv("OPENAI_MODEL_ID")
	}
	if modelID == "" {
		modelID = "gpt-4o"
	}

	chatCfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = cfg.BaseURL
	}
	if cfg.UseAzure {
		chatCfg.ByAzure = true
		chatCfg.APIVersion = cfg.APIVersion
		if chatCfg.APIVersion == "" {
			chatCfg.APIVersion = "2024-02-15-preview"
		}
	}

	chatModel, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("llm: create openai model: %w", err)
	}

	id := cfg.ID
	if id == "" {
		id = "openai"
	}

	return &einoProvider{
		id:        id,
		name:      "OpenAI",
		chatModel: chatModel,
		buildOpts: func(req Request) []model.Option {
			opts := []model.Option{openai.WithMaxCompletionTokens(req.MaxTokens)}
			if req.Temperature > 0 {
				opts = append(opts, model.WithTemperature(float32(req.Temperature)))
			}
			return opts
		},
	}, nil
}
