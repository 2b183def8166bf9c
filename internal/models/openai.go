package models

import (
	"context"
	"os"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/junoproject/juno/internal/config"
)

// NewOpenAI creates a ChatModel against an OpenAI-compatible endpoint.
// Local runtimes like llama.cpp and vLLM expose this surface too.
func NewOpenAI(ctx context.Context, cfg config.ModelsConfig, spec Spec) (model.ToolCallingChatModel, error) {
	modelConfig := &einoopenai.ChatModelConfig{
		APIKey: resolveAPIKey(cfg),
		Model:  spec.Model,
	}

	if cfg.BaseURL != "" {
		modelConfig.BaseURL = cfg.BaseURL
	}

	if spec.NumPredict > 0 {
		maxTokens := spec.NumPredict
		modelConfig.MaxCompletionTokens = &maxTokens
	}
	if spec.Temperature > 0 {
		temp := spec.Temperature
		modelConfig.Temperature = &temp
	}

	if cfg.Timeout.Duration() > 0 {
		modelConfig.Timeout = cfg.Timeout.Duration()
	} else {
		modelConfig.Timeout = 60 * time.Second
	}

	return einoopenai.NewChatModel(ctx, modelConfig)
}

// resolveAPIKey resolves the key: direct config value, then OPENAI_API_KEY.
func resolveAPIKey(cfg config.ModelsConfig) string {
	if key := strings.TrimSpace(cfg.APIKey); key != "" {
		return key
	}
	return os.Getenv("OPENAI_API_KEY")
}
