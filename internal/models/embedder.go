package models

import (
	"context"
	"fmt"
	"strings"

	einoollama "github.com/cloudwego/eino-ext/components/embedding/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"github.com/junoproject/juno/internal/config"
)

// newEmbedder creates an eino Embedder matching the configured driver.
func newEmbedder(ctx context.Context, cfg config.ModelsConfig) (embedding.Embedder, error) {
	switch strings.ToLower(cfg.Driver) {
	case "ollama":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = defaultOllamaBaseURL
		}
		return einoollama.NewEmbedder(ctx, &einoollama.EmbeddingConfig{
			BaseURL: baseURL,
			Model:   cfg.Embedding,
		})
	case "openai":
		apiKey := resolveAPIKey(cfg)
		if apiKey == "" {
			return nil, fmt.Errorf("openai embedding: API key not configured")
		}
		ecfg := &einoopenai.EmbeddingConfig{
			APIKey: apiKey,
			Model:  cfg.Embedding,
		}
		if cfg.BaseURL != "" {
			ecfg.BaseURL = cfg.BaseURL
		}
		return einoopenai.NewEmbedder(ctx, ecfg)
	default:
		return nil, fmt.Errorf("unsupported embedding driver %q", cfg.Driver)
	}
}
