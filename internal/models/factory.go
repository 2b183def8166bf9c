package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"

	"github.com/junoproject/juno/internal/config"
)

// Spec pins down one chat-model instance: the model name plus the options
// that must be baked into the runtime request.
type Spec struct {
	Model       string
	NumCtx      int
	NumPredict  int
	Temperature float32
}

// Key returns the registry cache key for this spec.
func (s Spec) Key() string {
	return fmt.Sprintf("%s|ctx=%d|np=%d|t=%.2f", s.Model, s.NumCtx, s.NumPredict, s.Temperature)
}

// CreateModel creates a model.ToolCallingChatModel for the configured driver.
func CreateModel(ctx context.Context, cfg config.ModelsConfig, spec Spec) (model.ToolCallingChatModel, error) {
	switch strings.ToLower(cfg.Driver) {
	case "ollama":
		return NewOllama(ctx, cfg, spec)
	case "openai":
		return NewOpenAI(ctx, cfg, spec)
	default:
		return nil, fmt.Errorf("unknown driver: %s", cfg.Driver)
	}
}
