// Package models is the adapter to the local model runtime. It exposes
// generate/chat/streaming/embed over eino chat models and keeps the
// out-of-memory error channel distinct from generic failure.
package models

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/schema"

	"github.com/junoproject/juno/internal/config"
)

// Gateway is the single entry point to the model runtime.
type Gateway struct {
	cfg      config.ModelsConfig
	registry *Registry

	embedOnce sync.Once
	embedder  embedding.Embedder
	embedErr  error

	httpc *http.Client

	installedOnce sync.Once
	installed     []string
}

// NewGateway creates a gateway over the configured runtime.
func NewGateway(cfg config.ModelsConfig) *Gateway {
	return &Gateway{
		cfg:      cfg,
		registry: NewRegistry(cfg),
		httpc:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Generate runs a single-prompt completion and returns the reply text.
func (g *Gateway) Generate(ctx context.Context, spec Spec, prompt string) (string, error) {
	return g.Chat(ctx, spec, []*schema.Message{schema.UserMessage(prompt)})
}

// Chat runs a non-streaming chat call.
func (g *Gateway) Chat(ctx context.Context, spec Spec, msgs []*schema.Message) (string, error) {
	cm, err := g.registry.Get(ctx, spec)
	if err != nil {
		return "", WrapError(spec.Model, err)
	}

	reply, err := cm.Generate(ctx, msgs)
	if err != nil {
		return "", WrapError(spec.Model, err)
	}
	return reply.Content, nil
}

// ChatStream runs a streaming chat call, invoking onToken for every chunk.
// The accumulated reply is returned so the caller can still parse it whole.
func (g *Gateway) ChatStream(ctx context.Context, spec Spec, msgs []*schema.Message, onToken func(string)) (string, error) {
	cm, err := g.registry.Get(ctx, spec)
	if err != nil {
		return "", WrapError(spec.Model, err)
	}

	sr, err := cm.Stream(ctx, msgs)
	if err != nil {
		return "", WrapError(spec.Model, err)
	}
	defer sr.Close()

	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sb.String(), WrapError(spec.Model, err)
		}
		if chunk == nil || chunk.Content == "" {
			continue
		}
		sb.WriteString(chunk.Content)
		if onToken != nil {
			onToken(chunk.Content)
		}
	}
	return sb.String(), nil
}

// Embed returns the embedding vector for one text.
func (g *Gateway) Embed(ctx context.Context, text string) ([]float64, error) {
	g.embedOnce.Do(func() {
		g.embedder, g.embedErr = newEmbedder(context.Background(), g.cfg)
	})
	if g.embedErr != nil {
		return nil, g.embedErr
	}

	vecs, err := g.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, WrapError(g.cfg.Embedding, err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding returned no vectors")
	}
	return vecs[0], nil
}

// Installed lists the model names the runtime reports as available.
// Discovered once per process via the Ollama tags endpoint; non-ollama
// drivers report nothing, which disables chain filtering downstream.
func (g *Gateway) Installed(ctx context.Context) []string {
	g.installedOnce.Do(func() {
		if strings.ToLower(g.cfg.Driver) != "ollama" {
			return
		}
		g.installed = g.fetchInstalled(ctx)
	})
	return g.installed
}

func (g *Gateway) fetchInstalled(ctx context.Context) []string {
	baseURL := g.cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(baseURL, "/")+"/api/tags", nil)
	if err != nil {
		return nil
	}
	resp, err := g.httpc.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names
}
