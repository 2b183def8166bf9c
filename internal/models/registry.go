package models

import (
	"context"
	"sync"

	"github.com/cloudwego/eino/components/model"

	"github.com/junoproject/juno/internal/config"
)

type entry struct {
	spec  Spec
	model model.ToolCallingChatModel
	once  sync.Once
	err   error
}

// Registry lazily constructs and caches one chat model per Spec. The router
// hands out different context windows and token budgets per tier, so the same
// model name can appear under several specs.
type Registry struct {
	mu      sync.Mutex
	cfg     config.ModelsConfig
	entries map[string]*entry
}

// NewRegistry creates a model registry from config.
func NewRegistry(cfg config.ModelsConfig) *Registry {
	return &Registry{
		cfg:     cfg,
		entries: make(map[string]*entry),
	}
}

// Get returns the chat model for spec, initializing it on first use.
func (r *Registry) Get(ctx context.Context, spec Spec) (model.ToolCallingChatModel, error) {
	r.mu.Lock()
	e, ok := r.entries[spec.Key()]
	if !ok {
		e = &entry{spec: spec}
		r.entries[spec.Key()] = e
	}
	r.mu.Unlock()

	e.once.Do(func() {
		e.model, e.err = CreateModel(ctx, r.cfg, e.spec)
	})
	return e.model, e.err
}
