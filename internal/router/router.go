// Package router picks the model for a classified message: which model to
// run, how many tokens it may spend, and which models to fall back to when
// the primary fails or runs out of memory.
package router

import (
	"context"
	"strings"
)

// Decision is a fully resolved routing choice for one request.
type Decision struct {
	Model            string
	EscalationTarget string // empty when the tier cannot escalate
	Tier             string
	TokenBudget      int
	ContextWindow    int
	Fallbacks        []string
}

// CanEscalate reports whether a bigger model is available for this decision.
func (d Decision) CanEscalate() bool {
	return d.EscalationTarget != ""
}

// installedFunc reports the models the runtime has pulled. An empty result
// disables availability filtering.
type installedFunc func(ctx context.Context) []string

// Router resolves categories to model decisions.
type Router struct {
	mode       string
	background string
	installed  installedFunc
}

// New creates a router. Mode is "static" (fixed category table) or
// "dynamic" (small-first with escalation). Unknown modes behave as dynamic.
// background overrides the model used for heartbeat work; empty keeps the
// default 3B pin.
func New(mode, background string, installed installedFunc) *Router {
	if background == "" {
		background = backgroundModel
	}
	if installed == nil {
		installed = func(context.Context) []string { return nil }
	}
	return &Router{mode: strings.ToLower(mode), background: background, installed: installed}
}

// Route resolves the model decision for a category.
func (r *Router) Route(ctx context.Context, category string) Decision {
	var d Decision
	if r.mode == "static" {
		d = routeStatic(category)
	} else {
		d = routeDynamic(category)
	}
	d.Fallbacks = r.filter(ctx, d.Fallbacks)
	return d
}

// Background returns the decision for heartbeat work. Background tasks pin
// to a small model so they never compete with the user's session.
func (r *Router) Background(ctx context.Context) Decision {
	return Decision{
		Model:         r.background,
		Tier:          "background",
		TokenBudget:   backgroundTokens,
		ContextWindow: backgroundCtx,
		Fallbacks:     r.filter(ctx, []string{backgroundFallback}),
	}
}

// filter drops fallbacks the runtime does not have installed. When the
// installed list is unknown the chain passes through untouched.
func (r *Router) filter(ctx context.Context, chain []string) []string {
	installed := r.installed(ctx)
	if len(installed) == 0 {
		return chain
	}
	have := make(map[string]bool, len(installed))
	for _, m := range installed {
		have[m] = true
	}
	out := make([]string, 0, len(chain))
	for _, m := range chain {
		if have[m] {
			out = append(out, m)
		}
	}
	return out
}

// FallbackChain returns the ordered fallbacks for a model, availability
// filtered the same way Route filters its decisions.
func (r *Router) FallbackChain(ctx context.Context, model string) []string {
	return r.filter(ctx, fallbackChain(model))
}

const (
	backgroundModel    = "llama3.2:3b"
	backgroundFallback = "qwen2.5:3b"
	backgroundCtx      = 4096
	backgroundTokens   = 1000
)
