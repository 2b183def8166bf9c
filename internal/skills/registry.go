// Package skills is the tool surface of the agent. Builtins cover web
// search, fetching, workspace files, shell, system introspection, memory
// recall and self-extension; declarative command skills live as JSONC files
// in the skills directory and can be written by the agent itself at runtime.
package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/models"
)

// RunFunc executes one skill invocation and returns a model-readable string.
type RunFunc func(ctx context.Context, args map[string]any) (string, error)

// Skill is one registered capability.
type Skill struct {
	Name        string
	Description string
	Run         RunFunc

	// path is set for command skills loaded from disk.
	path string
}

// generator is the model call the skill writer needs.
type generator interface {
	Generate(ctx context.Context, spec models.Spec, prompt string) (string, error)
}

// usageLogger appends one row per invocation.
type usageLogger interface {
	LogSkill(ctx context.Context, skill string, args map[string]any, runErr error, duration time.Duration) error
}

// Config wires the registry's dependencies.
type Config struct {
	Dir       string // command-skill directory, created if missing
	Workspace string // root for file skills and shell cwd

	// Searcher backs memory_search; nil disables the skill.
	Searcher func(ctx context.Context, query string, topK int) (string, error)
	// Generator backs skill_writer; nil disables it.
	Generator generator
	// Usage receives one record per invocation; nil disables logging.
	Usage usageLogger
	// Events receives one skill_run event per invocation; nil disables it.
	Events *events.Bus

	// Enabled restricts the registry to the named skills. Empty enables all.
	Enabled []string

	Logger *slog.Logger
}

// Registry holds all loaded skills.
type Registry struct {
	cfg     Config
	logger  *slog.Logger
	enabled map[string]struct{}

	mu     sync.RWMutex
	skills map[string]*Skill
}

// NewRegistry creates the registry, registers the builtins, and loads any
// command skills already present in the skills directory.
func NewRegistry(ctx context.Context, cfg Config) (*Registry, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	r := &Registry{
		cfg:    cfg,
		logger: cfg.Logger,
		skills: make(map[string]*Skill),
	}
	if len(cfg.Enabled) > 0 {
		r.enabled = make(map[string]struct{}, len(cfg.Enabled))
		for _, name := range cfg.Enabled {
			r.enabled[name] = struct{}{}
		}
	}

	if cfg.Workspace != "" {
		if err := os.MkdirAll(cfg.Workspace, 0o755); err != nil {
			return nil, fmt.Errorf("create workspace: %w", err)
		}
	}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create skills dir: %w", err)
		}
	}

	r.registerBuiltins(ctx)
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds or replaces a skill. Skills outside the configured enabled
// list are dropped.
func (r *Registry) Register(s *Skill) {
	if !r.allowed(s.Name) {
		r.logger.Debug("skill disabled by config", "skill", s.Name)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skills[s.Name] = s
}

func (r *Registry) allowed(name string) bool {
	if r.enabled == nil {
		return true
	}
	_, ok := r.enabled[name]
	return ok
}

// Run invokes a skill by name. An unknown name triggers one targeted reload
// before failing, so freshly written skills work without a full rescan.
func (r *Registry) Run(ctx context.Context, name string, args map[string]any) (out string, err error) {
	start := time.Now()
	defer func() {
		duration := time.Since(start)
		if r.cfg.Usage != nil {
			if logErr := r.cfg.Usage.LogSkill(ctx, name, args, err, duration); logErr != nil {
				r.logger.Debug("skill usage log failed", "skill", name, "error", logErr)
			}
		}
		if r.cfg.Events != nil {
			p := events.SkillRunPayload{Skill: name, OK: err == nil, Duration: duration}
			if err != nil {
				p.Error = err.Error()
			}
			r.cfg.Events.Publish(events.NewTypedEvent(events.SourceSkill, p))
		}
	}()

	s := r.lookup(name)
	if s == nil && r.cfg.Dir != "" {
		if loadErr := r.loadCommandSkillFile(filepath.Join(r.cfg.Dir, name+".jsonc")); loadErr == nil {
			s = r.lookup(name)
		}
	}
	if s == nil {
		return "", fmt.Errorf("skill %q not found. Available: %s", name, strings.Join(r.Names(), ", "))
	}
	return s.Run(ctx, args)
}

// Reload rescans the command-skill directory. Builtins are unaffected.
func (r *Registry) Reload() error {
	if r.cfg.Dir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.cfg.Dir)
	if err != nil {
		return fmt.Errorf("read skills dir: %w", err)
	}

	r.mu.Lock()
	for name, s := range r.skills {
		if s.path != "" {
			delete(r.skills, name)
		}
	}
	r.mu.Unlock()

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonc") {
			continue
		}
		path := filepath.Join(r.cfg.Dir, entry.Name())
		if err := r.loadCommandSkillFile(path); err != nil {
			r.logger.Warn("skipping command skill", "path", path, "error", err)
		}
	}
	return nil
}

// Names lists registered skill names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.skills))
	for name := range r.skills {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Catalog renders name → description as JSON, for embedding in prompts.
func (r *Registry) Catalog() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := make(map[string]string, len(r.skills))
	for name, s := range r.skills {
		m[name] = s.Description
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

func (r *Registry) lookup(name string) *Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.skills[name]
}
