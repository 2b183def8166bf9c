// Package personality stores the assistant's configured character and
// assembles the system prompts that carry it into every model call.
package personality

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Flavors are 0-100 sliders the UI exposes for tuning tone.
type Flavors struct {
	Humor     int `json:"humor" yaml:"humor"`
	Warmth    int `json:"warmth" yaml:"warmth"`
	Sass      int `json:"sass" yaml:"sass"`
	Verbosity int `json:"verbosity" yaml:"verbosity"`
	Chaos     int `json:"chaos" yaml:"chaos"`
}

// Personality is the persisted configuration blob. The UI writes it once
// during onboarding and may rewrite it any time.
type Personality struct {
	Name       string  `json:"name"`
	Flavors    Flavors `json:"flavors"`
	Prompt     string  `json:"personality_prompt"`
	Profile    string  `json:"profile"`
	Configured bool    `json:"configured"`
	SavedAt    string  `json:"saved_at,omitempty"`
}

const defaultPrompt = "You are a helpful, warm, and capable assistant. " +
	"You communicate clearly and are genuinely interested in helping."

func defaultPersonality() Personality {
	return Personality{
		Flavors: Flavors{Humor: 40, Warmth: 60, Sass: 30, Verbosity: 50, Chaos: 20},
		Prompt:  defaultPrompt,
		Profile: "Balanced",
	}
}

// Manager loads and saves the personality file and renders prompts from it.
type Manager struct {
	path   string
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	current Personality
}

// Load reads the personality at path, falling back to the default character
// when the file is missing or unreadable.
func Load(path string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{path: path, logger: logger.With("component", "personality"), now: time.Now}

	data, err := os.ReadFile(path)
	if err != nil {
		m.current = defaultPersonality()
		return m
	}
	var p Personality
	if err := json.Unmarshal(data, &p); err != nil {
		m.logger.Warn("personality file unreadable, using default", "path", path, "error", err)
		m.current = defaultPersonality()
		return m
	}
	p.Configured = true
	m.current = p
	return m
}

// Save persists a new personality and makes it current.
func (m *Manager) Save(p Personality) error {
	p.Configured = true
	p.SavedAt = m.now().Format(time.RFC3339)

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode personality: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("save personality: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		return fmt.Errorf("save personality: %w", err)
	}

	m.mu.Lock()
	m.current = p
	m.mu.Unlock()
	m.logger.Info("personality saved", "name", p.Name, "profile", p.Profile)
	return nil
}

// Get returns the current personality.
func (m *Manager) Get() Personality {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Name returns the assistant's configured name, or "Assistant".
func (m *Manager) Name() string {
	if name := m.Get().Name; name != "" {
		return name
	}
	return "Assistant"
}

// Configured reports whether onboarding has happened.
func (m *Manager) Configured() bool {
	return m.Get().Configured
}

// SystemPrompt assembles the full system prompt for a foreground turn.
func (m *Manager) SystemPrompt(model, category, userContext, pastContext string) string {
	p := m.Get()
	name := m.Name()

	var toneNotes []string
	if p.Flavors.Verbosity < 30 {
		toneNotes = append(toneNotes, "Be concise. Short answers unless depth is essential.")
	} else if p.Flavors.Verbosity > 70 {
		toneNotes = append(toneNotes, "Be thorough. Don't truncate useful context.")
	}
	if p.Flavors.Chaos > 65 {
		toneNotes = append(toneNotes, "Creative approaches are encouraged. Don't always take the obvious path.")
	}

	return fmt.Sprintf(`%s

WHAT YOU KNOW ABOUT THIS USER:
%s

RELEVANT PAST INTERACTIONS:
%s

CURRENT TASK: %s
RUNNING ON: %s

%s

SKILL FORMAT: SKILL: {"name": "...", "args": {...}}
FINAL FORMAT: FINAL: <your complete response>

Remember: you are %s. Never break character. Never say "As an AI."
`, p.Prompt, userContext, pastContext, category, model, strings.Join(toneNotes, "\n"), name)
}

// BackgroundSystemPrompt assembles the system prompt for unattended task runs.
func (m *Manager) BackgroundSystemPrompt(userContext string) string {
	p := m.Get()
	return fmt.Sprintf(`%s

You are running a background task. The user is not watching.
Do real work. Use skills. Be thorough.

USER CONTEXT:
%s

SKILL FORMAT: SKILL: {"name": "...", "args": {...}}
FINAL FORMAT: FINAL: <summary of what you did>
NEW_TASKS: [{"title":"...","description":"...","task_type":"...","priority_name":"..."}]
`, p.Prompt, userContext)
}

// QuickAckPrompt renders the instant-acknowledgement prompt for the smallest
// model, fired while the real answer is still being prepared.
func (m *Manager) QuickAckPrompt(userMessage string) string {
	if len(userMessage) > 150 {
		userMessage = userMessage[:150]
	}
	return fmt.Sprintf("You are %s, a helpful assistant. The user said: %q\n"+
		"Write ONE short sentence (max 15 words) acknowledging you heard them "+
		"and are working on it. Be natural. No FINAL: prefix.", m.Name(), userMessage)
}
