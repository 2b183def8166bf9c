package config

import "time"

// Config is the root configuration for Juno.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Models    ModelsConfig    `json:"models"`
	Routing   RoutingConfig   `json:"routing"`
	Events    EventsConfig    `json:"events"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Skills    SkillsConfig    `json:"skills"`
	Memory    MemoryConfig    `json:"memory"`
	Cron      CronConfig      `json:"cron"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig configures the model runtime connection.
type ModelsConfig struct {
	Driver     string   `json:"driver"` // "ollama" or "openai" (OpenAI-compatible endpoint)
	BaseURL    string   `json:"base_url,omitempty"`
	APIKey     string   `json:"api_key,omitempty"` // Direct key or ${{ .Env.VAR }} template
	Timeout    Duration `json:"timeout,omitempty"`
	Background string   `json:"background"` // model for heartbeat tasks and reflection
	Embedding  string   `json:"embedding"`  // embedding model
}

// RoutingConfig selects how user turns are mapped to models.
type RoutingConfig struct {
	Mode string `json:"mode"` // "dynamic" (escalation) or "static"
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int `json:"buffer_size"`
}

// HeartbeatConfig tunes the background scheduler loop.
type HeartbeatConfig struct {
	Interval       Duration `json:"interval"`
	StartupDelay   Duration `json:"startup_delay"`
	TaskTimeout    Duration `json:"task_timeout"`
	ResumeCooldown Duration `json:"resume_cooldown"`
}

// SkillsConfig configures the skill system.
type SkillsConfig struct {
	Dir     string   `json:"dir"`     // skill directory (default: $AGENT_HOME/skills)
	Enabled []string `json:"enabled"` // enabled skill names (empty = all)
}

// MemoryConfig tunes semantic memory.
type MemoryConfig struct {
	SearchWindow int `json:"search_window"` // recent embeddings scanned per query
}

// CronConfig holds recurring maintenance schedules.
type CronConfig struct {
	Entries []CronEntry `json:"entries"`
}

// CronEntry enqueues a task on a cron schedule.
type CronEntry struct {
	Schedule string `json:"schedule"` // standard 5-field cron expression
	Title    string `json:"title"`
	TaskType string `json:"task_type"`
	Priority string `json:"priority"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Or returns the duration, or fallback when unset.
func (d Duration) Or(fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
