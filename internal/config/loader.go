package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands ${{ .Env.VAR }} templates,
// unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before stripping, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8765
	}
	if cfg.Models.Driver == "" {
		cfg.Models.Driver = "ollama"
	}
	if cfg.Models.BaseURL == "" {
		cfg.Models.BaseURL = "http://localhost:11434"
	}
	if cfg.Models.Timeout.Duration() == 0 {
		cfg.Models.Timeout = Duration(300 * time.Second)
	}
	if cfg.Models.Background == "" {
		cfg.Models.Background = "llama3.2:3b"
	}
	if cfg.Models.Embedding == "" {
		cfg.Models.Embedding = "nomic-embed-text"
	}
	if cfg.Routing.Mode == "" {
		cfg.Routing.Mode = "dynamic"
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Heartbeat.Interval.Duration() == 0 {
		cfg.Heartbeat.Interval = Duration(5 * time.Minute)
	}
	if cfg.Heartbeat.StartupDelay.Duration() == 0 {
		cfg.Heartbeat.StartupDelay = Duration(15 * time.Second)
	}
	if cfg.Heartbeat.TaskTimeout.Duration() == 0 {
		cfg.Heartbeat.TaskTimeout = Duration(10 * time.Minute)
	}
	if cfg.Heartbeat.ResumeCooldown.Duration() == 0 {
		cfg.Heartbeat.ResumeCooldown = Duration(30 * time.Second)
	}
	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = SkillsPath()
	}
	if cfg.Memory.SearchWindow == 0 {
		cfg.Memory.SearchWindow = 300
	}
	if len(cfg.Cron.Entries) == 0 {
		cfg.Cron.Entries = []CronEntry{
			{Schedule: "30 3 * * *", Title: "Nightly maintenance sweep", TaskType: "maintain", Priority: "idle"},
			{Schedule: "0 7 * * 0", Title: "Weekly interaction review", TaskType: "reflect", Priority: "idle"},
		}
	}
}
