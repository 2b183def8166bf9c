package config

import (
	"os"
	"path/filepath"
)

// AgentHome returns the root directory for Juno data.
// It uses $AGENT_HOME if set, otherwise defaults to ~/.juno.
func AgentHome() string {
	if v := os.Getenv("AGENT_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".juno")
	}
	return filepath.Join(home, ".juno")
}

// DBPath returns the SQLite database path, honoring $AGENT_DB.
func DBPath() string {
	if v := os.Getenv("AGENT_DB"); v != "" {
		return v
	}
	return filepath.Join(AgentHome(), "juno.db")
}

// WorkspacePath returns the directory skills may read and write,
// honoring $AGENT_WORKSPACE.
func WorkspacePath() string {
	if v := os.Getenv("AGENT_WORKSPACE"); v != "" {
		return v
	}
	return filepath.Join(AgentHome(), "workspace")
}

// ScreenshotsPath returns the screenshot drop directory, honoring $AGENT_SCREENSHOTS.
func ScreenshotsPath() string {
	if v := os.Getenv("AGENT_SCREENSHOTS"); v != "" {
		return v
	}
	return filepath.Join(AgentHome(), "screenshots")
}

// SkillsPath returns the directory scanned for declarative skills.
func SkillsPath() string {
	return filepath.Join(AgentHome(), "skills")
}

// ConfigPath returns the path to the Juno config file.
func ConfigPath() string {
	return filepath.Join(AgentHome(), "config.jsonc")
}

// PersonalityPath returns the path to the personality configuration blob.
func PersonalityPath() string {
	return filepath.Join(AgentHome(), "personality.json")
}

// DotenvPath returns the path to the Juno .env file.
func DotenvPath() string {
	return filepath.Join(AgentHome(), ".env")
}
