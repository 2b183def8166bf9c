package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDotenv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nJUNO_DOTENV_A=hello\nexport JUNO_DOTENV_B=\"quoted value\"\nnot-a-pair\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("JUNO_DOTENV_A", "preset")
	os.Unsetenv("JUNO_DOTENV_B")
	t.Cleanup(func() { os.Unsetenv("JUNO_DOTENV_B") })

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}

	if got := os.Getenv("JUNO_DOTENV_A"); got != "preset" {
		t.Errorf("existing var was overridden: %q", got)
	}
	if got := os.Getenv("JUNO_DOTENV_B"); got != "quoted value" {
		t.Errorf("JUNO_DOTENV_B = %q", got)
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}

func TestPathsHonorEnvOverrides(t *testing.T) {
	t.Setenv("AGENT_HOME", "/tmp/juno-home")
	t.Setenv("AGENT_DB", "/tmp/elsewhere/juno.db")
	t.Setenv("AGENT_WORKSPACE", "/tmp/ws")

	if got := AgentHome(); got != "/tmp/juno-home" {
		t.Errorf("AgentHome = %q", got)
	}
	if got := DBPath(); got != "/tmp/elsewhere/juno.db" {
		t.Errorf("DBPath = %q", got)
	}
	if got := WorkspacePath(); got != "/tmp/ws" {
		t.Errorf("WorkspacePath = %q", got)
	}
	if got := ConfigPath(); got != filepath.Join("/tmp/juno-home", "config.jsonc") {
		t.Errorf("ConfigPath = %q", got)
	}
}
