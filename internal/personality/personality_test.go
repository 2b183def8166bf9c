package personality

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefault(t *testing.T) {
	m := Load(filepath.Join(t.TempDir(), "personality.json"), nil)

	if m.Configured() {
		t.Error("missing file should not count as configured")
	}
	if m.Name() != "Assistant" {
		t.Errorf("Name() = %q", m.Name())
	}
	if m.Get().Profile != "Balanced" {
		t.Errorf("Profile = %q", m.Get().Profile)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "personality.json")
	m := Load(path, nil)

	err := m.Save(Personality{
		Name:    "Juno",
		Flavors: Flavors{Humor: 80, Warmth: 70, Sass: 50, Verbosity: 20, Chaos: 70},
		Prompt:  "You are Juno, sharp and playful.",
		Profile: "Playful",
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded := Load(path, nil)
	if !reloaded.Configured() {
		t.Error("saved personality should be configured")
	}
	if reloaded.Name() != "Juno" {
		t.Errorf("Name() = %q", reloaded.Name())
	}
	if reloaded.Get().Flavors.Chaos != 70 {
		t.Errorf("Chaos = %d", reloaded.Get().Flavors.Chaos)
	}
	if reloaded.Get().SavedAt == "" {
		t.Error("SavedAt not stamped")
	}
}

func TestLoadCorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personality.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := Load(path, nil)
	if m.Configured() {
		t.Error("corrupt file should fall back to default")
	}
}

func TestSystemPromptToneModifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "personality.json")
	m := Load(path, nil)
	if err := m.Save(Personality{
		Name:    "Juno",
		Flavors: Flavors{Verbosity: 10, Chaos: 80},
		Prompt:  "You are Juno.",
	}); err != nil {
		t.Fatal(err)
	}

	prompt := m.SystemPrompt("llama3.1:8b", "coding", "- Name: Michael", "None yet.")
	for _, want := range []string{
		"You are Juno.",
		"Be concise.",
		"Creative approaches are encouraged.",
		"- Name: Michael",
		"CURRENT TASK: coding",
		"RUNNING ON: llama3.1:8b",
		"Remember: you are Juno.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}

	// Mid-range sliders add no tone notes.
	if err := m.Save(Personality{Name: "Juno", Flavors: Flavors{Verbosity: 50, Chaos: 20}, Prompt: "p"}); err != nil {
		t.Fatal(err)
	}
	prompt = m.SystemPrompt("m", "c", "u", "p")
	if strings.Contains(prompt, "Be concise.") || strings.Contains(prompt, "Be thorough.") {
		t.Error("mid-range verbosity should add no tone note")
	}
}

func TestBackgroundSystemPrompt(t *testing.T) {
	m := Load(filepath.Join(t.TempDir(), "personality.json"), nil)
	prompt := m.BackgroundSystemPrompt("- Projects: home server")
	for _, want := range []string{
		"background task",
		"- Projects: home server",
		"NEW_TASKS:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("background prompt missing %q", want)
		}
	}
}

func TestQuickAckPromptClipsMessage(t *testing.T) {
	m := Load(filepath.Join(t.TempDir(), "personality.json"), nil)
	long := strings.Repeat("x", 400)
	prompt := m.QuickAckPrompt(long)
	if strings.Contains(prompt, strings.Repeat("x", 200)) {
		t.Error("message not clipped")
	}
	if !strings.Contains(prompt, "max 15 words") {
		t.Error("instruction missing")
	}
}

func TestPresets(t *testing.T) {
	presets, err := Presets()
	if err != nil {
		t.Fatalf("Presets: %v", err)
	}
	if len(presets) < 3 {
		t.Fatalf("expected several presets, got %d", len(presets))
	}

	p, ok := PresetByProfile("playful")
	if !ok {
		t.Fatal("Playful preset missing")
	}
	applied := p.Apply("Juno")
	if applied.Name != "Juno" || applied.Profile != "Playful" || applied.Prompt == "" {
		t.Errorf("Apply = %+v", applied)
	}
}
