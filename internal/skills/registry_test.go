package skills

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/models"
)

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = filepath.Join(t.TempDir(), "skills")
	}
	if cfg.Workspace == "" {
		cfg.Workspace = filepath.Join(t.TempDir(), "workspace")
	}
	r, err := NewRegistry(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestBuiltinsRegistered(t *testing.T) {
	r := newTestRegistry(t, Config{})
	names := r.Names()
	for _, want := range []string{"web_fetch", "read_file", "write_file", "list_dir", "shell", "system_info"} {
		found := false
		for _, n := range names {
			if n == want {
				found = true
			}
		}
		if !found {
			t.Errorf("builtin %q missing from %v", want, names)
		}
	}

	// memory_search and skill_writer need their dependencies.
	for _, absent := range []string{"memory_search", "skill_writer"} {
		for _, n := range names {
			if n == absent {
				t.Errorf("%q registered without its dependency", absent)
			}
		}
	}
}

func TestUnknownSkillErrorListsAvailable(t *testing.T) {
	r := newTestRegistry(t, Config{})
	_, err := r.Run(context.Background(), "does_not_exist", nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Available:") || !strings.Contains(err.Error(), "shell") {
		t.Errorf("error = %v", err)
	}
}

func TestFileSkillsRoundTrip(t *testing.T) {
	r := newTestRegistry(t, Config{})
	ctx := context.Background()

	out, err := r.Run(ctx, "write_file", map[string]any{"path": "notes/today.txt", "content": "hello"})
	if err != nil || !strings.Contains(out, "5 chars") {
		t.Fatalf("write: %q, %v", out, err)
	}

	out, err = r.Run(ctx, "read_file", map[string]any{"path": "notes/today.txt"})
	if err != nil || out != "hello" {
		t.Fatalf("read: %q, %v", out, err)
	}

	out, err = r.Run(ctx, "write_file", map[string]any{"path": "notes/today.txt", "content": " again", "append": true})
	if err != nil || !strings.Contains(out, "Appended") {
		t.Fatalf("append: %q, %v", out, err)
	}
	out, _ = r.Run(ctx, "read_file", map[string]any{"path": "notes/today.txt"})
	if out != "hello again" {
		t.Fatalf("after append: %q", out)
	}

	out, err = r.Run(ctx, "list_dir", map[string]any{"path": "notes"})
	if err != nil || !strings.Contains(out, "today.txt") {
		t.Fatalf("list: %q, %v", out, err)
	}
}

func TestFileSkillsRejectEscape(t *testing.T) {
	r := newTestRegistry(t, Config{})
	_, err := r.Run(context.Background(), "read_file", map[string]any{"path": "../../etc/passwd"})
	if err == nil || !strings.Contains(err.Error(), "escapes workspace") {
		t.Fatalf("err = %v", err)
	}
}

func TestShellSkillRunsInWorkspace(t *testing.T) {
	r := newTestRegistry(t, Config{})
	ctx := context.Background()

	if _, err := r.Run(ctx, "write_file", map[string]any{"path": "marker.txt", "content": "x"}); err != nil {
		t.Fatal(err)
	}
	out, err := r.Run(ctx, "shell", map[string]any{"command": "ls"})
	if err != nil || !strings.Contains(out, "marker.txt") {
		t.Fatalf("shell ls: %q, %v", out, err)
	}

	out, err = r.Run(ctx, "shell", map[string]any{"command": "exit 3"})
	if err != nil || !strings.Contains(out, "[exit code: 3]") {
		t.Fatalf("exit status: %q, %v", out, err)
	}
}

func TestShellSkillBlocksDangerousCommands(t *testing.T) {
	r := newTestRegistry(t, Config{})
	out, err := r.Run(context.Background(), "shell", map[string]any{"command": "rm -rf / --no-preserve-root"})
	if err != nil || !strings.HasPrefix(out, "BLOCKED:") {
		t.Fatalf("out = %q, err = %v", out, err)
	}
}

func TestCommandSkillLoadAndRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skills")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	def := `{
  // greets whoever is named
  "name": "greet",
  "description": "Print a greeting",
  "command": "echo \"hello $WHO\"",
  "args": { "who": "name to greet" }
}`
	if err := os.WriteFile(filepath.Join(dir, "greet.jsonc"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry(t, Config{Dir: dir})
	out, err := r.Run(context.Background(), "greet", map[string]any{"who": "juno"})
	if err != nil || out != "hello juno" {
		t.Fatalf("greet: %q, %v", out, err)
	}

	if !strings.Contains(r.Catalog(), "Print a greeting") {
		t.Errorf("catalog = %s", r.Catalog())
	}
}

func TestTargetedReloadFindsNewSkill(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skills")
	r := newTestRegistry(t, Config{Dir: dir})

	// Skill file appears after startup, as skill_writer would create it.
	def := `{"name": "late", "description": "late arrival", "command": "echo late", "args": {}}`
	if err := os.WriteFile(filepath.Join(dir, "late.jsonc"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := r.Run(context.Background(), "late", nil)
	if err != nil || out != "late" {
		t.Fatalf("late: %q, %v", out, err)
	}
}

func TestReloadDropsDeletedCommandSkills(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skills")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "gone.jsonc")
	if err := os.WriteFile(path, []byte(`{"name":"gone","description":"","command":"echo x","args":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry(t, Config{Dir: dir})
	if _, err := r.Run(context.Background(), "gone", nil); err != nil {
		t.Fatal(err)
	}

	os.Remove(path)
	if err := r.Reload(); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run(context.Background(), "gone", nil); err == nil {
		t.Error("deleted skill still runs")
	}

	// Builtins survive reload.
	if _, err := r.Run(context.Background(), "shell", map[string]any{"command": "echo ok"}); err != nil {
		t.Errorf("builtin lost on reload: %v", err)
	}
}

func TestMemorySearchSkill(t *testing.T) {
	r := newTestRegistry(t, Config{
		Searcher: func(_ context.Context, query string, topK int) (string, error) {
			return "[1] Input: " + query, nil
		},
	})
	out, err := r.Run(context.Background(), "memory_search", map[string]any{"query": "lyon", "top_k": float64(3)})
	if err != nil || !strings.Contains(out, "lyon") {
		t.Fatalf("memory_search: %q, %v", out, err)
	}
}

type writerGen struct{ reply string }

func (g writerGen) Generate(_ context.Context, _ models.Spec, _ string) (string, error) {
	return g.reply, nil
}

func TestSkillWriterInstallsGeneratedSkill(t *testing.T) {
	gen := writerGen{reply: "```jsonc\n" + `{
  // word count helper
  "name": "word_count",
  "description": "Count words in text",
  "command": "printf '%s' \"$TEXT\" | wc -w",
  "args": { "text": "text to count" }
}` + "\n```"}

	dir := filepath.Join(t.TempDir(), "skills")
	r := newTestRegistry(t, Config{Dir: dir, Generator: gen})

	out, err := r.Run(context.Background(), "skill_writer", map[string]any{
		"skill_name":  "Word Count!",
		"description": "count words",
	})
	if err != nil || !strings.Contains(out, "activated") {
		t.Fatalf("skill_writer: %q, %v", out, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "word_count.jsonc")); err != nil {
		t.Fatalf("skill file not written: %v", err)
	}

	res, err := r.Run(context.Background(), "word_count", map[string]any{"text": "one two three"})
	if err != nil || strings.TrimSpace(res) != "3" {
		t.Fatalf("word_count: %q, %v", res, err)
	}
}

func TestSkillWriterRejectsBadDefinition(t *testing.T) {
	r := newTestRegistry(t, Config{Generator: writerGen{reply: "not json at all"}})
	out, err := r.Run(context.Background(), "skill_writer", map[string]any{
		"skill_name":  "broken",
		"description": "x",
	})
	if err != nil || !strings.HasPrefix(out, "ERROR:") {
		t.Fatalf("out = %q, err = %v", out, err)
	}
}

type recordingUsage struct {
	names []string
	errs  []error
}

func (u *recordingUsage) LogSkill(_ context.Context, skill string, _ map[string]any, runErr error, _ time.Duration) error {
	u.names = append(u.names, skill)
	u.errs = append(u.errs, runErr)
	return nil
}

func TestUsageLogging(t *testing.T) {
	usage := &recordingUsage{}
	r := newTestRegistry(t, Config{Usage: usage})

	r.Run(context.Background(), "shell", map[string]any{"command": "echo hi"})
	r.Run(context.Background(), "missing_skill", nil)

	if len(usage.names) != 2 || usage.names[0] != "shell" || usage.names[1] != "missing_skill" {
		t.Fatalf("usage = %v", usage.names)
	}
	if usage.errs[0] != nil || usage.errs[1] == nil {
		t.Errorf("errs = %v", usage.errs)
	}
}

func TestEnabledListFiltersSkills(t *testing.T) {
	r := newTestRegistry(t, Config{Enabled: []string{"shell", "read_file"}})

	names := r.Names()
	if len(names) != 2 || names[0] != "read_file" || names[1] != "shell" {
		t.Fatalf("names = %v, want only the enabled skills", names)
	}

	if _, err := r.Run(context.Background(), "web_fetch", nil); err == nil {
		t.Error("disabled builtin still runs")
	}
	if _, err := r.Run(context.Background(), "shell", map[string]any{"command": "echo ok"}); err != nil {
		t.Errorf("enabled skill failed: %v", err)
	}
}

func TestEnabledListFiltersCommandSkills(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "skills")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	def := `{"name": "greet", "description": "Print a greeting", "command": "echo hi", "args": {}}`
	if err := os.WriteFile(filepath.Join(dir, "greet.jsonc"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}

	r := newTestRegistry(t, Config{Dir: dir, Enabled: []string{"shell"}})
	if _, err := r.Run(context.Background(), "greet", nil); err == nil {
		t.Error("disabled command skill still runs")
	}
}

func TestRunPublishesSkillRunEvents(t *testing.T) {
	bus := events.NewBus(16)
	t.Cleanup(bus.Close)
	ch, cancel := bus.SubscribeChan(8, events.EventSkillRun)
	defer cancel()

	r := newTestRegistry(t, Config{Events: bus})
	r.Run(context.Background(), "shell", map[string]any{"command": "echo hi"})
	r.Run(context.Background(), "missing_skill", nil)

	var runs []events.SkillRunPayload
	deadline := time.After(2 * time.Second)
	for len(runs) < 2 {
		select {
		case e := <-ch:
			p, ok := events.ExtractPayload[events.SkillRunPayload](e)
			if !ok {
				t.Fatalf("payload = %v", e.Payload)
			}
			runs = append(runs, p)
		case <-deadline:
			t.Fatalf("timed out, saw %d skill_run events", len(runs))
		}
	}
	if runs[0].Skill != "shell" || !runs[0].OK {
		t.Errorf("first run = %+v", runs[0])
	}
	if runs[1].Skill != "missing_skill" || runs[1].OK || runs[1].Error == "" {
		t.Errorf("second run = %+v", runs[1])
	}
}

func TestSanitizeSkillName(t *testing.T) {
	cases := map[string]string{
		"Word Count!":   "word_count",
		"  weather--x ": "weather_x",
		"___":           "",
	}
	for in, want := range cases {
		if got := sanitizeSkillName(in); got != want {
			t.Errorf("sanitizeSkillName(%q) = %q, want %q", in, got, want)
		}
	}
}
