package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/executor"
	"github.com/junoproject/juno/internal/memory"
	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/personality"
	"github.com/junoproject/juno/internal/pipeline"
	"github.com/junoproject/juno/internal/proactive"
	"github.com/junoproject/juno/internal/router"
	"github.com/junoproject/juno/internal/store"
)

type stubPipeline struct {
	intent pipeline.Intent
}

func (s stubPipeline) Process(_ context.Context, text string) pipeline.Intent {
	intent := s.intent
	if intent.Category == "" {
		intent.Category = "general_chat"
	}
	if intent.Rewritten == "" {
		intent.Rewritten = text
	}
	return intent
}

type stubExec struct {
	result executor.Result
	during func(req executor.Request) // runs mid-execution, for callback tests
	reqs   []executor.Request
}

func (s *stubExec) ExecuteValidated(_ context.Context, req executor.Request) executor.Result {
	s.reqs = append(s.reqs, req)
	if s.during != nil {
		s.during(req)
	}
	if s.result.Model == "" && s.result.Output == "" {
		return executor.Result{Success: true, Output: "All done.", Model: req.Decision.Model}
	}
	return s.result
}

type stubPauser struct {
	paused  int
	resumed int
}

func (s *stubPauser) PauseForUser(context.Context) { s.paused++ }
func (s *stubPauser) ResumeAfterUser()             { s.resumed++ }

type stubGen struct {
	reply string
	calls int
}

func (s *stubGen) Generate(_ context.Context, _ models.Spec, _ string) (string, error) {
	s.calls++
	return s.reply, nil
}

type testServer struct {
	srv    *Server
	store  *store.Store
	mem    *memory.Memory
	exec   *stubExec
	pauser *stubPauser
	gen    *stubGen
	bus    *events.Bus
}

func newTestServer(t *testing.T, exec *stubExec, intent pipeline.Intent) *testServer {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	// Drain the bootstrap seeds so tests control the queue.
	seeded, err := s.GetAll(context.Background(), "", 100)
	if err != nil {
		t.Fatalf("list seeds: %v", err)
	}
	for _, task := range seeded {
		if err := s.Cancel(context.Background(), task.ID, "test setup"); err != nil {
			t.Fatalf("cancel seed: %v", err)
		}
	}

	bus := events.NewBus(64)
	t.Cleanup(bus.Close)

	mem := memory.New(memory.Config{DB: s.DB()})
	pers := personality.Load(filepath.Join(t.TempDir(), "personality.json"), nil)
	pauser := &stubPauser{}
	gen := &stubGen{reply: "On it, checking now."}

	srv := NewServer(Config{
		Bus:         bus,
		Store:       s,
		Memory:      mem,
		Personality: pers,
		Proactive:   proactive.New(mem, nil, nil),
		Pipeline:    stubPipeline{intent: intent},
		Router:      router.New("dynamic", "", nil),
		Executor:    exec,
		Heartbeat:   pauser,
		Generator:   gen,
		Host:        "localhost",
	})
	t.Cleanup(srv.hub.Close)

	return &testServer{srv: srv, store: s, mem: mem, exec: exec, pauser: pauser, gen: gen, bus: bus}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	ts.srv.httpServer.Handler.ServeHTTP(w, req)
	return w
}

// parseSSE decodes every "data:" line in an SSE body.
func parseSSE(t *testing.T, body string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("bad SSE line %q: %v", line, err)
		}
		out = append(out, ev)
	}
	return out
}

func sseByType(evs []map[string]any, eventType string) []map[string]any {
	var out []map[string]any
	for _, e := range evs {
		if e["type"] == eventType {
			out = append(out, e)
		}
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t, &stubExec{}, pipeline.Intent{})

	w := ts.do(t, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %q", body["status"])
	}
}

func TestTaskEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubExec{}, pipeline.Intent{})

	w := ts.do(t, http.MethodPost, "/tasks", `{"title":"Check the weather","task_type":"research","priority_name":"high"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("create: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var created map[string]int64
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	id := created["id"]
	if id == 0 {
		t.Fatal("expected a task id")
	}

	w = ts.do(t, http.MethodGet, "/tasks?status=pending", "")
	var list struct {
		Tasks   []store.Task   `json:"tasks"`
		Summary map[string]int `json:"summary"`
	}
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].Title != "Check the weather" {
		t.Fatalf("unexpected task list: %+v", list.Tasks)
	}
	if list.Summary["pending"] != 1 {
		t.Fatalf("expected 1 pending in summary, got %v", list.Summary)
	}

	w = ts.do(t, http.MethodDelete, "/tasks/"+strconv.FormatInt(id, 10), "")
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/tasks/summary", "")
	var summary map[string]int
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary["pending"] != 0 {
		t.Fatalf("expected empty pending after cancel, got %v", summary)
	}
}

func TestTaskCreateRejectsUnknownType(t *testing.T) {
	ts := newTestServer(t, &stubExec{}, pipeline.Intent{})

	w := ts.do(t, http.MethodPost, "/tasks", `{"title":"x","task_type":"launder"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown task type, got %d", w.Code)
	}
}

func TestPersonalityRoundTrip(t *testing.T) {
	ts := newTestServer(t, &stubExec{}, pipeline.Intent{})

	w := ts.do(t, http.MethodPost, "/personality",
		`{"name":"Juno","profile":"Playful","flavors":{"humor":70,"warmth":80,"sass":40,"verbosity":50,"chaos":35}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/personality", "")
	var p personality.Personality
	if err := json.NewDecoder(w.Body).Decode(&p); err != nil {
		t.Fatalf("decode personality: %v", err)
	}
	if p.Name != "Juno" || !p.Configured {
		t.Fatalf("expected configured Juno, got %+v", p)
	}

	// Saving queues an in-character greeting task.
	pending, err := ts.store.GetAll(context.Background(), store.StatusPending, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Title != "Compose greeting as Juno" {
		t.Fatalf("expected greeting task, got %+v", pending)
	}
	if pending[0].Type != store.TypePrepare || pending[0].PriorityName != "high" {
		t.Fatalf("greeting task has wrong shape: %+v", pending[0])
	}

	name, err := ts.mem.GetPreference(context.Background(), "assistant_name")
	if err != nil || name != "Juno" {
		t.Fatalf("expected assistant_name preference, got %q, %v", name, err)
	}
}

func TestPresets(t *testing.T) {
	ts := newTestServer(t, &stubExec{}, pipeline.Intent{})

	w := ts.do(t, http.MethodGet, "/personality/presets", "")
	var body struct {
		Presets []personality.Preset `json:"presets"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode presets: %v", err)
	}
	if len(body.Presets) == 0 {
		t.Fatal("expected at least one preset")
	}
}

func TestProfileEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubExec{}, pipeline.Intent{})

	if err := ts.mem.StoreFact(context.Background(), "name", "Name: Michael", 0.9, "test"); err != nil {
		t.Fatalf("store fact: %v", err)
	}

	w := ts.do(t, http.MethodGet, "/profile", "")
	var profile memory.Profile
	if err := json.NewDecoder(w.Body).Decode(&profile); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if len(profile.Facts) != 1 || profile.Facts[0].Text != "Name: Michael" {
		t.Fatalf("unexpected profile: %+v", profile)
	}
	if profile.AssistantName == "" {
		t.Fatal("expected an assistant name")
	}
}

func TestProactiveEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubExec{}, pipeline.Intent{})

	w := ts.do(t, http.MethodGet, "/proactive", "")
	var body struct {
		Suggestions []proactive.Suggestion `json:"suggestions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	if len(body.Suggestions) == 0 {
		t.Fatal("expected generic suggestions for an unknown user")
	}

	w = ts.do(t, http.MethodGet, "/proactive/push", "")
	var push map[string]string
	if err := json.NewDecoder(w.Body).Decode(&push); err != nil {
		t.Fatalf("decode push: %v", err)
	}
	if _, ok := push["message"]; !ok {
		t.Fatal("push response is missing the message field")
	}
}
