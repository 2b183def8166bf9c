package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/junoproject/juno/internal/config"
)

func TestIsOOM(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("model requires more system memory: out of memory"), true},
		{errors.New("CUDA error: out of device memory"), true},
		{&OOMError{Model: "qwen2.5:14b", Cause: errors.New("oom")}, true},
		{fmt.Errorf("wrapped: %w", &OOMError{Model: "m", Cause: errors.New("x")}), true},
		{errors.New("connection refused"), false},
	}
	for _, c := range cases {
		if got := IsOOM(c.err); got != c.want {
			t.Errorf("IsOOM(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestWrapErrorClassification(t *testing.T) {
	err := WrapError("qwen2.5:14b", errors.New("llama runner process out of memory"))
	var oom *OOMError
	if !errors.As(err, &oom) {
		t.Fatalf("expected OOMError, got %T: %v", err, err)
	}
	if oom.Model != "qwen2.5:14b" {
		t.Errorf("model = %q", oom.Model)
	}

	if err := WrapError("m", errors.New("dial tcp: connection refused")); err == nil {
		t.Fatal("expected wrapped error")
	}

	if err := WrapError("m", nil); err != nil {
		t.Errorf("nil should stay nil, got %v", err)
	}
}

func TestSpecKeyDistinguishesOptions(t *testing.T) {
	a := Spec{Model: "llama3.2:3b", NumCtx: 4096, NumPredict: 512}
	b := Spec{Model: "llama3.2:3b", NumCtx: 8192, NumPredict: 512}
	if a.Key() == b.Key() {
		t.Error("specs with different context windows must not share a cache key")
	}
	if a.Key() != (Spec{Model: "llama3.2:3b", NumCtx: 4096, NumPredict: 512}).Key() {
		t.Error("identical specs must share a cache key")
	}
}

func TestInstalledFromTags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:3b"},{"name":"qwen2.5:14b"}]}`)
	}))
	defer srv.Close()

	g := NewGateway(config.ModelsConfig{Driver: "ollama", BaseURL: srv.URL})
	got := g.Installed(context.Background())
	if len(got) != 2 || got[0] != "llama3.2:3b" || got[1] != "qwen2.5:14b" {
		t.Errorf("installed = %v", got)
	}

	// Discovery runs once; a second call must not re-fetch.
	srv.Close()
	if again := g.Installed(context.Background()); len(again) != 2 {
		t.Errorf("cached installed = %v", again)
	}
}

func TestInstalledNonOllamaDriver(t *testing.T) {
	g := NewGateway(config.ModelsConfig{Driver: "openai"})
	if got := g.Installed(context.Background()); got != nil {
		t.Errorf("openai driver should report no installed models, got %v", got)
	}
}
