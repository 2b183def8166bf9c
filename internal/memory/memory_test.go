package memory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/store"
)

// stubEmbedder maps keywords onto fixed vector axes so similarity is
// deterministic without a real model.
type stubEmbedder struct {
	fail  bool
	calls int
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	e.calls++
	if e.fail {
		return nil, errors.New("embedder down")
	}
	vec := make([]float64, 3)
	lower := strings.ToLower(text)
	if strings.Contains(lower, "sourdough") {
		vec[0] = 1
	}
	if strings.Contains(lower, "kubernetes") {
		vec[1] = 1
	}
	vec[2] = 0.1
	return vec, nil
}

type stubGenerator struct {
	reply string
	err   error
}

func (g stubGenerator) Generate(_ context.Context, _ models.Spec, _ string) (string, error) {
	return g.reply, g.err
}

func newTestMemory(t *testing.T, embed Embedder, gen generator) *Memory {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return New(Config{DB: s.DB(), Embedder: embed, Generator: gen})
}

func TestLogInteractionAndSemanticSearch(t *testing.T) {
	ctx := context.Background()
	embed := &stubEmbedder{}
	m := newTestMemory(t, embed, nil)

	_, err := m.LogInteraction(ctx, Interaction{
		UserInput: "how do I feed my sourdough starter",
		Output:    "Feed it twice daily with equal parts flour and water.",
		Model:     "llama3.1:8b",
		Success:   true,
		Duration:  1200 * time.Millisecond,
	})
	require.NoError(t, err)
	_, err = m.LogInteraction(ctx, Interaction{
		UserInput: "why is my kubernetes pod pending",
		Output:    "Usually unschedulable resources. Check node capacity.",
		Model:     "qwen2.5-coder:7b",
		Success:   true,
	})
	require.NoError(t, err)

	// Long enough to engage embedding rather than the recency fallback.
	results, err := m.Search(ctx, "what was that advice about keeping a sourdough starter alive", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Input, "sourdough")
}

func TestShortQueryUsesRecency(t *testing.T) {
	ctx := context.Background()
	embed := &stubEmbedder{}
	m := newTestMemory(t, embed, nil)

	_, err := m.LogInteraction(ctx, Interaction{UserInput: "first", Output: "a"})
	require.NoError(t, err)
	_, err = m.LogInteraction(ctx, Interaction{UserInput: "second", Output: "b"})
	require.NoError(t, err)
	embedCalls := embed.calls

	results, err := m.Search(ctx, "sourdough", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "second", results[0].Input, "recency fallback returns newest first")
	assert.Equal(t, embedCalls, embed.calls, "short query must not hit the embedder")
}

func TestEmbedderFailureFallsBackToRecency(t *testing.T) {
	ctx := context.Background()
	embed := &stubEmbedder{}
	m := newTestMemory(t, embed, nil)

	_, err := m.LogInteraction(ctx, Interaction{UserInput: "only one", Output: "x"})
	require.NoError(t, err)

	embed.fail = true
	results, err := m.Search(ctx, "a much longer query with more than six words in it", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "only one", results[0].Input)
}

func TestLogInteractionSurvivesEmbedFailure(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, &stubEmbedder{fail: true}, nil)

	id, err := m.LogInteraction(ctx, Interaction{UserInput: "hello", Output: "hi"})
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestSearchTextFormat(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	_, err := m.LogInteraction(ctx, Interaction{UserInput: "ping", Output: "pong"})
	require.NoError(t, err)

	out, err := m.SearchText(ctx, "ping", 5)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] Input: ping")
	assert.Contains(t, out, "Output: pong")
}

func TestQueryEmbeddingIsCached(t *testing.T) {
	ctx := context.Background()
	embed := &stubEmbedder{}
	m := newTestMemory(t, embed, nil)

	_, err := m.LogInteraction(ctx, Interaction{UserInput: "sourdough tips", Output: "feed it"})
	require.NoError(t, err)
	before := embed.calls

	query := "remind me what you said about my sourdough starter routine"
	_, err = m.Search(ctx, query, 3)
	require.NoError(t, err)
	_, err = m.Search(ctx, query, 3)
	require.NoError(t, err)
	assert.Equal(t, before+1, embed.calls, "second identical search should hit the cache")
}

func TestEmbedCacheEviction(t *testing.T) {
	c := newEmbedCache(2)
	c.put("a", []float64{1})
	c.put("b", []float64{2})
	if _, ok := c.get("a"); !ok {
		t.Fatal("a should still be cached")
	}
	// "a" was just used, so inserting "c" evicts "b".
	c.put("c", []float64{3})
	if _, ok := c.get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.get("a"); !ok {
		t.Error("a should survive as most recently used")
	}
}

func TestGetStats(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	_, err := m.LogInteraction(ctx, Interaction{UserInput: "a", Model: "llama3.2:3b", Success: true, Duration: 100 * time.Millisecond})
	require.NoError(t, err)
	_, err = m.LogInteraction(ctx, Interaction{UserInput: "b", Model: "llama3.2:3b", Success: false, Duration: 300 * time.Millisecond})
	require.NoError(t, err)

	st, err := m.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalInteractions)
	assert.Equal(t, "50%", st.SuccessRate)
	assert.Equal(t, 200, st.AvgDurationMS)
	assert.Equal(t, 2, st.TopModels["llama3.2:3b"])
}
