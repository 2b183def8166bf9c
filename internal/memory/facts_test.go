package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junoproject/juno/internal/pipeline"
)

func countFacts(t *testing.T, m *Memory, category string) int {
	t.Helper()
	var n int
	err := m.db.QueryRow(`SELECT COUNT(*) FROM user_facts WHERE category = ?`, category).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestStoreFactDeduplicates(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	require.NoError(t, m.StoreFact(ctx, "location", "Lyon", 0.8, "heuristic"))
	require.NoError(t, m.StoreFact(ctx, "location", "lives in Lyon", 0.6, "llm_extract"))
	assert.Equal(t, 1, countFacts(t, m, "location"), "containment match should update, not insert")

	var confidence float64
	require.NoError(t, m.db.QueryRow(`SELECT confidence FROM user_facts WHERE category = 'location'`).Scan(&confidence))
	assert.Equal(t, 0.8, confidence, "dedup keeps the higher confidence")

	require.NoError(t, m.StoreFact(ctx, "location", "Paris", 0.8, "heuristic"))
	assert.Equal(t, 2, countFacts(t, m, "location"), "a different fact gets its own row")
}

func TestSimilarFacts(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"Lyon", "lyon", true},
		{"software engineer", "senior software engineer at a startup", true},
		{"likes hiking in the alps", "likes hiking in the mountains", true},
		{"Paris", "Lyon", false},
		{"", "Lyon", false},
	}
	for _, tc := range cases {
		if got := similarFacts(tc.a, tc.b); got != tc.want {
			t.Errorf("similarFacts(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestHeuristicExtraction(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	m.ExtractFromMessage(ctx, "Hi, I'm Michael and I live in Lyon. I spend evenings on python programming.")

	assert.Equal(t, "Michael", m.FirstFact(ctx, "name"))
	assert.True(t, strings.HasPrefix(m.FirstFact(ctx, "location"), "Lyon"))
	assert.Equal(t, "coding", m.FirstFact(ctx, "interests"))
}

func TestHeuristicExtractionOccupation(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	m.ExtractFromMessage(ctx, "I am a backend engineer these days")
	assert.Equal(t, "backend engineer", m.FirstFact(ctx, "occupation"))
}

func TestLLMExtractionStoresFacts(t *testing.T) {
	ctx := context.Background()
	gen := stubGenerator{reply: `Here are the facts:
[
  {"category": "goals", "fact": "training for a marathon", "confidence": 0.85},
  {"category": "family", "fact": "has a daughter"},
  {"category": "", "fact": "dropped"}
]`}
	m := newTestMemory(t, nil, gen)

	m.ExtractFromExchange(ctx, "my daughter and I started marathon training", "That's great!")

	assert.Equal(t, "training for a marathon", m.FirstFact(ctx, "goals"))
	assert.Equal(t, "has a daughter", m.FirstFact(ctx, "family"))

	var confidence float64
	require.NoError(t, m.db.QueryRow(`SELECT confidence FROM user_facts WHERE category = 'family'`).Scan(&confidence))
	assert.Equal(t, 0.7, confidence, "missing confidence defaults")
}

func TestLLMExtractionToleratesGarbage(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, stubGenerator{reply: "no json here"})
	m.ExtractFromExchange(ctx, "hello", "hi")
	assert.Equal(t, UnknownProfile, m.ContextForPrompt(ctx))
}

func TestStoreIntentFacts(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	m.StoreIntentFacts(ctx, []pipeline.Fact{
		{Category: "projects", Fact: "building a home server"},
		{Category: "", Fact: "ignored"},
	})
	assert.Equal(t, "building a home server", m.FirstFact(ctx, "projects"))
	assert.Equal(t, 0, countFacts(t, m, ""))
}

func TestContextForPromptOrderingAndCaps(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	assert.Equal(t, UnknownProfile, m.ContextForPrompt(ctx))

	require.NoError(t, m.StoreFact(ctx, "technology", "runs a raspberry pi cluster", 0.9, "t"))
	require.NoError(t, m.StoreFact(ctx, "name", "Michael", 0.9, "t"))
	for _, interest := range []string{"coding", "music", "fitness", "cooking"} {
		require.NoError(t, m.StoreFact(ctx, "interests", interest, 0.8, "t"))
	}
	require.NoError(t, m.StoreFact(ctx, "mood", "cheerful", 0.3, "t"))

	out := m.ContextForPrompt(ctx)
	lines := strings.Split(out, "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "- Name: Michael", lines[0], "priority categories come first")
	assert.NotContains(t, out, "cheerful", "low-confidence facts are hidden")

	for _, line := range lines {
		if strings.HasPrefix(line, "- Interests:") {
			assert.Len(t, strings.Split(line, ","), 3, "priority categories cap at three facts")
		}
	}
	assert.Contains(t, out, "- Technology: runs a raspberry pi cluster")
}

func TestDisplayProfile(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	for _, interest := range []string{"coding", "music", "fitness"} {
		require.NoError(t, m.StoreFact(ctx, "interests", interest, 0.8, "t"))
	}
	require.NoError(t, m.StoreFact(ctx, "name", "Michael", 0.9, "t"))
	require.NoError(t, m.SetPreference(ctx, "assistant_name", "Juno"))

	profile, err := m.DisplayProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Juno", profile.AssistantName)

	perCategory := map[string]int{}
	for _, f := range profile.Facts {
		perCategory[f.Category]++
		if f.Category == "name" {
			assert.Equal(t, "👤", f.Icon)
		}
	}
	assert.Equal(t, 2, perCategory["interests"], "display caps at two facts per category")
	assert.Equal(t, 1, perCategory["name"])
}

func TestPreferencesRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newTestMemory(t, nil, nil)

	v, err := m.GetPreference(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, m.SetPreference(ctx, "assistant_name", "Juno"))
	require.NoError(t, m.SetPreference(ctx, "assistant_name", "Iris"))

	v, err = m.GetPreference(ctx, "assistant_name")
	require.NoError(t, err)
	assert.Equal(t, "Iris", v)
}
