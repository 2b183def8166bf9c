// Package memory is the agent's long-term memory: an interaction log with
// best-effort vector embeddings for semantic recall, plus the learned user
// profile (facts and preferences). It shares the store's SQLite handle.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/junoproject/juno/internal/models"
)

const (
	// defaultSearchWindow bounds how many recent embeddings a semantic
	// search scans. Brute-force cosine over a few hundred vectors is well
	// under a millisecond; an index would be overkill at this scale.
	defaultSearchWindow = 300

	embedTextCap  = 1000
	embedQueryCap = 500
	outputSnippet = 400

	// shortQueryWords skips embedding entirely: queries this short are too
	// generic for cosine similarity to beat plain recency.
	shortQueryWords = 6

	timeLayout = time.RFC3339Nano
)

// Embedder produces an embedding vector for one text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// generator is the slice of the model gateway fact extraction needs.
type generator interface {
	Generate(ctx context.Context, spec models.Spec, prompt string) (string, error)
}

// Config wires a Memory to its database and models.
type Config struct {
	DB           *sql.DB
	Embedder     Embedder
	Generator    generator
	Logger       *slog.Logger
	SearchWindow int
	Now          func() time.Time
}

// Memory records interactions and answers semantic queries over them.
type Memory struct {
	db     *sql.DB
	embed  Embedder
	gen    generator
	logger *slog.Logger
	window int
	now    func() time.Time
	cache  *embedCache
}

// New builds a Memory. Embedder and Generator may be nil; the affected
// features (semantic search, LLM fact extraction) degrade to their fallbacks.
func New(cfg Config) *Memory {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SearchWindow <= 0 {
		cfg.SearchWindow = defaultSearchWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Memory{
		db:     cfg.DB,
		embed:  cfg.Embedder,
		gen:    cfg.Generator,
		logger: cfg.Logger.With("component", "memory"),
		window: cfg.SearchWindow,
		now:    cfg.Now,
		cache:  newEmbedCache(embedCacheSize),
	}
}

// Interaction is one logged exchange.
type Interaction struct {
	UserInput string
	Intent    any // marshalled to JSON; nil stores "{}"
	Model     string
	Output    string
	Success   bool
	ToolCalls int
	Duration  time.Duration
}

// LogInteraction appends the exchange to the interaction log and embeds it
// for later semantic recall. Embedding failures are logged and swallowed;
// losing a vector must never lose the interaction itself.
func (m *Memory) LogInteraction(ctx context.Context, in Interaction) (int64, error) {
	intentJSON := "{}"
	if in.Intent != nil {
		if b, err := json.Marshal(in.Intent); err == nil {
			intentJSON = string(b)
		}
	}
	success := 0
	if in.Success {
		success = 1
	}

	res, err := m.db.ExecContext(ctx,
		`INSERT INTO interactions
		   (timestamp, user_input, intent_json, model_used, output, success, tool_calls, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.now().Format(timeLayout), in.UserInput, intentJSON, in.Model,
		in.Output, success, in.ToolCalls, in.Duration.Milliseconds())
	if err != nil {
		return 0, fmt.Errorf("log interaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("log interaction: %w", err)
	}

	output := in.Output
	if len(output) > outputSnippet {
		output = output[:outputSnippet]
	}
	m.embedAndStore(ctx, id, in.UserInput+" "+output)

	return id, nil
}

func (m *Memory) embedAndStore(ctx context.Context, interactionID int64, text string) {
	if m.embed == nil {
		return
	}
	if len(text) > embedTextCap {
		text = text[:embedTextCap]
	}
	vec, err := m.embed.Embed(ctx, text)
	if err != nil {
		m.logger.Warn("embedding failed", "interaction", interactionID, "error", err)
		return
	}
	blob, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if _, err := m.db.ExecContext(ctx,
		`INSERT INTO embeddings (interaction_id, text, vector, created_at) VALUES (?, ?, ?, ?)`,
		interactionID, text, blob, m.now().Format(timeLayout)); err != nil {
		m.logger.Warn("embedding insert failed", "interaction", interactionID, "error", err)
	}
}

// SearchResult is one recalled interaction.
type SearchResult struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	Intent string `json:"intent"`
}

// Search finds past interactions semantically similar to the query. Short
// queries, a missing embedder, and embedding errors all fall back to the
// most recent interactions, so callers always get usable context.
func (m *Memory) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}
	if m.embed == nil || len(strings.Fields(query)) <= shortQueryWords {
		return m.recent(ctx, topK)
	}

	if len(query) > embedQueryCap {
		query = query[:embedQueryCap]
	}
	qvec, ok := m.cache.get(query)
	if !ok {
		var err error
		qvec, err = m.embed.Embed(ctx, query)
		if err != nil {
			m.logger.Warn("query embedding failed, using recency", "error", err)
			return m.recent(ctx, topK)
		}
		m.cache.put(query, qvec)
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT i.user_input, i.output, i.intent_json, e.vector
		   FROM interactions i
		   JOIN embeddings e ON e.interaction_id = i.id
		  ORDER BY i.id DESC
		  LIMIT ?`, m.window)
	if err != nil {
		return m.recent(ctx, topK)
	}
	defer rows.Close()

	type scored struct {
		score  float64
		result SearchResult
	}
	var candidates []scored
	for rows.Next() {
		var r SearchResult
		var blob []byte
		if err := rows.Scan(&r.Input, &r.Output, &r.Intent, &blob); err != nil {
			continue
		}
		var vec []float64
		if err := json.Unmarshal(blob, &vec); err != nil {
			continue
		}
		if len(r.Output) > 300 {
			r.Output = r.Output[:300]
		}
		candidates = append(candidates, scored{cosine(qvec, vec), r})
	}
	if err := rows.Err(); err != nil {
		return m.recent(ctx, topK)
	}

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]SearchResult, len(candidates))
	for i, c := range candidates {
		results[i] = c.result
	}
	return results, nil
}

// SearchText renders Search results for skill output. Its signature matches
// the skills registry's Searcher hook.
func (m *Memory) SearchText(ctx context.Context, query string, topK int) (string, error) {
	results, err := m.Search(ctx, query, topK)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for i, r := range results {
		fmt.Fprintf(&sb, "[%d] Input: %s\n    Output: %s\n", i+1, r.Input, r.Output)
	}
	return sb.String(), nil
}

func (m *Memory) recent(ctx context.Context, n int) ([]SearchResult, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT user_input, output, intent_json FROM interactions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("recent interactions: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Input, &r.Output, &r.Intent); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// Stats summarises the interaction log.
type Stats struct {
	TotalInteractions int            `json:"total_interactions"`
	SuccessRate       string         `json:"success_rate"`
	AvgDurationMS     int            `json:"avg_duration_ms"`
	TopModels         map[string]int `json:"top_models"`
}

// GetStats reports interaction volume, success rate, and model usage.
func (m *Memory) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	var success int
	var avg sql.NullFloat64
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(success), 0), AVG(duration_ms) FROM interactions`).
		Scan(&st.TotalInteractions, &success, &avg)
	if err != nil {
		return Stats{}, fmt.Errorf("memory stats: %w", err)
	}
	if st.TotalInteractions > 0 {
		st.SuccessRate = fmt.Sprintf("%.0f%%", 100*float64(success)/float64(st.TotalInteractions))
	} else {
		st.SuccessRate = "0%"
	}
	if avg.Valid {
		st.AvgDurationMS = int(avg.Float64)
	}

	st.TopModels = map[string]int{}
	rows, err := m.db.QueryContext(ctx,
		`SELECT model_used, COUNT(*) AS n FROM interactions GROUP BY model_used ORDER BY n DESC LIMIT 5`)
	if err != nil {
		return Stats{}, fmt.Errorf("memory stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var model string
		var n int
		if err := rows.Scan(&model, &n); err != nil {
			return Stats{}, err
		}
		st.TopModels[model] = n
	}
	return st, rows.Err()
}

// InteractionsToday counts interactions logged since local midnight.
func (m *Memory) InteractionsToday(ctx context.Context) (int, error) {
	now := m.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interactions WHERE timestamp >= ?`,
		midnight.Format(timeLayout)).Scan(&n)
	return n, err
}

// RecentInputs returns the latest user inputs, newest first, each clipped
// for prompt budgets.
func (m *Memory) RecentInputs(ctx context.Context, n, clip int) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT user_input FROM interactions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var inputs []string
	for rows.Next() {
		var in string
		if err := rows.Scan(&in); err != nil {
			return nil, err
		}
		if clip > 0 && len(in) > clip {
			in = in[:clip]
		}
		inputs = append(inputs, in)
	}
	return inputs, rows.Err()
}

func cosine(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-9)
}
