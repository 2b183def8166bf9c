package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/pipeline"
)

// factIcons decorate profile entries in the UI sidebar.
var factIcons = map[string]string{
	"name":          "👤",
	"location":      "📍",
	"occupation":    "💼",
	"interests":     "🎯",
	"family":        "👨‍👩‍👧",
	"health":        "🏃",
	"schedule":      "📅",
	"preferences":   "⭐",
	"goals":         "🚀",
	"projects":      "🔧",
	"skills":        "🧠",
	"finances":      "💰",
	"mood":          "😊",
	"communication": "💬",
	"technology":    "💻",
}

// factPriority orders profile categories in the prompt context; the rest
// follow alphabetically.
var factPriority = []string{
	"name", "location", "occupation", "goals", "projects",
	"preferences", "interests", "family", "health", "schedule",
}

const extractModel = "qwen2.5:0.5b"

const extractPrompt = `Extract factual information about the user from this message exchange.
Only extract clear, explicit facts — don't infer or guess.

User message: %s
Assistant response: %s

Return a JSON array of facts. Each fact: {"category": "...", "fact": "...", "confidence": 0.0-1.0}
Categories: name, location, occupation, interests, family, health, schedule, preferences, goals, projects, skills, finances, mood, communication, technology

Return [] if no clear facts found.
Return ONLY the JSON array, nothing else.`

// UnknownProfile is returned while no facts have been learned yet.
const UnknownProfile = "I'm still getting to know you. Tell me about yourself!"

// StoreFact records one fact about the user, deduplicating against recent
// facts of the same category. A near-duplicate bumps the stored confidence
// instead of inserting a second row.
func (m *Memory) StoreFact(ctx context.Context, category, fact string, confidence float64, source string) error {
	fact = strings.TrimSpace(fact)
	if fact == "" || category == "" {
		return nil
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT id, fact FROM user_facts WHERE category = ? ORDER BY updated_at DESC LIMIT 5`,
		category)
	if err != nil {
		return fmt.Errorf("store fact: %w", err)
	}
	defer rows.Close()

	var matchID int64 = -1
	for rows.Next() {
		var id int64
		var existing string
		if err := rows.Scan(&id, &existing); err != nil {
			return err
		}
		if similarFacts(existing, fact) {
			matchID = id
			break
		}
	}
	rows.Close()
	now := m.now().Format(timeLayout)

	if matchID >= 0 {
		_, err := m.db.ExecContext(ctx,
			`UPDATE user_facts SET confidence = MAX(confidence, ?), updated_at = ? WHERE id = ?`,
			confidence, now, matchID)
		if err != nil {
			return fmt.Errorf("store fact: %w", err)
		}
		return nil
	}

	_, err = m.db.ExecContext(ctx,
		`INSERT INTO user_facts (category, fact, confidence, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		category, fact, confidence, source, now, now)
	if err != nil {
		return fmt.Errorf("store fact: %w", err)
	}
	return nil
}

// StoreIntentFacts persists facts the pre-pipeline extracted alongside intent
// classification.
func (m *Memory) StoreIntentFacts(ctx context.Context, facts []pipeline.Fact) {
	for _, f := range facts {
		if err := m.StoreFact(ctx, f.Category, f.Fact, 0.7, "pre_pipeline"); err != nil {
			m.logger.Warn("fact insert failed", "category", f.Category, "error", err)
		}
	}
}

var (
	namePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:(?i:i'?m)|(?i:my name is)|(?i:call me)) ([A-Z][a-z]+)`),
	}
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:(?i:i (?:live|am) in)|(?i:based in)) ([A-Z][a-zA-Z ,]+)`),
	}
	occupationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`i(?:'m| am) (?:a |an )?([a-z]+ (?:developer|engineer|designer|teacher|doctor|lawyer|student|manager|founder|ceo|cto))`),
		regexp.MustCompile(`i work (?:as an? )?([a-z ]+)`),
	}
)

// interestSignals maps an interest to keywords that imply it.
var interestSignals = map[string][]string{
	"coding":  {"python", "javascript", "programming", "coding", "software"},
	"music":   {"music", "guitar", "piano", "spotify", "playlist"},
	"fitness": {"gym", "running", "workout", "exercise", "yoga"},
	"cooking": {"recipe", "cooking", "food", "chef", "kitchen"},
	"reading": {"book", "reading", "novel", "author", "library"},
	"gaming":  {"game", "gaming", "steam", "playstation", "xbox"},
}

// ExtractFromMessage runs cheap pattern extraction over the user's message.
// It is called on every inbound message, so no model call happens here.
func (m *Memory) ExtractFromMessage(ctx context.Context, text string) {
	lower := strings.ToLower(text)

	for _, re := range namePatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			m.storeQuiet(ctx, "name", match[1], 0.9, "heuristic")
		}
	}
	for _, re := range locationPatterns {
		if match := re.FindStringSubmatch(text); match != nil {
			m.storeQuiet(ctx, "location", strings.TrimSpace(match[1]), 0.8, "heuristic")
		}
	}
	for _, re := range occupationPatterns {
		if match := re.FindStringSubmatch(lower); match != nil {
			m.storeQuiet(ctx, "occupation", strings.TrimSpace(match[1]), 0.8, "heuristic")
		}
	}
	for interest, keywords := range interestSignals {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				m.storeQuiet(ctx, "interests", interest, 0.6, "heuristic")
				break
			}
		}
	}
}

func (m *Memory) storeQuiet(ctx context.Context, category, fact string, confidence float64, source string) {
	if err := m.StoreFact(ctx, category, fact, confidence, source); err != nil {
		m.logger.Warn("fact insert failed", "category", category, "error", err)
	}
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// ExtractFromExchange asks a small model for facts in the completed exchange
// and stores whatever parses. All failures are swallowed; profile building
// is strictly best-effort.
func (m *Memory) ExtractFromExchange(ctx context.Context, userMsg, assistantMsg string) {
	if m.gen == nil {
		return
	}
	if len(userMsg) > 500 {
		userMsg = userMsg[:500]
	}
	if len(assistantMsg) > 300 {
		assistantMsg = assistantMsg[:300]
	}

	spec := models.Spec{Model: extractModel, NumCtx: 1024, NumPredict: 400, Temperature: 0.1}
	raw, err := m.gen.Generate(ctx, spec, fmt.Sprintf(extractPrompt, userMsg, assistantMsg))
	if err != nil {
		m.logger.Debug("fact extraction failed", "error", err)
		return
	}
	blob := jsonArrayRe.FindString(raw)
	if blob == "" {
		return
	}

	var facts []struct {
		Category   string  `json:"category"`
		Fact       string  `json:"fact"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(blob), &facts); err != nil {
		return
	}
	for _, f := range facts {
		if f.Category == "" || f.Fact == "" {
			continue
		}
		conf := f.Confidence
		if conf <= 0 {
			conf = 0.7
		}
		m.storeQuiet(ctx, f.Category, f.Fact, conf, "llm_extract")
	}
}

// ContextForPrompt renders the learned profile for system-prompt injection.
// High-priority categories come first, capped at three facts each.
func (m *Memory) ContextForPrompt(ctx context.Context) string {
	rows, err := m.db.QueryContext(ctx,
		`SELECT category, fact FROM user_facts WHERE confidence > 0.5
		 ORDER BY confidence DESC, updated_at DESC`)
	if err != nil {
		m.logger.Warn("profile query failed", "error", err)
		return UnknownProfile
	}
	defer rows.Close()

	byCategory := map[string][]string{}
	for rows.Next() {
		var cat, fact string
		if err := rows.Scan(&cat, &fact); err != nil {
			return UnknownProfile
		}
		byCategory[cat] = append(byCategory[cat], fact)
	}
	if len(byCategory) == 0 {
		return UnknownProfile
	}

	var lines []string
	appendLine := func(cat string, limit int) {
		facts := byCategory[cat]
		if len(facts) > limit {
			facts = facts[:limit]
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", capitalize(cat), strings.Join(facts, ", ")))
	}

	seen := map[string]bool{}
	for _, cat := range factPriority {
		if _, ok := byCategory[cat]; ok {
			appendLine(cat, 3)
			seen[cat] = true
		}
	}
	var rest []string
	for cat := range byCategory {
		if !seen[cat] {
			rest = append(rest, cat)
		}
	}
	sort.Strings(rest)
	for _, cat := range rest {
		appendLine(cat, 2)
	}

	return strings.Join(lines, "\n")
}

// ProfileFact is one sidebar profile entry.
type ProfileFact struct {
	Icon     string `json:"icon"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

// Profile is the UI view of the user model.
type Profile struct {
	Facts         []ProfileFact `json:"facts"`
	AssistantName string        `json:"assistant_name,omitempty"`
}

// DisplayProfile returns the sidebar view: the strongest facts, at most two
// per category, plus the configured assistant name.
func (m *Memory) DisplayProfile(ctx context.Context) (Profile, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT category, fact FROM user_facts WHERE confidence > 0.5
		 ORDER BY confidence DESC, updated_at DESC LIMIT 20`)
	if err != nil {
		return Profile{}, fmt.Errorf("display profile: %w", err)
	}
	defer rows.Close()

	profile := Profile{Facts: []ProfileFact{}}
	perCategory := map[string]int{}
	for rows.Next() {
		var cat, fact string
		if err := rows.Scan(&cat, &fact); err != nil {
			return Profile{}, err
		}
		if perCategory[cat] >= 2 {
			continue
		}
		perCategory[cat]++
		icon := factIcons[cat]
		if icon == "" {
			icon = "•"
		}
		profile.Facts = append(profile.Facts, ProfileFact{Icon: icon, Text: fact, Category: cat})
	}
	if err := rows.Err(); err != nil {
		return Profile{}, err
	}

	profile.AssistantName, _ = m.GetPreference(ctx, "assistant_name")
	return profile, nil
}

// FirstFact returns the strongest stored fact in a category, or "".
func (m *Memory) FirstFact(ctx context.Context, category string) string {
	var fact string
	err := m.db.QueryRowContext(ctx,
		`SELECT fact FROM user_facts WHERE category = ? ORDER BY confidence DESC LIMIT 1`,
		category).Scan(&fact)
	if err != nil {
		return ""
	}
	return fact
}

// SetPreference upserts a user preference.
func (m *Memory) SetPreference(ctx context.Context, key, value string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO user_preferences (key, value, updated_at) VALUES (?, ?, ?)`,
		key, value, m.now().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("set preference %q: %w", key, err)
	}
	return nil
}

// GetPreference reads a user preference; missing keys return "".
func (m *Memory) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := m.db.QueryRowContext(ctx,
		`SELECT value FROM user_preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get preference %q: %w", key, err)
	}
	return value, nil
}

// similarFacts is a rough duplicate check: exact match, containment, or
// high word overlap.
func similarFacts(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	wordsA := map[string]bool{}
	for _, w := range strings.Fields(a) {
		wordsA[w] = true
	}
	wordsB := map[string]bool{}
	for _, w := range strings.Fields(b) {
		wordsB[w] = true
	}
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return false
	}
	overlap := 0
	for w := range wordsA {
		if wordsB[w] {
			overlap++
		}
	}
	max := len(wordsA)
	if len(wordsB) > max {
		max = len(wordsB)
	}
	return float64(overlap)/float64(max) > 0.7
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
