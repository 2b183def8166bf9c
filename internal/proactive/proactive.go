// Package proactive surfaces useful messages and suggestions without being
// asked: sidebar suggestions, post-reply pushes, and time-of-day nudges.
package proactive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/junoproject/juno/internal/memory"
	"github.com/junoproject/juno/internal/models"
)

const (
	suggestModel = "qwen2.5:0.5b"

	sidebarCacheTTL = 15 * time.Minute
	pushMinGap      = 5 * time.Minute
	maxSuggestions  = 4
)

const sidebarPrompt = `Based on what you know about this user, generate 3-4 genuinely useful suggestions for things the assistant could help with right now.

User profile:
%s

Recent activity summary:
%s

Current time: %s

Generate suggestions that are:
- Specific to this user's life, not generic
- Immediately actionable
- Varied in type (task, information, reminder, creative)

Return JSON array: [{"category": "Reminder|Research|Task|Insight", "text": "Natural description", "action": "The message to pre-fill when clicked"}]
Return ONLY valid JSON.`

const pushPrompt = `You are a proactive personal assistant that knows this user well.

User profile:
%s

Recent exchange:
User said: %s
You responded about: %s

Should you proactively add something useful right now?
Think about: follow-up info, related reminders, useful context they might not know, next steps.

If YES: return {"push": true, "message": "Your proactive message here"}
If NO: return {"push": false}
Be selective — only push if genuinely valuable. Don't be annoying.
Return ONLY valid JSON.`

// Suggestion is one sidebar entry; Action pre-fills the chat input.
type Suggestion struct {
	Category string `json:"category"`
	Text     string `json:"text"`
	Action   string `json:"action"`
}

// generator is the slice of the model gateway this package needs.
type generator interface {
	Generate(ctx context.Context, spec models.Spec, prompt string) (string, error)
}

// Engine decides what to surface and when.
type Engine struct {
	mem    *memory.Memory
	gen    generator
	logger *slog.Logger
	now    func() time.Time

	mu           sync.Mutex
	lastPush     map[string]time.Time
	sidebarCache []Suggestion
	sidebarAt    time.Time
}

// New builds an Engine. gen may be nil; suggestion generation then always
// uses the generic fallbacks.
func New(mem *memory.Memory, gen generator, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		mem:      mem,
		gen:      gen,
		logger:   logger.With("component", "proactive"),
		now:      time.Now,
		lastPush: map[string]time.Time{},
	}
}

var (
	jsonArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// SidebarSuggestions returns context-aware suggestions, cached for a few
// minutes. Without a learned profile it returns time-of-day generics.
func (e *Engine) SidebarSuggestions(ctx context.Context) []Suggestion {
	now := e.now()

	e.mu.Lock()
	if e.sidebarCache != nil && now.Sub(e.sidebarAt) < sidebarCacheTTL {
		cached := e.sidebarCache
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	userContext := e.mem.ContextForPrompt(ctx)
	if e.gen == nil || userContext == memory.UnknownProfile {
		return e.genericSuggestions(now)
	}

	recent := e.recentSummary(ctx)
	if len(userContext) > 600 {
		userContext = userContext[:600]
	}
	if len(recent) > 300 {
		recent = recent[:300]
	}

	spec := models.Spec{Model: suggestModel, NumCtx: 1500, NumPredict: 400, Temperature: 0.7}
	prompt := fmt.Sprintf(sidebarPrompt, userContext, recent, now.Format("Monday, January 2 at 3:04 PM"))
	raw, err := e.gen.Generate(ctx, spec, prompt)
	if err != nil {
		e.logger.Debug("suggestion generation failed", "error", err)
		return e.genericSuggestions(now)
	}

	blob := jsonArrayRe.FindString(raw)
	if blob == "" {
		return e.genericSuggestions(now)
	}
	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(blob), &suggestions); err != nil || len(suggestions) == 0 {
		return e.genericSuggestions(now)
	}
	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}

	e.mu.Lock()
	e.sidebarCache = suggestions
	e.sidebarAt = now
	e.mu.Unlock()
	return suggestions
}

func (e *Engine) genericSuggestions(now time.Time) []Suggestion {
	switch hour := now.Hour(); {
	case hour < 10:
		return []Suggestion{
			{Category: "Morning", Text: "Get a summary of today's priorities", Action: "What should I focus on today?"},
			{Category: "Research", Text: "Check the news", Action: "What's happening in the news today?"},
			{Category: "Task", Text: "Set up your day", Action: "Help me plan my day"},
		}
	case hour < 17:
		return []Suggestion{
			{Category: "Task", Text: "Something you need to look up?", Action: "I need help researching "},
			{Category: "Code", Text: "Write or debug code", Action: "Help me with some code: "},
			{Category: "Research", Text: "Deep dive on a topic", Action: "Tell me everything about "},
		}
	default:
		return []Suggestion{
			{Category: "Evening", Text: "Reflect on today", Action: "Help me summarise what I accomplished today"},
			{Category: "Tomorrow", Text: "Plan for tomorrow", Action: "Help me plan tomorrow"},
			{Category: "Creative", Text: "Explore something interesting", Action: "Tell me something fascinating I probably don't know"},
		}
	}
}

// CheckAfterMessage decides, after a completed reply, whether to push one
// extra proactive message. Rate-limited and silent without a profile.
func (e *Engine) CheckAfterMessage(ctx context.Context, userMessage, response string) string {
	now := e.now()

	e.mu.Lock()
	last, ok := e.lastPush["general"]
	e.mu.Unlock()
	if ok && now.Sub(last) < pushMinGap {
		return ""
	}

	userContext := e.mem.ContextForPrompt(ctx)
	if e.gen == nil || userContext == memory.UnknownProfile {
		return ""
	}

	if len(userContext) > 400 {
		userContext = userContext[:400]
	}
	if len(userMessage) > 200 {
		userMessage = userMessage[:200]
	}
	if len(response) > 200 {
		response = response[:200]
	}

	spec := models.Spec{Model: suggestModel, NumCtx: 1500, NumPredict: 200, Temperature: 0.5}
	raw, err := e.gen.Generate(ctx, spec, fmt.Sprintf(pushPrompt, userContext, userMessage, response))
	if err != nil {
		return ""
	}
	blob := jsonObjectRe.FindString(raw)
	if blob == "" {
		return ""
	}
	var result struct {
		Push    bool   `json:"push"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(blob), &result); err != nil || !result.Push || result.Message == "" {
		return ""
	}

	e.mu.Lock()
	e.lastPush["general"] = now
	e.mu.Unlock()
	return result.Message
}

// PushMessage returns a time-of-day nudge, or "" when nothing is due. The UI
// polls it periodically; per-day cooldown keys stop repeats.
func (e *Engine) PushMessage(ctx context.Context) string {
	now := e.now()
	hour, minute := now.Hour(), now.Minute()
	weekday := now.Weekday()

	switch {
	case hour == 8 && minute < 10:
		return e.oncePerDay("morning", now, func() string { return e.morningBriefing(ctx, now) })
	case weekday >= time.Monday && weekday <= time.Friday && hour == 17 && minute >= 30 && minute < 40:
		return e.oncePerDay("eod", now, func() string { return e.endOfDay(ctx) })
	case weekday == time.Sunday && hour == 19 && minute < 10:
		return e.oncePerDay("weekly", now, func() string {
			return "🗓 It's Sunday evening — want me to help you prepare for the week ahead?"
		})
	}
	return ""
}

func (e *Engine) oncePerDay(kind string, now time.Time, build func() string) string {
	key := fmt.Sprintf("%s_%s", kind, now.Format("2006-01-02"))
	e.mu.Lock()
	if _, seen := e.lastPush[key]; seen {
		e.mu.Unlock()
		return ""
	}
	e.lastPush[key] = now
	e.mu.Unlock()
	return build()
}

func (e *Engine) morningBriefing(ctx context.Context, now time.Time) string {
	name := ""
	if fact := e.mem.FirstFact(ctx, "name"); fact != "" {
		name = ", " + fact
	}
	greeting := "Good morning"
	if now.Hour() >= 12 {
		greeting = "Good afternoon"
	}
	return fmt.Sprintf("%s%s! ☀️ I'm here and ready. "+
		"Would you like a briefing on anything, or shall we dive straight into your day?", greeting, name)
}

func (e *Engine) endOfDay(ctx context.Context) string {
	count, err := e.mem.InteractionsToday(ctx)
	if err != nil || count == 0 {
		return "Quiet day today — I'm here if you need anything this evening. 🌙"
	}
	plural := "s"
	if count == 1 {
		plural = ""
	}
	return fmt.Sprintf("You've had %d conversation%s with me today. "+
		"Want to wrap up or work on anything else before you finish?", count, plural)
}

func (e *Engine) recentSummary(ctx context.Context) string {
	inputs, err := e.mem.RecentInputs(ctx, 5, 60)
	if err != nil || len(inputs) == 0 {
		return "No recent activity"
	}
	return strings.Join(inputs, "; ")
}
