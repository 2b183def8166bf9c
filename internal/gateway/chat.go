package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/executor"
	"github.com/junoproject/juno/internal/memory"
	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/store"
)

const chatFallback = "Something went wrong — please try again."

// memoryTriggers are words that signal the user is referring to past
// context; only then is a semantic search worth the latency.
var memoryTriggers = map[string]struct{}{
	"remember": {}, "earlier": {}, "before": {},
	"previously": {}, "again": {}, "still": {}, "anymore": {},
}

// memoryTriggerPhrases catch multi-word references that word splitting
// misses.
var memoryTriggerPhrases = []string{"last time", "you said", "we discussed"}

// followUpCategories get a low-priority background research task queued
// after the reply, so the heartbeat can dig deeper unprompted.
var followUpCategories = map[string]struct{}{
	"research": {}, "web_search": {}, "planning": {}, "agentic_task": {}, "coding": {},
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if err := decodeJSON(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg := strings.TrimSpace(body.Message)
	if msg == "" {
		writeJSON(w, map[string]string{"error": "empty"})
		return
	}

	s.heartbeat.PauseForUser(r.Context())
	defer s.heartbeat.ResumeAfterUser()

	s.streamChat(r.Context(), newSSEWriter(w), msg)
}

func (s *Server) streamChat(ctx context.Context, sse *sseWriter, msg string) {
	start := time.Now()
	name := s.personality.Name()

	sse.event("stage", map[string]any{"message": "Reading your message..."})

	history := s.historySnapshot()
	intent := s.pipeline.Process(ctx, msg)

	sse.event("stage", map[string]any{"message": "Remembering what I know about you..."})

	userCtx := s.memory.ContextForPrompt(ctx)
	s.memory.ExtractFromMessage(ctx, msg)

	decision := s.router.Route(ctx, intent.Category)

	// Fire the quick ack on the smallest model while the real answer is
	// still being prepared.
	ackCh := make(chan string, 1)
	go func() { ackCh <- s.quickAck(ctx, msg) }()

	pastCtx := s.pastContext(ctx, msg)
	system := s.personality.SystemPrompt(decision.Model, intent.Category, userCtx, pastCtx)

	if ack := <-ackCh; ack != "" {
		sse.event("quick_ack", map[string]any{"message": ack})
	}
	sse.event("stage", map[string]any{"message": name + " is thinking..."})

	prompt := intent.Rewritten
	if prompt == "" {
		prompt = msg
	}
	res := s.executor.ExecuteValidated(ctx, executor.Request{
		Prompt:   prompt,
		Category: intent.Category,
		System:   system,
		Decision: decision,
		History:  history,
		OnToken: func(tok string) {
			sse.event("token", map[string]any{"text": tok})
		},
		OnThinking: func(text string) {
			sse.event("thinking", map[string]any{"text": text})
			if s.bus != nil {
				s.bus.Publish(events.NewTypedEvent(events.SourceServer,
					events.ThinkingPayload{Model: decision.Model, Content: text}))
			}
		},
		OnSkillCall: func(skill string, args map[string]any) {
			sse.event("skill_call", map[string]any{"skill": skill, "args": args})
		},
	})

	final := strings.TrimSpace(res.Output)
	if final == "" {
		final = chatFallback
	}
	if final != chatFallback {
		s.appendHistory(schema.UserMessage(msg))
		s.appendHistory(schema.AssistantMessage(final, nil))
	}

	sse.event("stage_done", map[string]any{"message": "Done"})
	sse.event("final", map[string]any{"message": final})

	model := res.Model
	if model == "" {
		model = decision.Model
	}
	if _, err := s.memory.LogInteraction(ctx, memory.Interaction{
		UserInput: msg,
		Intent:    intent,
		Model:     model,
		Output:    final,
		Success:   res.Success,
		ToolCalls: res.ToolCalls,
		Duration:  time.Since(start),
	}); err != nil {
		s.logger.Error("interaction log failed", "error", err)
	}
	s.memory.ExtractFromExchange(ctx, msg, final)
	s.memory.StoreIntentFacts(ctx, intent.Facts)

	if pro := s.proactive.CheckAfterMessage(ctx, msg, final); pro != "" {
		sse.event("proactive", map[string]any{"message": pro})
	}

	if _, ok := followUpCategories[intent.Category]; ok {
		s.queueFollowUp(ctx, msg, final)
	}
}

// quickAck asks the smallest model for a one-line acknowledgement.
// Anything implausibly short or long is discarded.
func (s *Server) quickAck(ctx context.Context, msg string) string {
	if s.gen == nil {
		return ""
	}
	ack, err := s.gen.Generate(ctx, models.Spec{
		Model:       "qwen2.5:0.5b",
		NumCtx:      512,
		NumPredict:  30,
		Temperature: 0.7,
	}, s.personality.QuickAckPrompt(msg))
	if err != nil {
		return ""
	}
	ack = strings.TrimSpace(ack)
	if len(ack) < 5 || len(ack) > 120 {
		return ""
	}
	return ack
}

// pastContext searches memory only when the message references past
// conversation, and formats the hits for the system prompt.
func (s *Server) pastContext(ctx context.Context, msg string) string {
	if !referencesPast(msg) {
		return "None yet."
	}
	results, err := s.memory.Search(ctx, msg, 3)
	if err != nil || len(results) == 0 {
		return "None yet."
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("- '%s' → '%s'",
			clip(r.Input, 50), clip(r.Output, 80)))
	}
	return strings.Join(lines, "\n")
}

func referencesPast(msg string) bool {
	lower := strings.ToLower(msg)
	for _, word := range strings.Fields(lower) {
		if _, ok := memoryTriggers[strings.Trim(word, ".,!?")]; ok {
			return true
		}
	}
	for _, phrase := range memoryTriggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func (s *Server) queueFollowUp(ctx context.Context, msg, final string) {
	desc := fmt.Sprintf("User asked: %s\nResponse: %s\n\nDig deeper. Find additional useful info. Prepare a proactive update.",
		msg, clip(final, 300))
	if _, err := s.store.Add(ctx, store.AddTask{
		Title:       "Follow up: " + clip(msg, 55),
		Description: desc,
		Type:        store.TypeResearch,
		Priority:    "low",
	}); err != nil {
		s.logger.Error("follow-up task insert failed", "error", err)
	}
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
