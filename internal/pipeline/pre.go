// Package pipeline runs the pre-pass over every incoming message: one small
// fast model call that classifies intent, rewrites the prompt, and extracts
// user facts at once, with a keyword heuristic as fallback.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/junoproject/juno/internal/models"
)

const (
	// The pre-pass must answer in well under a second, so it always runs
	// on the smallest pullable model regardless of the background model.
	preModel      = "qwen2.5:0.5b"
	preNumPredict = 200
	preNumCtx     = 1200
	preTemp       = 0.1

	// Inputs are truncated before the model sees them; classification does
	// not need the whole message.
	maxInputChars = 400
)

const prePrompt = `Analyze the user message and respond with ONLY a JSON object, no other text.

The JSON must have exactly these keys:
- "category": one of [%s]
- "confidence": a number between 0.0 and 1.0
- "needs_tools": true if answering requires web search, file access, running commands, or other external actions; false otherwise
- "rewritten": the message rewritten to be clear and self-contained (or the original if already clear)
- "facts": a list of objects {"category": ..., "fact": ...} for any explicit statements the user makes about themselves (categories: %s); empty list if none

User message: %s`

// generator is the single model call the pre-pass needs.
type generator interface {
	Generate(ctx context.Context, spec models.Spec, prompt string) (string, error)
}

// Pre classifies, rewrites and fact-extracts incoming messages.
type Pre struct {
	gen    generator
	logger *slog.Logger

	mu        sync.Mutex
	lastInput string
	lastOut   Intent
	hasLast   bool
}

// NewPre creates the pre-pipeline over the given model gateway.
func NewPre(gen generator, logger *slog.Logger) *Pre {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pre{gen: gen, logger: logger}
}

var (
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
	fenceRe      = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
)

// Process runs the fused pre-pass on one message. It never returns an error:
// any model or parse failure falls back to the keyword heuristic.
func (p *Pre) Process(ctx context.Context, text string) Intent {
	trimmed := strings.TrimSpace(text)

	p.mu.Lock()
	if p.hasLast && p.lastInput == trimmed {
		out := p.lastOut
		p.mu.Unlock()
		return out
	}
	p.mu.Unlock()

	out := p.process(ctx, trimmed)

	p.mu.Lock()
	p.lastInput = trimmed
	p.lastOut = out
	p.hasLast = true
	p.mu.Unlock()
	return out
}

func (p *Pre) process(ctx context.Context, trimmed string) Intent {
	// Very short messages are not worth a model round-trip.
	if len(strings.Fields(trimmed)) < 4 {
		return p.heuristic(trimmed)
	}

	input := trimmed
	if len(input) > maxInputChars {
		input = input[:maxInputChars]
	}

	prompt := fmt.Sprintf(prePrompt,
		strings.Join(Categories, ", "),
		strings.Join(FactCategories, ", "),
		input)

	spec := models.Spec{
		Model:       preModel,
		NumCtx:      preNumCtx,
		NumPredict:  preNumPredict,
		Temperature: preTemp,
	}
	raw, err := p.gen.Generate(ctx, spec, prompt)
	if err != nil {
		p.logger.Warn("pre-pipeline model call failed, using heuristic", "error", err)
		return p.heuristic(trimmed)
	}

	intent, err := parseIntent(raw)
	if err != nil {
		p.logger.Warn("pre-pipeline parse failed, using heuristic", "error", err)
		return p.heuristic(trimmed)
	}
	return p.validate(intent, trimmed)
}

func (p *Pre) heuristic(text string) Intent {
	return Intent{
		Category:   heuristicCategory(text),
		Confidence: 0.5,
		NeedsTools: needsTools(text),
		Rewritten:  text,
		Facts:      []Fact{},
		Source:     "heuristic",
	}
}

// parseIntent extracts the JSON object from a possibly chatty model reply.
func parseIntent(raw string) (Intent, error) {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	obj := jsonObjectRe.FindString(s)
	if obj == "" {
		return Intent{}, fmt.Errorf("no JSON object in reply")
	}

	var intent Intent
	if err := json.Unmarshal([]byte(obj), &intent); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	return intent, nil
}

// validate coerces a parsed intent back into safe bounds. An unknown
// category falls back to the heuristic label; a missing or runaway rewrite
// reverts to the original message.
func (p *Pre) validate(intent Intent, original string) Intent {
	intent.Source = "llm"

	if !ValidCategory(intent.Category) {
		p.logger.Debug("pre-pipeline returned unknown category",
			"category", intent.Category)
		intent.Category = heuristicCategory(original)
	}
	if intent.Confidence < 0 || intent.Confidence > 1 {
		intent.Confidence = 0.5
	}

	rewritten := strings.TrimSpace(intent.Rewritten)
	if rewritten == "" || len(rewritten) > 5*len(original) {
		rewritten = original
	}
	intent.Rewritten = rewritten

	if intent.Facts == nil {
		intent.Facts = []Fact{}
	}
	facts := intent.Facts[:0]
	for _, f := range intent.Facts {
		if strings.TrimSpace(f.Fact) != "" {
			facts = append(facts, f)
		}
	}
	intent.Facts = facts
	return intent
}
