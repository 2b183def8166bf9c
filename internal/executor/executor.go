// Package executor drives the agentic tool-use loop: reason, call a skill,
// observe, repeat, until the model emits a final answer or a budget runs
// out. It owns fallback across the model chain, escalation to a bigger
// model, and post-hoc output validation.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/schema"

	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/router"
)

const toolUsePrompt = `Task: %s

Remember:
- Use SKILL: {"name": "...", "args": {...}} to call tools
- Chain multiple skill calls as needed
- Output FINAL: <answer> when complete
- Never give up — try different approaches if one fails
`

const (
	maxToolCallsUser       = 20
	maxToolCallsBackground = 12

	tempUser       = 0.7
	tempBackground = 0.6

	// After three nudges the model is told to commit; one more silent round
	// and we give up and salvage what we have.
	maxNudges = 3

	resultCapUser       = 6000
	resultKeepUser      = 5700
	resultCapBackground = 4000
	resultKeepBackground = 3800

	validateAttemptsUser       = 8
	validateAttemptsBackground = 1
)

// ChatClient is the slice of the model gateway the loop needs.
type ChatClient interface {
	Chat(ctx context.Context, spec models.Spec, msgs []*schema.Message) (string, error)
	ChatStream(ctx context.Context, spec models.Spec, msgs []*schema.Message, onToken func(string)) (string, error)
}

// SkillRunner invokes named skills.
type SkillRunner interface {
	Run(ctx context.Context, name string, args map[string]any) (string, error)
}

// Request is one execution of the loop.
type Request struct {
	Prompt   string
	Category string
	System   string
	Decision router.Decision

	// History carries prior conversation turns (user sessions only).
	History []*schema.Message

	// Background runs use the shorter tool budget, parse NEW_TASKS, and
	// check the pause flag between tool calls.
	Background bool
	Paused     func() bool

	OnToken     func(string)
	OnThinking  func(string)
	OnSkillCall func(name string, args map[string]any)
}

// Result is the outcome of one execution.
type Result struct {
	Output        string
	Model         string
	ToolCalls     int
	Success       bool
	FailureReason string
	Escalated     bool
	Paused        bool
	Valid         bool
	NewTasks      []TaskSuggestion
	Thinking      []string
}

// Executor runs requests against the gateway and skill registry.
type Executor struct {
	chat   ChatClient
	skills SkillRunner
	logger *slog.Logger
}

// New creates an executor.
func New(chat ChatClient, skills SkillRunner, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{chat: chat, skills: skills, logger: logger}
}

// Execute runs the agentic loop once, without validation retry.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	maxTools := maxToolCallsUser
	temp := float32(tempUser)
	if req.Background {
		maxTools = maxToolCallsBackground
		temp = tempBackground
	}

	model := req.Decision.Model
	escTarget := req.Decision.EscalationTarget
	chain := append([]string(nil), req.Decision.Fallbacks...)
	numCtx := req.Decision.ContextWindow
	budget := req.Decision.TokenBudget

	system := req.System
	if escTarget != "" {
		system += router.EscalationAddendum
	}

	initial := func(sys string) []*schema.Message {
		msgs := make([]*schema.Message, 0, len(req.History)+2)
		if sys != "" {
			msgs = append(msgs, schema.SystemMessage(sys))
		}
		msgs = append(msgs, req.History...)
		first := req.Prompt
		if !req.Background {
			first = fmt.Sprintf(toolUsePrompt, req.Prompt)
		}
		return append(msgs, schema.UserMessage(first))
	}
	msgs := initial(system)

	var (
		toolCalls int
		nudges    int
		lastReply string
		thinking  []string
		newTasks  []TaskSuggestion
		escalated bool
		streamed  bool
	)

	result := func(r Result) Result {
		r.Model = model
		r.ToolCalls = toolCalls
		r.Escalated = escalated
		r.Thinking = thinking
		return r
	}

	for toolCalls < maxTools {
		if req.Background && req.Paused != nil && req.Paused() {
			partial := lastReply
			if len(partial) > 200 {
				partial = partial[:200]
			}
			return result(Result{
				Output: "Task paused (user active). Partial work: " + partial,
				Paused: true,
			})
		}

		msgs = maybeCompress(msgs)
		spec := models.Spec{
			Model:       model,
			NumCtx:      numCtx,
			NumPredict:  budget,
			Temperature: temp,
		}

		var raw string
		var err error
		if req.OnToken != nil && !streamed {
			streamed = true
			raw, err = e.chat.ChatStream(ctx, spec, msgs, req.OnToken)
		} else {
			raw, err = e.chat.Chat(ctx, spec, msgs)
		}
		if err != nil {
			if ctx.Err() != nil {
				return result(Result{Output: extractBestOutput(lastReply), FailureReason: ctx.Err().Error()})
			}
			next, ok := nextModel(err, &chain)
			if !ok {
				return result(Result{Output: extractBestOutput(lastReply), FailureReason: err.Error()})
			}
			e.logger.Warn("model failed, trying fallback",
				"model", model, "fallback", next, "error", err)
			model = next
			continue
		}

		lastReply = raw
		reply, thinks := stripThink(raw)
		for _, t := range thinks {
			thinking = append(thinking, t)
			if req.OnThinking != nil {
				req.OnThinking(t)
			}
		}
		msgs = append(msgs, schema.AssistantMessage(raw, nil))

		if escTarget != "" {
			if reason, ok := router.CheckEscalation(reply); ok {
				e.logger.Info("model requested escalation",
					"from", model, "to", escTarget, "reason", reason)
				model = escTarget
				escTarget = ""
				escalated = true
				if numCtx < 8192 {
					numCtx = 8192
				}
				if budget < 2048 {
					budget = 2048
				}
				// The bigger model starts clean from the original prompt.
				msgs = initial(req.System)
				continue
			}
		}

		if req.Background {
			var suggested []TaskSuggestion
			suggested, reply = parseNewTasks(reply)
			if len(suggested) > 0 {
				newTasks = suggested
			}
		}

		if final, ok := parseFinal(reply); ok {
			return result(Result{Output: final, Success: true, NewTasks: newTasks})
		}

		if blob, ok := parseSkill(reply); ok {
			obs := e.runSkill(ctx, blob, req)
			msgs = append(msgs, schema.UserMessage(
				"Skill result:\n"+obs+"\n\nContinue. Use more skills or output FINAL: when done."))
			toolCalls++
			continue
		}

		// Plain reply with no sentinel: a user turn accepts it as the answer.
		if !req.Background && reply != "" {
			return result(Result{Output: reply, Success: true, NewTasks: newTasks})
		}

		if nudges >= maxNudges {
			if nudges > maxNudges {
				break
			}
			nudges++
			msgs = append(msgs, schema.UserMessage(
				"You have not used any skills or given a final answer. "+
					"Either call a SKILL or output your best answer as:\nFINAL: <answer>"))
			continue
		}
		nudges++
		msgs = append(msgs, schema.UserMessage(
			"Continue. Use a SKILL if you need information, or output FINAL: when done."))
	}

	return result(Result{
		Output:        extractBestOutput(lastReply),
		FailureReason: fmt.Sprintf("tool-call budget (%d) exhausted", maxTools),
		NewTasks:      newTasks,
	})
}

// ExecuteValidated runs the loop and re-runs it on the fallback chain with a
// rewritten prompt when the output fails the category's quality check.
func (e *Executor) ExecuteValidated(ctx context.Context, req Request) Result {
	maxAttempts := validateAttemptsUser
	if req.Background {
		maxAttempts = validateAttemptsBackground
	}

	chain := append([]string{req.Decision.Model}, req.Decision.Fallbacks...)
	if maxAttempts > len(chain) {
		maxAttempts = len(chain)
	}

	original := req.Prompt
	var last Result
	for attempt := 0; attempt < maxAttempts; attempt++ {
		attemptReq := req
		attemptReq.Decision.Model = chain[attempt]
		attemptReq.Decision.Fallbacks = chain[attempt+1:]
		if attempt > 0 {
			// Only the first attempt streams; retries resolve quietly.
			attemptReq.OnToken = nil
		}

		last = e.Execute(ctx, attemptReq)
		if !last.Success {
			if ctx.Err() != nil {
				return last
			}
			continue
		}

		ok, reason := Validate(req.Category, last.Output)
		if ok {
			last.Valid = true
			return last
		}
		e.logger.Warn("output failed validation",
			"category", req.Category, "model", last.Model,
			"reason", reason, "attempt", attempt+1)

		rejected := last.Output
		if len(rejected) > 500 {
			rejected = rejected[:500]
		}
		req.Prompt = fmt.Sprintf(
			"A previous attempt at this task was rejected: %s.\nRejected output:\n%s\n\nOriginal task: %s\nProduce a complete, correct answer.",
			reason, rejected, original)
	}
	return last
}

// nextModel pops the next fallback when the error is recoverable by
// switching models.
func nextModel(err error, chain *[]string) (string, bool) {
	var unavailable *models.ErrModelUnavailable
	if !models.IsOOM(err) && !errors.As(err, &unavailable) {
		return "", false
	}
	if len(*chain) == 0 {
		return "", false
	}
	next := (*chain)[0]
	*chain = (*chain)[1:]
	return next, true
}

func (e *Executor) runSkill(ctx context.Context, blob string, req Request) string {
	call, err := decodeSkillCall(blob)
	if err != nil {
		return fmt.Sprintf("ERROR: Malformed SKILL JSON: %v. Check your syntax and try again.", err)
	}
	if req.OnSkillCall != nil {
		req.OnSkillCall(call.Name, call.Args)
	}

	out, err := e.skills.Run(ctx, call.Name, call.Args)
	if err != nil {
		return fmt.Sprintf("ERROR in skill execution: %v. Try a different approach.", err)
	}

	limit, keep := resultCapUser, resultKeepUser
	if req.Background {
		limit, keep = resultCapBackground, resultKeepBackground
	}
	if len(out) > limit {
		out = fmt.Sprintf("%s\n... [truncated, %d total chars]", out[:keep], len(out))
	}
	return out
}
