// Package heartbeat is the autonomy loop: on a fixed interval it claims the
// next due task and runs it through the executor, or reflects on recent
// activity to generate new work when the queue is drained. User activity
// pauses the loop so foreground chats always win the model.
package heartbeat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/junoproject/juno/internal/config"
	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/executor"
	"github.com/junoproject/juno/internal/memory"
	"github.com/junoproject/juno/internal/models"
	"github.com/junoproject/juno/internal/router"
	"github.com/junoproject/juno/internal/store"
)

const (
	defaultInterval       = 5 * time.Minute
	defaultStartupDelay   = 15 * time.Second
	defaultTaskTimeout    = 10 * time.Minute
	defaultResumeCooldown = 30 * time.Second

	recentTaskCount = 5
	summaryClip     = 200
)

const taskPrompt = `You are an autonomous background agent working on a task.
You are running silently — the user is NOT watching this interaction.

Your job:
1. Read the task carefully
2. Use your skills to complete it thoroughly
3. Generate follow-up tasks if your work reveals more to do
4. Be self-improving: if you find gaps in your capabilities, write new skills

TASK:
Title: %s
Type: %s
Description: %s
Context: %s

WHAT YOU KNOW ABOUT THE USER:
%s

RECENT COMPLETED TASKS (for continuity):
%s

AVAILABLE SKILLS:
%s

SKILL FORMAT: SKILL: {"name": "...", "args": {...}}
FINAL FORMAT: FINAL: <summary of what you did and what you found>

After FINAL, if you want to add follow-up tasks, output:
NEW_TASKS: [
  {"title": "...", "description": "...", "task_type": "...", "priority_name": "normal|low|idle"},
  ...
]

Work autonomously. Use skills. Search the web. Write code. Do real work.`

const reflectPrompt = `Review the agent's recent activity and suggest what it should focus on next.

Recent completed tasks:
%s

User profile:
%s

Current pending task count: %d

Generate 3-5 new tasks that would make the assistant more useful to this user.
Consider: gaps in skills, things the user will likely ask about, proactive research,
self-improvement opportunities, and maintenance tasks.

Return JSON array:
[{"title": "...", "description": "...", "task_type": "research|self_improve|prepare|reflect|maintain|custom", "priority_name": "normal|low|idle"}]
Return ONLY valid JSON.`

// runner is the slice of the executor the loop needs.
type runner interface {
	ExecuteValidated(ctx context.Context, req executor.Request) executor.Result
}

// generator runs the reflection model.
type generator interface {
	Generate(ctx context.Context, spec models.Spec, prompt string) (string, error)
}

// cataloger lists available skills for the task prompt.
type cataloger interface {
	Catalog() string
}

// Config wires the heartbeat to its collaborators.
type Config struct {
	Store     *store.Store
	Executor  runner
	Router    *router.Router
	Memory    *memory.Memory
	Skills    cataloger
	Generator generator
	Bus       *events.Bus
	Logger    *slog.Logger
	Settings  config.HeartbeatConfig
}

// Heartbeat drives background task execution.
type Heartbeat struct {
	store  *store.Store
	exec   runner
	router *router.Router
	mem    *memory.Memory
	skills cataloger
	gen    generator
	bus    *events.Bus
	logger *slog.Logger
	now    func() time.Time

	interval       time.Duration
	startupDelay   time.Duration
	taskTimeout    time.Duration
	resumeCooldown time.Duration

	mu          sync.Mutex
	pausedHard  bool      // user is actively chatting
	pausedUntil time.Time // cooldown after the user goes quiet
}

// New builds a Heartbeat. Zero durations in Settings take the defaults.
func New(cfg Config) *Heartbeat {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Heartbeat{
		store:          cfg.Store,
		exec:           cfg.Executor,
		router:         cfg.Router,
		mem:            cfg.Memory,
		skills:         cfg.Skills,
		gen:            cfg.Generator,
		bus:            cfg.Bus,
		logger:         cfg.Logger.With("component", "heartbeat"),
		now:            time.Now,
		interval:       cfg.Settings.Interval.Or(defaultInterval),
		startupDelay:   cfg.Settings.StartupDelay.Or(defaultStartupDelay),
		taskTimeout:    cfg.Settings.TaskTimeout.Or(defaultTaskTimeout),
		resumeCooldown: cfg.Settings.ResumeCooldown.Or(defaultResumeCooldown),
	}
}

// Run executes the loop until ctx is cancelled. The first tick waits out the
// startup delay so boot-time model loading is not contended.
func (h *Heartbeat) Run(ctx context.Context) {
	h.logger.Info("heartbeat starting",
		"interval", h.interval, "startup_delay", h.startupDelay)

	select {
	case <-time.After(h.startupDelay):
	case <-ctx.Done():
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		h.tick(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			h.logger.Info("heartbeat stopped")
			return
		}
	}
}

// PauseForUser halts background work while the user is chatting. Any running
// task is returned to pending so the model is free immediately.
func (h *Heartbeat) PauseForUser(ctx context.Context) {
	h.mu.Lock()
	h.pausedHard = true
	h.mu.Unlock()

	if n, err := h.store.PauseRunning(ctx); err != nil {
		h.logger.Warn("pause running tasks failed", "error", err)
	} else if n > 0 {
		h.logger.Info("paused running tasks for user", "count", n)
	}
	h.publish(events.HeartbeatPayload{State: "paused", Message: "Heartbeat: paused for user"})
}

// ResumeAfterUser lifts the hard pause but keeps a short cooldown, so a user
// who is still typing does not race the next tick.
func (h *Heartbeat) ResumeAfterUser() {
	h.mu.Lock()
	h.pausedHard = false
	h.pausedUntil = h.now().Add(h.resumeCooldown)
	h.mu.Unlock()
	h.publish(events.HeartbeatPayload{State: "resuming", Message: "Heartbeat: resuming shortly"})
}

// IsPaused reports whether background work must stay off the model.
func (h *Heartbeat) IsPaused() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pausedHard || h.now().Before(h.pausedUntil)
}

func (h *Heartbeat) tick(ctx context.Context) {
	if h.IsPaused() {
		h.publish(events.HeartbeatPayload{State: "idle", Message: "Heartbeat: paused for user"})
		return
	}

	task, err := h.store.NextPending(ctx)
	if err != nil {
		h.logger.Error("next pending failed", "error", err)
		return
	}
	if task == nil {
		pending, err := h.store.PendingCount(ctx)
		if err != nil {
			h.logger.Error("pending count failed", "error", err)
			return
		}
		if pending == 0 {
			h.publish(events.HeartbeatPayload{State: "reflecting",
				Message: "Queue empty — reflecting on what to do next"})
			h.reflect(ctx)
			return
		}
		h.publish(events.HeartbeatPayload{State: "idle",
			Message: fmt.Sprintf("%d tasks scheduled for later", pending)})
		return
	}

	h.executeTask(ctx, task)
}

func (h *Heartbeat) executeTask(ctx context.Context, task *store.Task) {
	h.publish(events.HeartbeatPayload{
		State:     "working",
		Message:   "Working on: " + task.Title,
		TaskTitle: task.Title,
		TaskType:  string(task.Type),
	})

	if err := h.store.Start(ctx, task.ID); err != nil {
		if !errors.Is(err, store.ErrNotClaimable) {
			h.logger.Error("task claim failed", "task", task.ID, "error", err)
		}
		return
	}
	h.logger.Info("task started", "task", task.ID, "title", task.Title, "type", task.Type)

	runCtx, cancel := context.WithTimeout(ctx, h.taskTimeout)
	defer cancel()

	res := h.exec.ExecuteValidated(runCtx, executor.Request{
		Prompt:     h.buildTaskPrompt(ctx, task),
		Category:   string(task.Type),
		Decision:   h.router.Background(ctx),
		Background: true,
		Paused:     h.IsPaused,
		OnSkillCall: func(name string, _ map[string]any) {
			h.publish(events.HeartbeatPayload{
				State:     "skill_call",
				Message:   "Using " + name,
				TaskTitle: task.Title,
				TaskType:  string(task.Type),
			})
		},
	})

	switch {
	case runCtx.Err() != nil && ctx.Err() == nil:
		if err := h.store.Fail(ctx, task.ID, "Timed out"); err != nil {
			h.logger.Error("task fail update failed", "task", task.ID, "error", err)
		}
		h.publish(events.HeartbeatPayload{State: "task_failed",
			Message: "Timed out: " + task.Title, TaskTitle: task.Title})

	case res.Paused:
		// PauseForUser already returned the row to pending.
		h.logger.Info("task yielded to user", "task", task.ID)

	case res.Success:
		summary := res.Output
		if err := h.store.Complete(ctx, task.ID, summary); err != nil {
			h.logger.Error("task complete update failed", "task", task.ID, "error", err)
		}
		if len(summary) > summaryClip {
			summary = summary[:summaryClip]
		}
		h.publish(events.HeartbeatPayload{State: "task_done",
			Message: summary, TaskTitle: task.Title, TaskType: string(task.Type)})
		h.addFollowUps(ctx, task, res.NewTasks)
		h.logToMemory(ctx, task, res)

	default:
		reason := res.FailureReason
		if reason == "" {
			reason = "Execution produced no usable output"
		}
		if err := h.store.Fail(ctx, task.ID, reason); err != nil {
			h.logger.Error("task fail update failed", "task", task.ID, "error", err)
		}
		h.publish(events.HeartbeatPayload{State: "task_failed",
			Message: reason, TaskTitle: task.Title})
	}
}

func (h *Heartbeat) buildTaskPrompt(ctx context.Context, task *store.Task) string {
	taskContext := "{}"
	if len(task.Context) > 0 {
		if b, err := json.Marshal(task.Context); err == nil {
			taskContext = string(b)
		}
	}

	return fmt.Sprintf(taskPrompt,
		task.Title, task.Type, task.Description, taskContext,
		h.mem.ContextForPrompt(ctx), h.recentTaskLines(ctx), h.skills.Catalog())
}

func (h *Heartbeat) recentTaskLines(ctx context.Context) string {
	recent, err := h.store.GetRecentCompleted(ctx, recentTaskCount)
	if err != nil || len(recent) == 0 {
		return "None yet."
	}
	lines := make([]string, 0, len(recent))
	for _, t := range recent {
		summary := t.ResultSummary
		if len(summary) > 80 {
			summary = summary[:80]
		}
		lines = append(lines, t.Title+": "+summary)
	}
	return strings.Join(lines, "\n")
}

func (h *Heartbeat) addFollowUps(ctx context.Context, parent *store.Task, suggestions []executor.TaskSuggestion) {
	for _, s := range suggestions {
		parentID := parent.ID
		id, err := h.store.Add(ctx, store.AddTask{
			Title:       s.Title,
			Description: s.Description,
			Type:        coerceType(s.TaskType),
			Priority:    s.PriorityName,
			ParentID:    &parentID,
		})
		if err != nil {
			h.logger.Warn("follow-up task insert failed", "title", s.Title, "error", err)
			continue
		}
		h.logger.Info("follow-up task added", "task", id, "title", s.Title)
		h.publish(events.HeartbeatPayload{State: "task_added",
			Message: "New task: " + s.Title, TaskTitle: s.Title, TaskType: s.TaskType})
	}
}

func (h *Heartbeat) logToMemory(ctx context.Context, task *store.Task, res executor.Result) {
	_, err := h.mem.LogInteraction(ctx, memory.Interaction{
		UserInput: "[BACKGROUND] " + task.Title,
		Intent:    map[string]any{"category": string(task.Type), "background": true},
		Model:     res.Model,
		Output:    res.Output,
		Success:   res.Success,
		ToolCalls: res.ToolCalls,
	})
	if err != nil {
		h.logger.Warn("background interaction log failed", "task", task.ID, "error", err)
	}
}

var jsonArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// reflect asks a small model what the agent should work on next and queues
// the suggestions at idle priority.
func (h *Heartbeat) reflect(ctx context.Context) {
	if h.gen == nil {
		return
	}

	completed, err := h.store.GetRecentCompleted(ctx, recentTaskCount)
	if err != nil {
		h.logger.Error("reflection query failed", "error", err)
		return
	}
	lines := make([]string, 0, len(completed))
	for _, t := range completed {
		summary := t.ResultSummary
		if len(summary) > 80 {
			summary = summary[:80]
		}
		lines = append(lines, "- "+t.Title+": "+summary)
	}
	completedStr := "None yet."
	if len(lines) > 0 {
		completedStr = strings.Join(lines, "\n")
	}
	pending, err := h.store.PendingCount(ctx)
	if err != nil {
		pending = 0
	}

	spec := models.Spec{Model: h.router.Background(ctx).Model, NumCtx: 3000, NumPredict: 800, Temperature: 0.7}
	raw, err := h.gen.Generate(ctx, spec,
		fmt.Sprintf(reflectPrompt, completedStr, h.mem.ContextForPrompt(ctx), pending))
	if err != nil {
		h.logger.Warn("reflection generation failed", "error", err)
		return
	}

	blob := jsonArrayRe.FindString(raw)
	if blob == "" {
		return
	}
	var suggestions []executor.TaskSuggestion
	if err := json.Unmarshal([]byte(blob), &suggestions); err != nil {
		return
	}

	added := 0
	for _, s := range suggestions {
		if strings.TrimSpace(s.Title) == "" {
			continue
		}
		priority := s.PriorityName
		if priority == "" {
			priority = "idle"
		}
		if _, err := h.store.Add(ctx, store.AddTask{
			Title:       s.Title,
			Description: s.Description,
			Type:        coerceType(s.TaskType),
			Priority:    priority,
		}); err != nil {
			h.logger.Warn("reflection task insert failed", "title", s.Title, "error", err)
			continue
		}
		added++
	}
	if added > 0 {
		h.publish(events.HeartbeatPayload{State: "tasks_generated",
			Message: fmt.Sprintf("Reflection complete — added %d new tasks", added)})
	}
}

// coerceType maps model-invented task types onto custom instead of failing
// the insert.
func coerceType(raw string) store.TaskType {
	t := store.TaskType(raw)
	if raw == "" || !store.ValidTaskType(t) {
		return store.TypeCustom
	}
	return t
}

func (h *Heartbeat) publish(p events.HeartbeatPayload) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(events.NewTypedEvent(events.SourceHeartbeat, p))
}
