// Package scheduler enqueues recurring maintenance tasks from cron
// expressions in the configuration. It only writes to the task queue; the
// heartbeat picks the tasks up like any other work.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cron "github.com/netresearch/go-cron"

	"github.com/junoproject/juno/internal/config"
	"github.com/junoproject/juno/internal/events"
	"github.com/junoproject/juno/internal/store"
)

// CronExpr wraps a parsed 5-field cron schedule.
type CronExpr struct {
	raw      string
	schedule cron.Schedule
}

// ParseCron parses a standard minute-resolution cron expression.
func ParseCron(expr string) (*CronExpr, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &CronExpr{raw: expr, schedule: schedule}, nil
}

// Next returns the next activation after t.
func (c *CronExpr) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// Matches reports whether t falls in the same minute as an activation.
func (c *CronExpr) Matches(t time.Time) bool {
	truncated := t.Truncate(time.Minute)
	return c.schedule.Next(truncated.Add(-time.Minute)).Equal(truncated)
}

func (c *CronExpr) String() string { return c.raw }

type entry struct {
	expr     *CronExpr
	title    string
	taskType store.TaskType
	priority string
}

// Scheduler checks configured entries once a minute and enqueues the ones
// that are due.
type Scheduler struct {
	store   *store.Store
	bus     *events.Bus
	logger  *slog.Logger
	entries []entry
	now     func() time.Time
}

// New parses the configured entries. A malformed expression is a startup
// error, not something to discover at 03:00.
func New(cfg config.CronConfig, s *store.Store, bus *events.Bus, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	sched := &Scheduler{
		store:  s,
		bus:    bus,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
	}
	for _, e := range cfg.Entries {
		expr, err := ParseCron(e.Schedule)
		if err != nil {
			return nil, err
		}
		if e.Title == "" {
			return nil, fmt.Errorf("cron entry %q has no title", e.Schedule)
		}
		taskType := store.TaskType(e.TaskType)
		if e.TaskType == "" {
			taskType = store.TypeMaintain
		}
		if !store.ValidTaskType(taskType) {
			return nil, fmt.Errorf("cron entry %q has unknown task type %q", e.Title, e.TaskType)
		}
		sched.entries = append(sched.entries, entry{
			expr:     expr,
			title:    e.Title,
			taskType: taskType,
			priority: e.Priority,
		})
	}
	return sched, nil
}

// Run checks entries every minute until ctx is cancelled. With no entries it
// returns immediately.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.entries) == 0 {
		return
	}
	s.logger.Info("scheduler starting", "entries", len(s.entries))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, e := range s.entries {
		if !e.expr.Matches(now) {
			continue
		}
		s.enqueue(ctx, e)
	}
}

// enqueue adds the entry's task unless an identical one is already pending;
// a slow heartbeat must not pile up duplicate maintenance work.
func (s *Scheduler) enqueue(ctx context.Context, e entry) {
	pending, err := s.store.GetAll(ctx, store.StatusPending, 100)
	if err != nil {
		s.logger.Error("pending lookup failed", "error", err)
		return
	}
	for _, task := range pending {
		if task.Title == e.title {
			s.logger.Debug("cron task already pending", "title", e.title)
			return
		}
	}

	id, err := s.store.Add(ctx, store.AddTask{
		Title:    e.title,
		Type:     e.taskType,
		Priority: e.priority,
		Tags:     []string{"cron"},
	})
	if err != nil {
		s.logger.Error("cron task insert failed", "title", e.title, "error", err)
		return
	}
	s.logger.Info("cron task enqueued", "task", id, "title", e.title, "schedule", e.expr.String())
	if s.bus != nil {
		s.bus.Publish(events.NewTypedEvent(events.SourceCron, events.HeartbeatPayload{
			State:     "task_added",
			Message:   "Scheduled task: " + e.title,
			TaskTitle: e.title,
			TaskType:  string(e.taskType),
		}))
	}
}
