package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junoproject/juno/internal/config"
	"github.com/junoproject/juno/internal/store"
)

func TestParseCronValid(t *testing.T) {
	expr, err := ParseCron("*/5 * * * *")
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", expr.String())
}

func TestParseCronInvalid(t *testing.T) {
	_, err := ParseCron("not a cron")
	assert.Error(t, err)
}

func TestCronExprNext(t *testing.T) {
	expr, err := ParseCron("0 12 * * *")
	require.NoError(t, err)

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC), expr.Next(base))
}

func TestCronExprMatches(t *testing.T) {
	expr, err := ParseCron("30 14 * * *")
	require.NoError(t, err)

	assert.True(t, expr.Matches(time.Date(2026, 6, 15, 14, 30, 45, 0, time.UTC)))
	assert.False(t, expr.Matches(time.Date(2026, 6, 15, 14, 31, 0, 0, time.UTC)))
}

func newTestScheduler(t *testing.T, cfg config.CronConfig) (*Scheduler, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	seeded, err := s.GetAll(context.Background(), "", 100)
	require.NoError(t, err)
	for _, task := range seeded {
		require.NoError(t, s.Cancel(context.Background(), task.ID, "test setup"))
	}

	sched, err := New(cfg, s, nil, nil)
	require.NoError(t, err)
	return sched, s
}

func TestNewRejectsBadEntries(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = New(config.CronConfig{Entries: []config.CronEntry{
		{Schedule: "bogus", Title: "x"},
	}}, s, nil, nil)
	assert.Error(t, err)

	_, err = New(config.CronConfig{Entries: []config.CronEntry{
		{Schedule: "0 3 * * *", Title: "x", TaskType: "launder"},
	}}, s, nil, nil)
	assert.Error(t, err)

	_, err = New(config.CronConfig{Entries: []config.CronEntry{
		{Schedule: "0 3 * * *"},
	}}, s, nil, nil)
	assert.Error(t, err, "entries need a title")
}

func TestTickEnqueuesDueEntry(t *testing.T) {
	ctx := context.Background()
	sched, s := newTestScheduler(t, config.CronConfig{Entries: []config.CronEntry{
		{Schedule: "0 3 * * *", Title: "Nightly cleanup", TaskType: "maintain", Priority: "idle"},
		{Schedule: "0 9 * * 1", Title: "Weekly review", TaskType: "reflect"},
	}})

	sched.now = func() time.Time { return time.Date(2026, 8, 25, 3, 0, 30, 0, time.Local) }
	sched.tick(ctx)

	pending, err := s.GetAll(ctx, store.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "only the due entry is enqueued")
	assert.Equal(t, "Nightly cleanup", pending[0].Title)
	assert.Equal(t, store.TypeMaintain, pending[0].Type)
	assert.Equal(t, "idle", pending[0].PriorityName)
	assert.Contains(t, pending[0].Tags, "cron")
}

func TestTickDoesNotDuplicatePendingTask(t *testing.T) {
	ctx := context.Background()
	sched, s := newTestScheduler(t, config.CronConfig{Entries: []config.CronEntry{
		{Schedule: "* * * * *", Title: "Nightly cleanup", TaskType: "maintain"},
	}})

	sched.now = func() time.Time { return time.Date(2026, 8, 25, 3, 0, 0, 0, time.Local) }
	sched.tick(ctx)
	sched.now = func() time.Time { return time.Date(2026, 8, 25, 3, 1, 0, 0, time.Local) }
	sched.tick(ctx)

	pending, err := s.GetAll(ctx, store.StatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1, "a still-pending cron task is not re-enqueued")
}

func TestDefaultTaskType(t *testing.T) {
	ctx := context.Background()
	sched, s := newTestScheduler(t, config.CronConfig{Entries: []config.CronEntry{
		{Schedule: "* * * * *", Title: "Tidy workspace"},
	}})

	sched.now = func() time.Time { return time.Date(2026, 8, 25, 10, 0, 0, 0, time.Local) }
	sched.tick(ctx)

	pending, err := s.GetAll(ctx, store.StatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, store.TypeMaintain, pending[0].Type)
}
