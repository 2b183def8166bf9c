package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotClaimable is returned by Start when the row is no longer pending,
// meaning another claimer raced us or the task was cancelled.
var ErrNotClaimable = errors.New("task is not pending")

const timeLayout = time.RFC3339Nano

const summaryLimit = 1000

// taskColumns is the scan order used by scanTask.
const taskColumns = `id, title, description, task_type, priority, priority_name,
	status, created_at, scheduled_at, started_at, completed_at,
	result_summary, retry_count, max_retries, parent_id, tags, context`

// Add inserts a new pending task and returns its id.
func (s *Store) Add(ctx context.Context, p AddTask) (int64, error) {
	if p.Title == "" {
		return 0, errors.New("task title is required")
	}
	if p.Type == "" {
		p.Type = TypeCustom
	}
	if !ValidTaskType(p.Type) {
		return 0, fmt.Errorf("unknown task type %q", p.Type)
	}
	if p.Priority == "" {
		p.Priority = "normal"
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 2
	}

	now := s.now()
	scheduledAt := now
	if p.ScheduledAt != nil {
		scheduledAt = *p.ScheduledAt
	}
	if scheduledAt.Before(now) {
		scheduledAt = now
	}

	tags, err := json.Marshal(orEmptySlice(p.Tags))
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}
	taskCtx, err := json.Marshal(orEmptyMap(p.Context))
	if err != nil {
		return 0, fmt.Errorf("marshal context: %w", err)
	}

	var id int64
	err = Transact(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tasks
			   (title, description, task_type, priority, priority_name,
			    status, created_at, scheduled_at, tags, context, parent_id, max_retries)
			 VALUES (?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?, ?, ?)`,
			p.Title, p.Description, string(p.Type), PriorityValue(p.Priority), p.Priority,
			now.Format(timeLayout), scheduledAt.Format(timeLayout),
			string(tags), string(taskCtx), p.ParentID, p.MaxRetries,
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}
		return s.logTx(ctx, tx, id, LogCreated, fmt.Sprintf("priority=%s, type=%s", p.Priority, p.Type))
	})
	if err != nil {
		return 0, fmt.Errorf("add task: %w", err)
	}
	return id, nil
}

// NextPending returns the eligible task with the smallest priority value,
// breaking ties by oldest created_at. Pure read; does not claim.
func (s *Store) NextPending(ctx context.Context) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE status='pending' AND scheduled_at <= ?
		 ORDER BY priority ASC, created_at ASC
		 LIMIT 1`,
		s.now().Format(timeLayout),
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// Start claims a pending task. The status guard in the UPDATE prevents a
// double start: zero affected rows means the claim was raced.
func (s *Store) Start(ctx context.Context, id int64) error {
	return Transact(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status='running', started_at=? WHERE id=? AND status='pending'`,
			s.now().Format(timeLayout), id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotClaimable
		}
		return s.logTx(ctx, tx, id, LogStarted, "")
	})
}

// Complete marks a running task done. Completing a row that is no longer
// running is a no-op, which makes a concurrent pause_running safe.
func (s *Store) Complete(ctx context.Context, id int64, summary string) error {
	summary = truncate(summary, summaryLimit)
	return Transact(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status='done', completed_at=?, result_summary=?
			 WHERE id=? AND status='running'`,
			s.now().Format(timeLayout), summary, id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		return s.logTx(ctx, tx, id, LogCompleted, truncate(summary, 200))
	})
}

// Fail records a failed attempt. With retries left the task goes back to
// pending with exponential backoff (5·2^retry minutes); otherwise it is
// terminally failed.
func (s *Store) Fail(ctx context.Context, id int64, reason string) error {
	return Transact(s.db, func(tx *sql.Tx) error {
		var retryCount, maxRetries int
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT retry_count, max_retries, status FROM tasks WHERE id=?`, id,
		).Scan(&retryCount, &maxRetries, &status)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if status != string(StatusRunning) {
			return nil
		}

		if retryCount < maxRetries {
			delay := time.Duration(5*(1<<retryCount)) * time.Minute
			retryAt := s.now().Add(delay)
			_, err := tx.ExecContext(ctx,
				`UPDATE tasks SET status='pending', retry_count=retry_count+1, scheduled_at=?, started_at=NULL
				 WHERE id=? AND status='running'`,
				retryAt.Format(timeLayout), id,
			)
			if err != nil {
				return err
			}
			detail := fmt.Sprintf("attempt %d, retry in %dm", retryCount+1, int(delay.Minutes()))
			return s.logTx(ctx, tx, id, LogRetryScheduled, detail)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE tasks SET status='failed', completed_at=?, result_summary=?
			 WHERE id=? AND status='running'`,
			s.now().Format(timeLayout), truncate("FAILED: "+reason, summaryLimit), id,
		)
		if err != nil {
			return err
		}
		return s.logTx(ctx, tx, id, LogFailed, reason)
	})
}

// Cancel moves any non-terminal task to cancelled.
func (s *Store) Cancel(ctx context.Context, id int64, reason string) error {
	return Transact(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status='cancelled', completed_at=?
			 WHERE id=? AND status IN ('pending','running')`,
			s.now().Format(timeLayout), id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		return s.logTx(ctx, tx, id, LogCancelled, reason)
	})
}

// Reschedule forces a task back to pending with a new scheduled_at.
func (s *Store) Reschedule(ctx context.Context, id int64, when time.Time) error {
	return Transact(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status='pending', scheduled_at=?, started_at=NULL WHERE id=?`,
			when.Format(timeLayout), id,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil || n == 0 {
			return err
		}
		return s.logTx(ctx, tx, id, LogRescheduled, when.Format(timeLayout))
	})
}

// PauseRunning atomically returns every running task to pending with
// started_at cleared. Invoked when the user pre-empts the heartbeat.
func (s *Store) PauseRunning(ctx context.Context) (int64, error) {
	var n int64
	err := Transact(s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status='pending', started_at=NULL WHERE status='running'`)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// PendingCount returns the number of pending tasks, due or not.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tasks WHERE status='pending'`).Scan(&n)
	return n, err
}

// Get returns one task by id.
func (s *Store) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id=?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d not found", id)
	}
	return t, err
}

// GetAll lists tasks, optionally filtered by status.
func (s *Store) GetAll(ctx context.Context, status Status, limit int) ([]*Task, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if status != "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE status=?
			 ORDER BY priority ASC, created_at ASC LIMIT ?`, string(status), limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+taskColumns+` FROM tasks
			 ORDER BY priority ASC, created_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// GetRecentCompleted returns the n most recently finished tasks.
func (s *Store) GetRecentCompleted(ctx context.Context, n int) ([]*Task, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status='done'
		 ORDER BY completed_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	return collectTasks(rows)
}

// Summary returns per-status task counts.
func (s *Store) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := map[string]int{
		"pending": 0, "running": 0, "done": 0, "failed": 0, "cancelled": 0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// TaskLog returns the audit trail for one task, oldest first.
func (s *Store) TaskLog(ctx context.Context, taskID int64) ([]TaskLogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, timestamp, event, detail FROM task_log
		 WHERE task_id=? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []TaskLogEntry
	for rows.Next() {
		var e TaskLogEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.TaskID, &ts, &e.Event, &e.Detail); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(timeLayout, ts)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) logTx(ctx context.Context, tx *sql.Tx, taskID int64, event, detail string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO task_log (task_id, timestamp, event, detail) VALUES (?, ?, ?, ?)`,
		taskID, s.now().Format(timeLayout), event, detail)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var createdAt, scheduledAt string
	var startedAt, completedAt, summary sql.NullString
	var parentID sql.NullInt64
	var tags, taskCtx string

	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.Type, &t.Priority, &t.PriorityName,
		&t.Status, &createdAt, &scheduledAt, &startedAt, &completedAt,
		&summary, &t.RetryCount, &t.MaxRetries, &parentID, &tags, &taskCtx,
	)
	if err != nil {
		return nil, err
	}

	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	t.ScheduledAt, _ = time.Parse(timeLayout, scheduledAt)
	if startedAt.Valid {
		ts, _ := time.Parse(timeLayout, startedAt.String)
		t.StartedAt = &ts
	}
	if completedAt.Valid {
		ts, _ := time.Parse(timeLayout, completedAt.String)
		t.CompletedAt = &ts
	}
	if summary.Valid {
		t.ResultSummary = summary.String
	}
	if parentID.Valid {
		t.ParentID = &parentID.Int64
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		t.Tags = nil
	}
	if err := json.Unmarshal([]byte(taskCtx), &t.Context); err != nil {
		t.Context = nil
	}
	return &t, nil
}

func collectTasks(rows *sql.Rows) ([]*Task, error) {
	defer func() { _ = rows.Close() }()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orEmptySlice(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func orEmptyMap(v map[string]any) map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v
}
