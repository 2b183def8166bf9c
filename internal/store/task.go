package store

import "time"

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// TaskType categorises what kind of background work a task represents.
type TaskType string

const (
	TypeResearch    TaskType = "research"     // look something up about the user's interests
	TypeSelfImprove TaskType = "self_improve" // write or improve a skill
	TypePrepare     TaskType = "prepare"      // pre-compute something the user will likely ask
	TypeRemind      TaskType = "remind"       // surface a reminder to the user
	TypeReflect     TaskType = "reflect"      // review recent interactions and update the user model
	TypeMaintain    TaskType = "maintain"     // housekeeping (clean logs, check disk, etc.)
	TypeCustom      TaskType = "custom"       // user-defined or agent-defined arbitrary task
)

// ValidTaskType reports whether t is one of the known task types.
func ValidTaskType(t TaskType) bool {
	switch t {
	case TypeResearch, TypeSelfImprove, TypePrepare, TypeRemind, TypeReflect, TypeMaintain, TypeCustom:
		return true
	}
	return false
}

// Priorities maps priority names to their ordering value. Smaller runs first.
var Priorities = map[string]int{
	"critical": 0,
	"high":     1,
	"normal":   2,
	"low":      3,
	"idle":     4, // only runs when nothing else to do
}

const defaultPriority = 2

// PriorityValue resolves a priority name, defaulting to normal.
func PriorityValue(name string) int {
	if v, ok := Priorities[name]; ok {
		return v
	}
	return defaultPriority
}

// Task log event names. Every state change writes exactly one entry.
const (
	LogCreated        = "created"
	LogStarted        = "started"
	LogCompleted      = "completed"
	LogFailed         = "failed"
	LogRetryScheduled = "retry_scheduled"
	LogCancelled      = "cancelled"
	LogRescheduled    = "rescheduled"
)

// Task is the queue's central entity.
type Task struct {
	ID            int64          `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Type          TaskType       `json:"task_type"`
	Priority      int            `json:"priority"`
	PriorityName  string         `json:"priority_name"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	ResultSummary string         `json:"result_summary,omitempty"`
	RetryCount    int            `json:"retry_count"`
	MaxRetries    int            `json:"max_retries"`
	ParentID      *int64         `json:"parent_id,omitempty"`
	Tags          []string       `json:"tags"`
	Context       map[string]any `json:"context"`
}

// TaskLogEntry is one append-only audit row.
type TaskLogEntry struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	Detail    string    `json:"detail"`
}

// AddTask holds the parameters for Store.Add.
type AddTask struct {
	Title       string
	Description string
	Type        TaskType
	Priority    string // priority name; unknown names map to normal
	ScheduledAt *time.Time
	Tags        []string
	Context     map[string]any
	ParentID    *int64
	MaxRetries  int // 0 means the default of 2
}
