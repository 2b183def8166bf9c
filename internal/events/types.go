package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event.
type EventType string

const (
	// Heartbeat loop states. The wire type is "heartbeat_<state>".
	EventHeartbeatPaused         EventType = "heartbeat_paused"
	EventHeartbeatResuming       EventType = "heartbeat_resuming"
	EventHeartbeatIdle           EventType = "heartbeat_idle"
	EventHeartbeatWorking        EventType = "heartbeat_working"
	EventHeartbeatSkillCall      EventType = "heartbeat_skill_call"
	EventHeartbeatTaskDone       EventType = "heartbeat_task_done"
	EventHeartbeatTaskFailed     EventType = "heartbeat_task_failed"
	EventHeartbeatTaskAdded      EventType = "heartbeat_task_added"
	EventHeartbeatReflecting     EventType = "heartbeat_reflecting"
	EventHeartbeatTasksGenerated EventType = "heartbeat_tasks_generated"

	// Proactive suggestions pushed to the UI.
	EventProactive EventType = "proactive"

	// Skill invocations (user path and background path).
	EventSkillRun EventType = "skill_run"

	// Model thinking blocks stripped from replies.
	EventThinking EventType = "thinking"
)

// EventSource identifies the component that emitted an event.
type EventSource string

const (
	SourceHeartbeat EventSource = "heartbeat"
	SourceExecutor  EventSource = "executor"
	SourceServer    EventSource = "server"
	SourceSkill     EventSource = "skill"
	SourceCron      EventSource = "cron"
)

// Event represents an event in the system.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    EventSource    `json:"source"`
	Payload   map[string]any `json:"payload"`
}

// NewEvent creates a new event with the current timestamp.
func NewEvent(eventType EventType, source EventSource, payload map[string]any) Event {
	return Event{
		ID:        generateEventID(),
		Type:      eventType,
		Timestamp: time.Now(),
		Source:    source,
		Payload:   payload,
	}
}

func generateEventID() string {
	return uuid.NewString()
}
