package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

// HeartbeatPayload carries a heartbeat state transition. The event type on
// the wire is "heartbeat_<state>".
type HeartbeatPayload struct {
	State     string `json:"state"`
	Message   string `json:"message"`
	TaskTitle string `json:"task_title,omitempty"`
	TaskType  string `json:"task_type,omitempty"`
}

func (p HeartbeatPayload) EventType() EventType { return EventType("heartbeat_" + p.State) }

// ProactivePayload is a suggestion surfaced to the user unprompted.
type ProactivePayload struct {
	Message string `json:"message"`
}

func (ProactivePayload) EventType() EventType { return EventProactive }

// SkillRunPayload records one completed skill invocation.
type SkillRunPayload struct {
	Skill    string        `json:"skill"`
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

func (SkillRunPayload) EventType() EventType { return EventSkillRun }

// ThinkingPayload carries a <think> block stripped from a model reply.
type ThinkingPayload struct {
	Model   string `json:"model"`
	Content string `json:"content"`
}

func (ThinkingPayload) EventType() EventType { return EventThinking }

// NewTypedEvent builds an Event from a typed payload.
func NewTypedEvent(source EventSource, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// ExtractPayload decodes an event's payload map back into a typed payload.
func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}
