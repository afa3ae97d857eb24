package domain

import "time"

// EventType defines the category of a monitoring event.
type EventType string

const (
	EventFidelitySampled EventType = "fidelity.sampled"
	EventQuizCompleted   EventType = "quiz.completed"
	EventTurnHandled     EventType = "turn.handled"
)

// Event is a best-effort monitoring notification. Losing one never affects a workflow.
type Event struct {
	Type       EventType      `json:"type"`
	Workflow   Workflow       `json:"workflow"`
	SessionID  string         `json:"session_id"`
	Payload    map[string]any `json:"payload,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(typ EventType, workflow Workflow, sessionID string, payload map[string]any) Event {
	return Event{
		Type:       typ,
		Workflow:   workflow,
		SessionID:  sessionID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}
