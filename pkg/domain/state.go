package domain

import "time"

// ActiveQuiz points the orchestrator at a running quiz sub-session.
type ActiveQuiz struct {
	SessionID   string    `json:"session_id"`
	DocumentRef string    `json:"document_ref"`
	StartedAt   time.Time `json:"started_at"`
}

// OrchestratorState is the top-level record of one conversation.
type OrchestratorState struct {
	SessionID string `json:"session_id"`

	// History is append-only. Use Append, never reassign.
	History []Message `json:"history"`

	LastUserTurn string `json:"last_user_turn"`

	// PendingRoute is the target chosen for the latest turn.
	PendingRoute Route `json:"pending_route"`

	LastResponse string   `json:"last_response"`
	Error        *Failure `json:"error,omitempty"`

	// QASessionID is derived once and reused for every conversational turn.
	QASessionID string `json:"qa_session_id"`

	// ActiveQuiz is set while a quiz is waiting for answers.
	ActiveQuiz *ActiveQuiz `json:"active_quiz,omitempty"`

	Turns     int       `json:"turns"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewOrchestratorState creates a clean conversation record.
func NewOrchestratorState(sessionID string, now time.Time) OrchestratorState {
	return OrchestratorState{
		SessionID:    sessionID,
		History:      []Message{},
		PendingRoute: RouteQA,
		QASessionID:  "qa:" + sessionID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Append adds a message to the history.
func (s *OrchestratorState) Append(msg Message) {
	s.History = append(s.History, msg)
}

// QAState is the checkpointed record of the conversational QA sub-workflow.
type QAState struct {
	SessionID   string    `json:"session_id"`
	DocumentRef string    `json:"document_ref"`
	Turns       int       `json:"turns"`
	LastQuery   string    `json:"last_query"`
	LastAnswer  string    `json:"last_answer"`
	LastError   string    `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
