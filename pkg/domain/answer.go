package domain

import (
	"fmt"
	"time"
)

// AnswerStatus is the lifecycle of an answer-formulation session.
type AnswerStatus string

const (
	AnswerInitializing AnswerStatus = "initializing"
	AnswerRefining     AnswerStatus = "refining"
	AnswerRefined      AnswerStatus = "refined"
	AnswerEditing      AnswerStatus = "editing"
	AnswerFinalized    AnswerStatus = "finalized"
	AnswerError        AnswerStatus = "error"
)

var answerTransitions = transitions[AnswerStatus]{
	AnswerInitializing: {
		AnswerRefining: {},
		AnswerError:    {},
	},
	AnswerRefining: {
		AnswerRefined: {},
		AnswerError:   {},
	},
	AnswerRefined: {
		AnswerEditing:   {},
		AnswerRefining:  {},
		AnswerFinalized: {},
		AnswerError:     {},
	},
	AnswerEditing: {
		AnswerRefined: {},
		AnswerError:   {},
	},
	AnswerError: {
		AnswerRefining: {}, // a new refine
		AnswerEditing:  {}, // retry after a failed edit
	},
}

// CanTransition reports whether the session may move from s to next.
func (s AnswerStatus) CanTransition(next AnswerStatus) bool {
	return answerTransitions.allows(s, next)
}

// EditKind is the parsed intent of an edit command.
type EditKind string

const (
	EditReplace  EditKind = "replace"
	EditRephrase EditKind = "rephrase"
	EditAdd      EditKind = "add"
	EditDelete   EditKind = "delete"
	EditReorder  EditKind = "reorder"
	EditCombine  EditKind = "combine"
	EditUnknown  EditKind = "unknown"
)

// EditIntent is the typed reading of a free-form edit command.
type EditIntent struct {
	Kind        EditKind `json:"kind"`
	Target      string   `json:"target,omitempty"`
	Replacement string   `json:"replacement,omitempty"` // replace
	Text        string   `json:"text,omitempty"`        // add
	Other       string   `json:"other,omitempty"`       // combine
	Position    string   `json:"position,omitempty"`    // add, reorder
}

// EditEntry records one applied edit.
type EditEntry struct {
	Command string     `json:"command"`
	Intent  EditIntent `json:"intent"`
	Before  string     `json:"before"`
	After   string     `json:"after"`
	At      time.Time  `json:"at"`
}

// AnswerState is the checkpointed record of an answer-formulation session.
type AnswerState struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question_prompt"`

	// Transcript is write-once. See SetTranscript.
	Transcript string `json:"original_transcript"`

	RefinedAnswer string      `json:"refined_answer"`
	EditCommand   string      `json:"edit_command"`
	EditHistory   []EditEntry `json:"edit_history"`

	// FidelityScore is only set when a sampled validation produced a score.
	FidelityScore      *float64 `json:"fidelity_score,omitempty"`
	FidelityViolations []string `json:"fidelity_violations"`

	Iterations int          `json:"iteration_count"`
	ModelCalls int          `json:"llm_call_count"`
	Status     AnswerStatus `json:"status"`
	Error      *Failure     `json:"error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NewAnswerState creates a session in the initializing status.
func NewAnswerState(sessionID, question string, now time.Time) AnswerState {
	return AnswerState{
		SessionID:          sessionID,
		Question:           question,
		EditHistory:        []EditEntry{},
		FidelityViolations: []string{},
		Status:             AnswerInitializing,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// SetTranscript records the original transcript. It may only be set once;
// setting the same text again is a no-op.
func (a *AnswerState) SetTranscript(transcript string) error {
	if a.Transcript != "" && a.Transcript != transcript {
		return fmt.Errorf("transcript already recorded for session %s", a.SessionID)
	}
	a.Transcript = transcript
	return nil
}

// Transition moves the session to next.
func (a *AnswerState) Transition(next AnswerStatus, at time.Time) error {
	if !a.Status.CanTransition(next) {
		return fmt.Errorf("%w: answer %s -> %s", ErrInvalidTransition, a.Status, next)
	}
	a.Status = next
	a.UpdatedAt = at
	return nil
}

// Fail moves the session into the error status. Finalized sessions are left untouched.
func (a *AnswerState) Fail(f *Failure, at time.Time) {
	if a.Status == AnswerFinalized {
		return
	}
	a.Status = AnswerError
	a.Error = f
	a.UpdatedAt = at
}
