package domain

import (
	"fmt"
	"time"
)

// QuizStatus is the lifecycle of a quiz sub-session.
type QuizStatus string

const (
	QuizInitializing       QuizStatus = "initializing"
	QuizGeneratingQuestion QuizStatus = "generating_first_question"
	QuizAwaitingAnswer     QuizStatus = "awaiting_answer"
	QuizEvaluatingAnswer   QuizStatus = "evaluating_answer"
	QuizCompleted          QuizStatus = "quiz_completed"
	QuizError              QuizStatus = "error"
)

var quizTransitions = transitions[QuizStatus]{
	QuizInitializing: {
		QuizGeneratingQuestion: {},
		QuizError:              {},
	},
	QuizGeneratingQuestion: {
		QuizAwaitingAnswer: {},
		QuizError:          {},
	},
	QuizAwaitingAnswer: {
		QuizEvaluatingAnswer: {},
		QuizError:            {},
	},
	QuizEvaluatingAnswer: {
		QuizAwaitingAnswer: {},
		QuizCompleted:      {},
		QuizError:          {},
	},
}

// CanTransition reports whether the quiz may move from s to next.
func (s QuizStatus) CanTransition(next QuizStatus) bool {
	return quizTransitions.allows(s, next)
}

// Terminal reports whether no further transition is possible.
func (s QuizStatus) Terminal() bool {
	return s == QuizCompleted || s == QuizError
}

// QuizQuestion is one multiple choice question.
type QuizQuestion struct {
	Text         string   `json:"question_text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_answer_index"`
	Explanation  string   `json:"explanation"`
}

// CorrectText returns the text of the correct option, or "" if the index is out of range.
func (q QuizQuestion) CorrectText() string {
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return ""
	}
	return q.Options[q.CorrectIndex]
}

// QuizEntry records one evaluated question.
type QuizEntry struct {
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_answer_index"`
	CorrectText  string   `json:"correct_answer_text"`
	Explanation  string   `json:"explanation"`
	UserAnswer   string   `json:"user_answer"`
	IsCorrect    bool     `json:"is_correct"`
	Feedback     string   `json:"feedback"`
}

// QuizStatusChange is one step of the quiz status trail.
type QuizStatusChange struct {
	From QuizStatus `json:"from"`
	To   QuizStatus `json:"to"`
	At   time.Time  `json:"at"`
}

// QuizState is the checkpointed record of a quiz sub-session.
//
// CurrentIndex counts the questions asked so far and never exceeds MaxQuestions.
// History holds one entry per evaluated question.
type QuizState struct {
	SessionID    string `json:"session_id"`
	DocumentRef  string `json:"document_ref"`
	Snippet      string `json:"snippet"`
	MaxQuestions int    `json:"max_questions"`

	History         []QuizEntry   `json:"history"`
	CurrentIndex    int           `json:"current_question_index"`
	Score           int           `json:"score"`
	Status          QuizStatus    `json:"status"`
	CurrentQuestion *QuizQuestion `json:"current_question,omitempty"`

	// LastOutput is the raw text of the last structured model response.
	LastOutput string `json:"last_model_output"`

	Trail      []QuizStatusChange `json:"trail"`
	Error      *Failure           `json:"error,omitempty"`
	ModelCalls int                `json:"model_calls"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// NewQuizState creates a quiz in the initializing status.
func NewQuizState(sessionID, documentRef, snippet string, maxQuestions int, now time.Time) QuizState {
	return QuizState{
		SessionID:    sessionID,
		DocumentRef:  documentRef,
		Snippet:      snippet,
		MaxQuestions: maxQuestions,
		History:      []QuizEntry{},
		Status:       QuizInitializing,
		Trail:        []QuizStatusChange{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Transition moves the quiz to next, recording the change in the trail.
// Entering error is not recorded in the trail.
func (q *QuizState) Transition(next QuizStatus, at time.Time) error {
	if !q.Status.CanTransition(next) {
		return fmt.Errorf("%w: quiz %s -> %s", ErrInvalidTransition, q.Status, next)
	}
	if next != QuizError && next != QuizInitializing {
		q.Trail = append(q.Trail, QuizStatusChange{From: q.Status, To: next, At: at})
	}
	q.Status = next
	q.UpdatedAt = at
	return nil
}

// Fail moves a non-terminal quiz into the error status.
func (q *QuizState) Fail(f *Failure, at time.Time) {
	if q.Status.Terminal() {
		return
	}
	q.Status = QuizError
	q.Error = f
	q.UpdatedAt = at
}
