package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrCheckpoint marks every persistence failure. Use errors.Is to detect it.
var ErrCheckpoint = errors.New("checkpoint error")

// ErrInvalidTransition is returned when a lifecycle status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrMalformedOutput is returned when a model response fails structured parsing.
var ErrMalformedOutput = errors.New("malformed model output")

// ErrDocumentNotFound is returned by a DocumentSource when a reference does not resolve.
var ErrDocumentNotFound = errors.New("document not found")

// ErrEmptyCompletion is returned when the model answered with blank text.
var ErrEmptyCompletion = errors.New("empty completion")

// ErrorKind classifies a Failure.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindGeneration      ErrorKind = "generation"
	KindMalformedOutput ErrorKind = "malformed_output"
	KindPersistence     ErrorKind = "persistence"
	KindRouting         ErrorKind = "routing"
	KindNotFound        ErrorKind = "not_found"
)

// Internal error codes. They are logged and stored, never shown to end users.
const (
	CodeSessionRequired    = "session_id_required"
	CodeSessionNotFound    = "session_not_found"
	CodeTranscriptEmpty    = "transcript_empty"
	CodeTranscriptShort    = "transcript_too_short"
	CodeTranscriptLong     = "transcript_too_long"
	CodeTranscriptConflict = "transcript_already_recorded"
	CodeMissingEdit        = "missing_edit_command"
	CodeQueryEmpty         = "query_empty"
	CodeInvalidState       = "invalid_state"
	CodeEmptySnippet       = "empty_document_snippet"
	CodeInvalidMaxQuestion = "invalid_max_questions"
	CodeModelFailed        = "model_call_failed"
	CodeEmptyCompletion    = "empty_completion"
	CodeMalformedOutput    = "malformed_model_output"
	CodeCheckpointFailed   = "checkpoint_failed"
)

// Failure is the structured error carried inside workflow results.
type Failure struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// NewFailure builds a Failure.
func NewFailure(kind ErrorKind, code, message string) *Failure {
	return &Failure{Kind: kind, Code: code, Message: message}
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (%s): %s", f.Kind, f.Code, f.Message)
}

// CheckpointError wraps a store failure with the addressed record.
type CheckpointError struct {
	Workflow  Workflow
	SessionID string
	Op        string
	Err       error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s %s/%s: %v", e.Op, e.Workflow, e.SessionID, e.Err)
}

func (e *CheckpointError) Unwrap() []error {
	return []error{ErrCheckpoint, e.Err}
}
