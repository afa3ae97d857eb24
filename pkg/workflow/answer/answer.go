// Package answer turns a dictated transcript into a written answer.
//
// Refine rewrites the transcript under a strict transcription-editor contract,
// Edit applies one spoken edit command at a time, and a sampled share of both
// is checked for fidelity against the original transcript. Fidelity results
// only annotate the state; they never change what the caller gets back.
package answer

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/internal/prompts"
	"github.com/aretw0/lectern/pkg/checkpoint"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/lectern/pkg/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const (
	MinWords = 5
	MaxWords = 2000

	// DefaultSampleRate is the share of refine and edit calls that get a fidelity check.
	DefaultSampleRate = 0.1

	// FidelityThreshold is the score below which a sample is logged as an error.
	FidelityThreshold = 0.8

	refineTemperature   = 0.3
	editTemperature     = 0.2
	fidelityTemperature = 0.1
)

// Sampler decides whether the current call gets a fidelity check.
type Sampler func() bool

// RateSampler samples with the given probability.
func RateSampler(rate float64) Sampler {
	return func() bool { return rand.Float64() < rate }
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher sends fidelity.sampled events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

// WithSampler replaces the default 10% sampler.
func WithSampler(sample Sampler) Option {
	return func(s *Service) { s.sample = sample }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the answer-formulation workflow.
type Service struct {
	gen     ports.Generator
	states  *checkpoint.Checkpointer[domain.AnswerState]
	logger  *slog.Logger
	metrics *observability.Metrics
	events  ports.EventPublisher
	sample  Sampler
	now     func() time.Time
}

// New creates the workflow. store is the answer namespace of the checkpoint store.
func New(gen ports.Generator, store ports.StateStore, opts ...Option) *Service {
	s := &Service{
		gen:    gen,
		logger: logging.NewNop(),
		sample: RateSampler(DefaultSampleRate),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.states = checkpoint.New[domain.AnswerState](domain.WorkflowAnswer, store,
		checkpoint.WithLogger(s.logger),
		checkpoint.WithMetrics(s.metrics),
		checkpoint.WithClock(s.now),
	)
	return s
}

// RefineRequest asks for a transcript to be refined. An empty SessionID starts a new session.
type RefineRequest struct {
	SessionID  string
	Question   string
	Transcript string
}

// EditRequest asks for one edit command to be applied.
type EditRequest struct {
	SessionID string
	Command   string
}

// Result is returned by every operation. Error carries workflow-level failures;
// the Go error is reserved for persistence.
type Result struct {
	SessionID string
	Answer    string
	Status    domain.AnswerStatus
	Error     *domain.Failure
	State     domain.AnswerState
}

func newResult(state domain.AnswerState, f *domain.Failure) Result {
	return Result{
		SessionID: state.SessionID,
		Answer:    state.RefinedAnswer,
		Status:    state.Status,
		Error:     f,
		State:     state,
	}
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Refine validates the transcript and rewrites it into a clean answer.
func (s *Service) Refine(ctx context.Context, req RefineRequest) (res Result, err error) {
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	ctx, span := observability.StartSpan(ctx, "answer.refine", attribute.String("session_id", req.SessionID))
	defer func() { observability.EndSpan(span, err) }()

	state, found, err := s.states.Load(ctx, req.SessionID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		state = domain.NewAnswerState(req.SessionID, req.Question, s.clock())
	}
	if req.Question != "" && state.Question == "" {
		state.Question = req.Question
	}

	transcript, f := validateTranscript(req.Transcript)
	if f == nil && state.SetTranscript(transcript) != nil {
		f = domain.NewFailure(domain.KindValidation, domain.CodeTranscriptConflict, "Transcript already recorded for this session")
	}
	if f != nil {
		if state.Status == domain.AnswerFinalized {
			return newResult(state, f), nil
		}
		return s.fail(ctx, &state, f)
	}

	if err := state.Transition(domain.AnswerRefining, s.clock()); err != nil {
		return newResult(state, domain.NewFailure(domain.KindValidation, domain.CodeInvalidState, "This answer can no longer be refined")), nil
	}

	state.ModelCalls++
	out, err := workflow.Call(ctx, s.gen, s.metrics, domain.WorkflowAnswer, "refine", domain.Prompt{
		System:      prompts.Refine(),
		Messages:    []domain.Message{domain.UserMessage(prompts.RefineInput{Question: state.Question, Transcript: state.Transcript}.String())},
		Temperature: refineTemperature,
	})
	if err != nil {
		s.logger.Error("refine failed", "session_id", state.SessionID, "error", err)
		return s.fail(ctx, &state, workflow.GenerationFailure(err, "Could not refine the answer. Please try again."))
	}

	state.RefinedAnswer = out
	state.Iterations++
	state.Error = nil
	if err := state.Transition(domain.AnswerRefined, s.clock()); err != nil {
		return newResult(state, domain.NewFailure(domain.KindValidation, domain.CodeInvalidState, "This answer can no longer be refined")), nil
	}

	s.checkFidelity(ctx, &state)

	if err := s.states.Save(ctx, state.SessionID, &state); err != nil {
		return Result{}, err
	}
	s.logger.Info("answer refined", "session_id", state.SessionID, "iteration", state.Iterations)
	return newResult(state, nil), nil
}

// Edit applies a single edit command to the refined answer.
func (s *Service) Edit(ctx context.Context, req EditRequest) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "answer.edit", attribute.String("session_id", req.SessionID))
	defer func() { observability.EndSpan(span, err) }()

	state, found, err := s.load(ctx, req.SessionID)
	if err != nil || !found {
		return notFound(req.SessionID), err
	}

	command := strings.TrimSpace(req.Command)
	if command == "" || state.RefinedAnswer == "" {
		return newResult(state, domain.NewFailure(domain.KindValidation, domain.CodeMissingEdit, "Missing edit command or answer")), nil
	}
	if err := state.Transition(domain.AnswerEditing, s.clock()); err != nil {
		return newResult(state, domain.NewFailure(domain.KindValidation, domain.CodeInvalidState, "This answer can no longer be edited")), nil
	}

	intent := ParseEdit(command)
	if intent.Kind == domain.EditUnknown {
		s.logger.Debug("edit command not recognized", "session_id", state.SessionID, "command", command)
	}
	state.EditCommand = command
	before := state.RefinedAnswer

	state.ModelCalls++
	out, err := workflow.Call(ctx, s.gen, s.metrics, domain.WorkflowAnswer, "edit", domain.Prompt{
		System: prompts.Edit(),
		Messages: []domain.Message{domain.UserMessage(prompts.EditInput{
			Answer:  before,
			Command: command,
			Hint:    Hint(intent),
		}.String())},
		Temperature: editTemperature,
	})
	if err != nil {
		s.logger.Error("edit failed", "session_id", state.SessionID, "error", err)
		return s.fail(ctx, &state, workflow.GenerationFailure(err, "Could not apply the edit. Please try again."))
	}

	now := s.clock()
	state.EditHistory = append(state.EditHistory, domain.EditEntry{
		Command: command,
		Intent:  intent,
		Before:  before,
		After:   out,
		At:      now,
	})
	state.RefinedAnswer = out
	state.Iterations++
	state.Error = nil
	if err := state.Transition(domain.AnswerRefined, now); err != nil {
		return newResult(state, domain.NewFailure(domain.KindValidation, domain.CodeInvalidState, "This answer can no longer be edited")), nil
	}

	s.checkFidelity(ctx, &state)

	if err := s.states.Save(ctx, state.SessionID, &state); err != nil {
		return Result{}, err
	}
	s.logger.Info("answer edited", "session_id", state.SessionID, "kind", intent.Kind, "iteration", state.Iterations)
	return newResult(state, nil), nil
}

// Finalize marks the answer as accepted. Nothing in the workflow calls it on its own.
func (s *Service) Finalize(ctx context.Context, sessionID string) (Result, error) {
	state, found, err := s.load(ctx, sessionID)
	if err != nil || !found {
		return notFound(sessionID), err
	}
	if err := state.Transition(domain.AnswerFinalized, s.clock()); err != nil {
		return newResult(state, domain.NewFailure(domain.KindValidation, domain.CodeInvalidState, "Only a refined answer can be finalized")), nil
	}
	if err := s.states.Save(ctx, state.SessionID, &state); err != nil {
		return Result{}, err
	}
	return newResult(state, nil), nil
}

// Get returns the stored state of a session.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.AnswerState, bool, error) {
	return s.load(ctx, sessionID)
}

func (s *Service) load(ctx context.Context, sessionID string) (domain.AnswerState, bool, error) {
	if sessionID == "" {
		return domain.AnswerState{}, false, nil
	}
	return s.states.Load(ctx, sessionID)
}

func notFound(sessionID string) Result {
	return Result{
		SessionID: sessionID,
		Error:     domain.NewFailure(domain.KindNotFound, domain.CodeSessionNotFound, "Session not found or expired"),
	}
}

func (s *Service) fail(ctx context.Context, state *domain.AnswerState, f *domain.Failure) (Result, error) {
	state.Fail(f, s.clock())
	s.logger.Warn("answer step failed", "session_id", state.SessionID, "code", f.Code)
	if err := s.states.Save(ctx, state.SessionID, state); err != nil {
		return Result{}, err
	}
	return newResult(*state, f), nil
}

func validateTranscript(raw string) (string, *domain.Failure) {
	words := strings.Fields(raw)
	switch {
	case len(words) == 0:
		return "", domain.NewFailure(domain.KindValidation, domain.CodeTranscriptEmpty, "No transcript provided")
	case len(words) < MinWords:
		return "", domain.NewFailure(domain.KindValidation, domain.CodeTranscriptShort, "Transcript too short (minimum 5 words)")
	case len(words) > MaxWords:
		return "", domain.NewFailure(domain.KindValidation, domain.CodeTranscriptLong, "Transcript too long (maximum 2000 words)")
	}
	return strings.Join(words, " "), nil
}

// checkFidelity runs a sampled validation call. Its failures are logged and dropped.
func (s *Service) checkFidelity(ctx context.Context, state *domain.AnswerState) {
	if !s.sample() {
		return
	}

	state.ModelCalls++
	out, err := workflow.Call(ctx, s.gen, s.metrics, domain.WorkflowAnswer, "fidelity", domain.Prompt{
		System: prompts.Fidelity(),
		Messages: []domain.Message{domain.UserMessage(prompts.FidelityInput{
			Transcript: state.Transcript,
			Answer:     state.RefinedAnswer,
		}.String())},
		Temperature: fidelityTemperature,
	})
	if err != nil {
		s.metrics.ObserveFidelity(nil, err)
		s.logger.Warn("fidelity check failed", "session_id", state.SessionID, "error", err)
		return
	}

	verdict := ParseVerdict(out)
	s.metrics.ObserveFidelity(verdict.Score, nil)
	if verdict.Score == nil {
		s.logger.Warn("fidelity response had no score", "session_id", state.SessionID)
		return
	}

	state.FidelityScore = verdict.Score
	state.FidelityViolations = verdict.Violations
	score := *verdict.Score
	if score < FidelityThreshold {
		s.logger.Error("fidelity below threshold",
			"session_id", state.SessionID, "score", score, "violations", verdict.Violations)
	}

	workflow.Publish(ctx, s.events, s.logger, domain.NewEvent(domain.EventFidelitySampled, domain.WorkflowAnswer, state.SessionID, map[string]any{
		"score":      score,
		"violations": verdict.Violations,
		"iteration":  state.Iterations,
	}))
}
