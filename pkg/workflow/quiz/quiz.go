// Package quiz runs a multiple choice quiz over a document excerpt.
//
// A quiz is a small state machine:
//
//	initializing -> generating_first_question -> awaiting_answer
//	awaiting_answer -> evaluating_answer -> awaiting_answer | quiz_completed
//
// Any step may end in error. quiz_completed and error are terminal; a failed
// quiz is never retried, the caller starts a new one.
package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/internal/prompts"
	"github.com/aretw0/lectern/pkg/checkpoint"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/lectern/pkg/workflow"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultMaxQuestions is used by callers that do not pick a quiz length.
const DefaultMaxQuestions = 5

const (
	questionTemperature   = 0.7
	evaluationTemperature = 0.3
)

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPublisher sends quiz.completed events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(s *Service) { s.events = p }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs quiz sub-sessions.
type Service struct {
	gen     ports.Generator
	states  *checkpoint.Checkpointer[domain.QuizState]
	logger  *slog.Logger
	metrics *observability.Metrics
	events  ports.EventPublisher
	now     func() time.Time
}

// New creates the workflow. store is the quiz namespace of the checkpoint store.
func New(gen ports.Generator, store ports.StateStore, opts ...Option) *Service {
	s := &Service{
		gen:    gen,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.states = checkpoint.New[domain.QuizState](domain.WorkflowQuiz, store,
		checkpoint.WithLogger(s.logger),
		checkpoint.WithMetrics(s.metrics),
		checkpoint.WithClock(s.now),
	)
	return s
}

// StartRequest opens a quiz sub-session.
type StartRequest struct {
	SessionID    string
	DocumentRef  string
	Snippet      string
	MaxQuestions int
}

// AnswerRequest answers the question currently awaiting an answer.
type AnswerRequest struct {
	SessionID string
	Answer    string
}

// Result describes the quiz after a step.
//
// Question is set while an answer is awaited. Feedback grades the last answer
// and Summary is set once the quiz completes.
type Result struct {
	SessionID    string
	Status       domain.QuizStatus
	Question     *domain.QuizQuestion
	Number       int
	MaxQuestions int
	Score        int
	Feedback     string
	Summary      string
	Forced       bool
	Error        *domain.Failure
	State        domain.QuizState
}

func newResult(state domain.QuizState, f *domain.Failure) Result {
	return Result{
		SessionID:    state.SessionID,
		Status:       state.Status,
		Question:     state.CurrentQuestion,
		Number:       state.CurrentIndex,
		MaxQuestions: state.MaxQuestions,
		Score:        state.Score,
		Error:        f,
		State:        state,
	}
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// Start validates the request and generates the first question.
func (s *Service) Start(ctx context.Context, req StartRequest) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "quiz.start",
		attribute.String("session_id", req.SessionID),
		attribute.String("document_ref", req.DocumentRef),
	)
	defer func() { observability.EndSpan(span, err) }()

	if req.SessionID == "" {
		return Result{Error: domain.NewFailure(domain.KindValidation, domain.CodeSessionRequired, "A quiz session id is required")}, nil
	}
	existing, found, err := s.states.Load(ctx, req.SessionID)
	if err != nil {
		return Result{}, err
	}
	if found {
		return newResult(existing, domain.NewFailure(domain.KindValidation, domain.CodeInvalidState, "This quiz has already started")), nil
	}

	state := domain.NewQuizState(req.SessionID, req.DocumentRef, req.Snippet, req.MaxQuestions, s.clock())

	switch {
	case strings.TrimSpace(req.Snippet) == "":
		return s.fail(ctx, &state, domain.NewFailure(domain.KindValidation, domain.CodeEmptySnippet, "The document has no content to quiz on"))
	case req.MaxQuestions <= 0:
		return s.fail(ctx, &state, domain.NewFailure(domain.KindValidation, domain.CodeInvalidMaxQuestion,
			fmt.Sprintf("max questions must be positive, got %d", req.MaxQuestions)))
	}

	if err := state.Transition(domain.QuizGeneratingQuestion, s.clock()); err != nil {
		return Result{}, err
	}

	state.ModelCalls++
	out, err := workflow.Call(ctx, s.gen, s.metrics, domain.WorkflowQuiz, "quiz_question", domain.Prompt{
		System:      prompts.QuizFirst{Snippet: state.Snippet, MaxQuestions: state.MaxQuestions}.String(),
		Messages:    []domain.Message{domain.UserMessage("Generate question 1 now.")},
		Temperature: questionTemperature,
		Schema:      questionSchema,
	})
	if err != nil {
		s.logger.Error("quiz question generation failed", "session_id", state.SessionID, "error", err)
		return s.fail(ctx, &state, workflow.GenerationFailure(err, "The quiz could not be started"))
	}
	state.LastOutput = out

	question, err := ParseQuestion(out)
	if err != nil {
		s.logger.Error("quiz question malformed", "session_id", state.SessionID, "error", err)
		return s.fail(ctx, &state, domain.NewFailure(domain.KindMalformedOutput, domain.CodeMalformedOutput, "The quiz could not be started"))
	}

	state.CurrentQuestion = &question
	state.CurrentIndex = 1
	if err := state.Transition(domain.QuizAwaitingAnswer, s.clock()); err != nil {
		return Result{}, err
	}
	if err := s.states.Save(ctx, state.SessionID, &state); err != nil {
		return Result{}, err
	}
	s.logger.Info("quiz started", "session_id", state.SessionID, "max_questions", state.MaxQuestions)
	return newResult(state, nil), nil
}

// Answer grades the awaited question and moves to the next one or completes the quiz.
func (s *Service) Answer(ctx context.Context, req AnswerRequest) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "quiz.answer", attribute.String("session_id", req.SessionID))
	defer func() { observability.EndSpan(span, err) }()

	state, found, err := s.load(ctx, req.SessionID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{
			SessionID: req.SessionID,
			Error:     domain.NewFailure(domain.KindNotFound, domain.CodeSessionNotFound, "Quiz not found"),
		}, nil
	}
	if state.Status != domain.QuizAwaitingAnswer || state.CurrentQuestion == nil {
		return newResult(state, domain.NewFailure(domain.KindValidation, domain.CodeInvalidState,
			fmt.Sprintf("The quiz is not waiting for an answer (status %s)", state.Status))), nil
	}

	if err := state.Transition(domain.QuizEvaluatingAnswer, s.clock()); err != nil {
		return Result{}, err
	}

	question := *state.CurrentQuestion
	state.ModelCalls++
	out, err := workflow.Call(ctx, s.gen, s.metrics, domain.WorkflowQuiz, "quiz_evaluation", domain.Prompt{
		System: prompts.QuizEvaluate{
			Snippet:      state.Snippet,
			Question:     question,
			Answer:       req.Answer,
			History:      state.History,
			Score:        state.Score,
			Answered:     len(state.History),
			Number:       state.CurrentIndex,
			MaxQuestions: state.MaxQuestions,
		}.String(),
		Messages:    []domain.Message{domain.UserMessage(req.Answer)},
		Temperature: evaluationTemperature,
		Schema:      evaluationSchema,
	})
	if err != nil {
		s.logger.Error("quiz evaluation failed", "session_id", state.SessionID, "error", err)
		return s.fail(ctx, &state, workflow.GenerationFailure(err, "The answer could not be evaluated"))
	}
	state.LastOutput = out

	eval, err := ParseEvaluation(out)
	if err != nil {
		s.logger.Error("quiz evaluation malformed", "session_id", state.SessionID, "error", err)
		return s.fail(ctx, &state, domain.NewFailure(domain.KindMalformedOutput, domain.CodeMalformedOutput, "The answer could not be evaluated"))
	}

	correct := eval.IsCorrect != nil && *eval.IsCorrect
	feedback := deref(eval.Feedback)
	state.History = append(state.History, domain.QuizEntry{
		QuestionText: question.Text,
		Options:      question.Options,
		CorrectIndex: question.CorrectIndex,
		CorrectText:  question.CorrectText(),
		Explanation:  question.Explanation,
		UserAnswer:   req.Answer,
		IsCorrect:    correct,
		Feedback:     feedback,
	})
	if correct {
		state.Score++
	}

	var summary string
	var forced bool
	switch {
	case *eval.Complete:
		summary = strings.TrimSpace(deref(eval.FinalSummary))
	case state.CurrentIndex >= state.MaxQuestions:
		// Policy: the question limit wins over the model. Revisit if quizzes
		// should be allowed to run past max_questions.
		forced = true
		s.logger.Warn("model kept the quiz going at the question limit, completing it",
			"session_id", state.SessionID, "max_questions", state.MaxQuestions)
	default:
		next := eval.NextQuestion.question()
		state.CurrentQuestion = &next
		state.CurrentIndex++
		if err := state.Transition(domain.QuizAwaitingAnswer, s.clock()); err != nil {
			return Result{}, err
		}
	}

	if state.Status == domain.QuizEvaluatingAnswer {
		if summary == "" {
			summary = FallbackSummary(state.Score, state.MaxQuestions)
		}
		state.CurrentQuestion = nil
		if err := state.Transition(domain.QuizCompleted, s.clock()); err != nil {
			return Result{}, err
		}
	}

	if err := s.states.Save(ctx, state.SessionID, &state); err != nil {
		return Result{}, err
	}

	if state.Status == domain.QuizCompleted {
		s.metrics.ObserveQuizCompleted()
		workflow.Publish(ctx, s.events, s.logger, domain.NewEvent(domain.EventQuizCompleted, domain.WorkflowQuiz, state.SessionID, map[string]any{
			"document_ref":  state.DocumentRef,
			"score":         state.Score,
			"max_questions": state.MaxQuestions,
			"answered":      len(state.History),
			"forced":        forced,
		}))
		s.logger.Info("quiz completed", "session_id", state.SessionID, "score", state.Score, "forced", forced)
	}

	res = newResult(state, nil)
	res.Feedback = feedback
	res.Summary = summary
	res.Forced = forced
	return res, nil
}

// Get returns the stored state of a quiz.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.QuizState, bool, error) {
	return s.load(ctx, sessionID)
}

func (s *Service) load(ctx context.Context, sessionID string) (domain.QuizState, bool, error) {
	if sessionID == "" {
		return domain.QuizState{}, false, nil
	}
	return s.states.Load(ctx, sessionID)
}

func (s *Service) fail(ctx context.Context, state *domain.QuizState, f *domain.Failure) (Result, error) {
	state.Fail(f, s.clock())
	if err := s.states.Save(ctx, state.SessionID, state); err != nil {
		return Result{}, err
	}
	return newResult(*state, f), nil
}

// FallbackSummary is used when the quiz completes without a model summary.
func FallbackSummary(score, maxQuestions int) string {
	return fmt.Sprintf("Quiz complete! Your final score is %d/%d.", score, maxQuestions)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
