// Package orchestrator routes a conversational turn to the QA or quiz workflow
// and keeps the top-level record of the conversation.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/checkpoint"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/lectern/pkg/workflow"
	"github.com/aretw0/lectern/pkg/workflow/qa"
	"github.com/aretw0/lectern/pkg/workflow/quiz"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// User-facing texts.
const (
	Greeting       = "Hello! How can I help you today?"
	CancelledReply = "Okay, I've cancelled the quiz. What would you like to do next?"
	Fallback       = "I encountered an issue trying to process your request. Please try again."
)

// SnippetRunes bounds the document text handed to a new quiz.
const SnippetRunes = 10000

// Answerer is the conversational workflow.
type Answerer interface {
	Answer(ctx context.Context, req qa.Request) (qa.Result, error)
}

// Quizzer is the quiz workflow.
type Quizzer interface {
	Start(ctx context.Context, req quiz.StartRequest) (quiz.Result, error)
	Answer(ctx context.Context, req quiz.AnswerRequest) (quiz.Result, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPublisher sends turn.handled events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

// WithMaxQuestions sets the length of quizzes started from a turn.
func WithMaxQuestions(n int) Option {
	return func(o *Orchestrator) { o.maxQuestions = n }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides the suffix source of quiz sub-session ids.
func WithIDGenerator(next func() string) Option {
	return func(o *Orchestrator) { o.newID = next }
}

// Orchestrator handles conversational turns.
type Orchestrator struct {
	states       *checkpoint.Checkpointer[domain.OrchestratorState]
	qa           Answerer
	quiz         Quizzer
	docs         ports.DocumentSource
	logger       *slog.Logger
	metrics      *observability.Metrics
	events       ports.EventPublisher
	maxQuestions int
	now          func() time.Time
	newID        func() string
}

// New creates an Orchestrator. store is the orchestrator namespace of the
// checkpoint store; docs resolves quiz documents and may be nil.
func New(answerer Answerer, quizzer Quizzer, docs ports.DocumentSource, store ports.StateStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		qa:           answerer,
		quiz:         quizzer,
		docs:         docs,
		logger:       logging.NewNop(),
		maxQuestions: quiz.DefaultMaxQuestions,
		now:          time.Now,
		newID:        func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(o)
	}
	o.states = checkpoint.New[domain.OrchestratorState](domain.WorkflowOrchestrator, store,
		checkpoint.WithLogger(o.logger),
		checkpoint.WithMetrics(o.metrics),
		checkpoint.WithClock(o.now),
	)
	return o
}

// Turn is one inbound user turn. Text may be a transcript.
type Turn struct {
	SessionID   string
	Text        string
	DocumentRef string
}

// FinalResponse is what the user sees. Error is internal and never rendered.
type FinalResponse struct {
	SessionID string
	Text      string
	Route     domain.Route
	Error     *domain.Failure

	// QuizSessionID is set while a quiz is running.
	QuizSessionID string
}

// outcome is what a dispatched route produced.
type outcome struct {
	text    string
	failure *domain.Failure
}

// HandleTurn runs one turn to completion. Workflow failures come back inside
// the response with fallback text; only persistence failures return an error.
func (o *Orchestrator) HandleTurn(ctx context.Context, turn Turn) (resp FinalResponse, err error) {
	ctx, span := observability.StartSpan(ctx, "orchestrator.handle_turn", attribute.String("session_id", turn.SessionID))
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(turn.SessionID) == "" {
		return FinalResponse{
			Text:  Fallback,
			Error: domain.NewFailure(domain.KindValidation, domain.CodeSessionRequired, "session id is required"),
		}, nil
	}

	state, found, err := o.states.Load(ctx, turn.SessionID)
	if err != nil {
		return FinalResponse{}, err
	}
	now := o.now().UTC()
	if !found {
		state = domain.NewOrchestratorState(turn.SessionID, now)
	}

	if !found && strings.TrimSpace(turn.Text) == "" {
		state.PendingRoute = domain.RouteTerminate
		return o.finish(ctx, &state, outcome{text: Greeting}, now)
	}

	msg := domain.UserMessage(turn.Text)
	if turn.DocumentRef != "" {
		msg = msg.WithMetadata("document_ref", turn.DocumentRef)
	}
	state.Append(msg)
	state.LastUserTurn = turn.Text

	decision := Route(state, turn)
	if decision.Route == domain.RouteQuiz && decision.Action == domain.QuizActionStart {
		decision = o.confirmQuiz(ctx, decision)
	}
	state.PendingRoute = decision.Route
	span.SetAttributes(attribute.String("route", string(decision.Route)))

	var out outcome
	route, known := domain.ParseRoute(string(state.PendingRoute))
	if !known {
		o.logger.Warn("unknown route, answering conversationally", "session_id", state.SessionID, "route", state.PendingRoute)
		state.PendingRoute = route
	}
	switch route {
	case domain.RouteTerminate:
		if decision.CancelQuiz {
			o.logger.Info("quiz cancelled", "session_id", state.SessionID, "quiz_session_id", state.ActiveQuiz.SessionID)
			state.ActiveQuiz = nil
		}
		out = outcome{text: decision.Reply}
	case domain.RouteQuiz:
		out, err = o.runQuiz(ctx, &state, turn, decision)
	case domain.RouteQA:
		out, err = o.runQA(ctx, &state, turn, decision)
	}
	if err != nil {
		o.logger.Error("turn aborted by persistence failure", "session_id", state.SessionID, "error", err)
		return FinalResponse{}, err
	}

	return o.finish(ctx, &state, out, now)
}

// confirmQuiz falls back to QA when the quiz document has no usable content.
func (o *Orchestrator) confirmQuiz(ctx context.Context, d Decision) Decision {
	if _, ok := o.snippet(ctx, d.DocumentRef); ok {
		return d
	}
	o.logger.Info("quiz document unavailable, answering conversationally", "document_ref", d.DocumentRef)
	return Decision{Route: domain.RouteQA, DocumentRef: d.DocumentRef}
}

func (o *Orchestrator) snippet(ctx context.Context, ref string) (string, bool) {
	if ref == "" || o.docs == nil {
		return "", false
	}
	text, err := o.docs.Text(ctx, ref)
	if err != nil {
		o.logger.Debug("document lookup failed", "document_ref", ref, "error", err)
		return "", false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}
	if r := []rune(text); len(r) > SnippetRunes {
		text = string(r[:SnippetRunes])
	}
	return text, true
}

func (o *Orchestrator) runQA(ctx context.Context, state *domain.OrchestratorState, turn Turn, d Decision) (outcome, error) {
	if state.QASessionID == "" {
		state.QASessionID = "qa:" + state.SessionID
	}
	res, err := o.qa.Answer(ctx, qa.Request{
		SessionID:   state.QASessionID,
		DocumentRef: d.DocumentRef,
		History:     state.History[:len(state.History)-1],
		Query:       turn.Text,
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{text: res.Text, failure: res.Error}, nil
}

func (o *Orchestrator) runQuiz(ctx context.Context, state *domain.OrchestratorState, turn Turn, d Decision) (outcome, error) {
	var (
		res quiz.Result
		err error
	)
	switch d.Action {
	case domain.QuizActionStart:
		snippet, _ := o.snippet(ctx, d.DocumentRef)
		subID := fmt.Sprintf("quiz:%s:%s:%s", state.SessionID, d.DocumentRef, o.newID())
		res, err = o.quiz.Start(ctx, quiz.StartRequest{
			SessionID:    subID,
			DocumentRef:  d.DocumentRef,
			Snippet:      snippet,
			MaxQuestions: o.maxQuestions,
		})
		if err == nil && res.Error == nil {
			state.ActiveQuiz = &domain.ActiveQuiz{SessionID: subID, DocumentRef: d.DocumentRef, StartedAt: o.now().UTC()}
		}
	case domain.QuizActionAnswer:
		res, err = o.quiz.Answer(ctx, quiz.AnswerRequest{SessionID: state.ActiveQuiz.SessionID, Answer: turn.Text})
	default:
		return outcome{failure: domain.NewFailure(domain.KindRouting, domain.CodeInvalidState, "quiz route without action")}, nil
	}
	if err != nil {
		return outcome{}, err
	}

	if res.Error != nil || res.Status == domain.QuizCompleted {
		state.ActiveQuiz = nil
	}
	if res.Error != nil {
		return outcome{failure: res.Error}, nil
	}
	return outcome{text: renderQuiz(res)}, nil
}

func (o *Orchestrator) finish(ctx context.Context, state *domain.OrchestratorState, out outcome, now time.Time) (FinalResponse, error) {
	text := out.text
	if out.failure != nil && strings.TrimSpace(text) == "" {
		text = Fallback
	}
	reply := domain.AssistantMessage(text)
	if out.failure != nil {
		reply = reply.WithMetadata("error_code", out.failure.Code)
		o.logger.Warn("turn failed", "session_id", state.SessionID, "route", state.PendingRoute,
			"kind", out.failure.Kind, "code", out.failure.Code, "detail", out.failure.Message)
	}

	state.LastResponse = text
	state.Error = out.failure
	state.Append(reply)
	state.Turns++
	state.UpdatedAt = now

	if err := o.states.Save(ctx, state.SessionID, state); err != nil {
		return FinalResponse{}, err
	}

	o.metrics.ObserveTurn(string(state.PendingRoute))
	workflow.Publish(ctx, o.events, o.logger, domain.NewEvent(domain.EventTurnHandled, domain.WorkflowOrchestrator, state.SessionID, map[string]any{
		"route":  string(state.PendingRoute),
		"failed": out.failure != nil,
	}))

	resp := FinalResponse{
		SessionID: state.SessionID,
		Text:      text,
		Route:     state.PendingRoute,
		Error:     out.failure,
	}
	if state.ActiveQuiz != nil {
		resp.QuizSessionID = state.ActiveQuiz.SessionID
	}
	return resp, nil
}

// Get returns the stored conversation record.
func (o *Orchestrator) Get(ctx context.Context, sessionID string) (domain.OrchestratorState, bool, error) {
	return o.states.Load(ctx, sessionID)
}
