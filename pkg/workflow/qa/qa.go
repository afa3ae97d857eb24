// Package qa answers questions about a document, grounded only in its narrative.
package qa

import (
	"context"
	"errors"
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

// User-facing texts.
const (
	NoDocument    = "No document has been provided for this conversation."
	EmptyDocument = "The document content appears to be empty, so I can't answer questions about it."
	EmptyQuery    = "It seems your question is empty. Could you please rephrase?"
	Apology       = "I encountered an issue trying to process your request. Please try again."
	NoHistory     = "No previous conversation history."
)

// HistoryWindow is how many recent messages are distilled into the prompt.
const HistoryWindow = 5

const temperature = 0.7

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs the conversational workflow.
type Service struct {
	gen     ports.Generator
	docs    ports.DocumentSource
	states  *checkpoint.Checkpointer[domain.QAState]
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// New creates the workflow. docs may be nil, in which case every turn runs
// without a narrative.
func New(gen ports.Generator, docs ports.DocumentSource, store ports.StateStore, opts ...Option) *Service {
	s := &Service{
		gen:    gen,
		docs:   docs,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.states = checkpoint.New[domain.QAState](domain.WorkflowQA, store,
		checkpoint.WithLogger(s.logger),
		checkpoint.WithMetrics(s.metrics),
		checkpoint.WithClock(s.now),
	)
	return s
}

// Request is one conversational turn. History holds the turns before Query.
type Request struct {
	SessionID   string
	DocumentRef string
	History     []domain.Message
	Query       string
}

// Result always carries user-safe text, even when Error is set.
type Result struct {
	Text  string
	Error *domain.Failure
	State domain.QAState
}

// Answer replies to the query from the document narrative.
func (s *Service) Answer(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := observability.StartSpan(ctx, "qa.answer",
		attribute.String("session_id", req.SessionID),
		attribute.String("document_ref", req.DocumentRef),
	)
	defer func() { observability.EndSpan(span, err) }()

	state, found, err := s.states.Load(ctx, req.SessionID)
	if err != nil {
		return Result{}, err
	}
	now := s.now().UTC()
	if !found {
		state = domain.QAState{SessionID: req.SessionID, CreatedAt: now}
	}

	text, failure := s.reply(ctx, req)

	state.DocumentRef = req.DocumentRef
	state.Turns++
	state.LastQuery = req.Query
	state.LastAnswer = text
	state.LastError = ""
	if failure != nil {
		state.LastError = failure.Code
	}
	state.UpdatedAt = now

	if err := s.states.Save(ctx, req.SessionID, &state); err != nil {
		return Result{}, err
	}
	return Result{Text: text, Error: failure, State: state}, nil
}

// Get returns the stored record of a conversational session.
func (s *Service) Get(ctx context.Context, sessionID string) (domain.QAState, bool, error) {
	return s.states.Load(ctx, sessionID)
}

func (s *Service) reply(ctx context.Context, req Request) (string, *domain.Failure) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return EmptyQuery, domain.NewFailure(domain.KindValidation, domain.CodeQueryEmpty, "User query is missing.")
	}

	narrative, ok := s.narrative(ctx, req.DocumentRef)
	if !ok {
		return EmptyDocument, nil
	}

	out, err := workflow.Call(ctx, s.gen, s.metrics, domain.WorkflowQA, "answer", domain.Prompt{
		System: prompts.QA{
			Narrative: narrative,
			History:   Distill(req.History, HistoryWindow),
		}.String(),
		Messages:    []domain.Message{domain.UserMessage(query)},
		Temperature: temperature,
	})
	if err != nil {
		s.logger.Error("qa model call failed", "session_id", req.SessionID, "error", err)
		return Apology, workflow.GenerationFailure(err, Apology)
	}
	return out, nil
}

// narrative resolves the document text. ok is false when the document
// resolved to empty content.
func (s *Service) narrative(ctx context.Context, ref string) (text string, ok bool) {
	if ref == "" || s.docs == nil {
		return NoDocument, true
	}
	text, err := s.docs.Text(ctx, ref)
	if err != nil {
		if !errors.Is(err, domain.ErrDocumentNotFound) {
			s.logger.Warn("document lookup failed", "document_ref", ref, "error", err)
		}
		return NoDocument, true
	}
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// Distill renders the last n user and assistant messages as "User: ..." and
// "Assistant: ..." lines.
func Distill(history []domain.Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var lines []string
	for _, msg := range history {
		switch msg.Role() {
		case domain.RoleUser:
			lines = append(lines, "User: "+msg.Content())
		case domain.RoleAssistant:
			lines = append(lines, "Assistant: "+msg.Content())
		}
	}
	if len(lines) == 0 {
		return NoHistory
	}
	return strings.Join(lines, "\n")
}
