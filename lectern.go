package lectern

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/checkpoint"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/orchestrator"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/lectern/pkg/session"
	"github.com/aretw0/lectern/pkg/workflow/answer"
	"github.com/aretw0/lectern/pkg/workflow/qa"
	"github.com/aretw0/lectern/pkg/workflow/quiz"
)

// Version is the library version reported by the CLI.
var Version = "0.1.0-dev"

type (
	Turn          = orchestrator.Turn
	FinalResponse = orchestrator.FinalResponse
	RefineRequest = answer.RefineRequest
	EditRequest   = answer.EditRequest
	AnswerResult  = answer.Result
)

// Tutor wires the orchestrator and the workflows over one set of stores.
// It is safe for concurrent use; calls for the same session run one at a time.
type Tutor struct {
	orch    *orchestrator.Orchestrator
	qa      *qa.Service
	quiz    *quiz.Service
	answers *answer.Service

	stores *checkpoint.Stores
	guard  *session.Guard
}

type config struct {
	stores       *checkpoint.Stores
	docs         ports.DocumentSource
	logger       *slog.Logger
	metrics      *observability.Metrics
	events       ports.EventPublisher
	locker       ports.DistributedLocker
	maxQuestions int
	sampler      answer.Sampler
}

// Option configures a Tutor.
type Option func(*config)

// WithStores sets the checkpoint stores. The default keeps everything in memory.
func WithStores(s *checkpoint.Stores) Option {
	return func(c *config) { c.stores = s }
}

// WithDocuments sets the document source used by QA and quizzes.
func WithDocuments(docs ports.DocumentSource) Option {
	return func(c *config) { c.docs = docs }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithPublisher delivers monitoring events.
func WithPublisher(p ports.EventPublisher) Option {
	return func(c *config) { c.events = p }
}

// WithLocker serializes sessions across processes.
func WithLocker(l ports.DistributedLocker) Option {
	return func(c *config) { c.locker = l }
}

// WithMaxQuestions sets the quiz length.
func WithMaxQuestions(n int) Option {
	return func(c *config) { c.maxQuestions = n }
}

// WithFidelitySampleRate sets the share of refine and edit calls that get a fidelity check.
func WithFidelitySampleRate(rate float64) Option {
	return func(c *config) { c.sampler = answer.RateSampler(rate) }
}

// New builds a Tutor around a generation model.
func New(gen ports.Generator, opts ...Option) (*Tutor, error) {
	if gen == nil {
		return nil, errors.New("lectern: a generator is required")
	}
	c := config{
		logger:       logging.NewNop(),
		maxQuestions: quiz.DefaultMaxQuestions,
		sampler:      answer.RateSampler(answer.DefaultSampleRate),
	}
	for _, opt := range opts {
		opt(&c)
	}
	if c.stores == nil {
		c.stores = checkpoint.NewMemoryStores()
	}

	t := &Tutor{
		stores: c.stores,
		guard:  session.NewGuard(session.WithLocker(c.locker), session.WithLogger(c.logger)),
	}

	t.qa = qa.New(gen, c.docs, c.stores.For(domain.WorkflowQA),
		qa.WithLogger(c.logger.With("workflow", domain.WorkflowQA)),
		qa.WithMetrics(c.metrics),
	)
	t.quiz = quiz.New(gen, c.stores.For(domain.WorkflowQuiz),
		quiz.WithLogger(c.logger.With("workflow", domain.WorkflowQuiz)),
		quiz.WithMetrics(c.metrics),
		quiz.WithPublisher(c.events),
	)
	t.answers = answer.New(gen, c.stores.For(domain.WorkflowAnswer),
		answer.WithLogger(c.logger.With("workflow", domain.WorkflowAnswer)),
		answer.WithMetrics(c.metrics),
		answer.WithPublisher(c.events),
		answer.WithSampler(c.sampler),
	)
	t.orch = orchestrator.New(t.qa, t.quiz, c.docs, c.stores.For(domain.WorkflowOrchestrator),
		orchestrator.WithLogger(c.logger.With("workflow", domain.WorkflowOrchestrator)),
		orchestrator.WithMetrics(c.metrics),
		orchestrator.WithPublisher(c.events),
		orchestrator.WithMaxQuestions(c.maxQuestions),
	)
	return t, nil
}

// HandleTurn runs one conversational turn.
func (t *Tutor) HandleTurn(ctx context.Context, turn Turn) (resp FinalResponse, err error) {
	err = t.guard.Do(ctx, "orchestrator:"+turn.SessionID, func(ctx context.Context) error {
		var herr error
		resp, herr = t.orch.HandleTurn(ctx, turn)
		return herr
	})
	return resp, err
}

// Refine turns a spoken transcript into a written answer. An empty SessionID starts a new session.
func (t *Tutor) Refine(ctx context.Context, req RefineRequest) (res AnswerResult, err error) {
	if req.SessionID == "" {
		return t.answers.Refine(ctx, req)
	}
	err = t.guard.Do(ctx, "answer:"+req.SessionID, func(ctx context.Context) error {
		var rerr error
		res, rerr = t.answers.Refine(ctx, req)
		return rerr
	})
	return res, err
}

// Edit applies a spoken edit command to a refined answer.
func (t *Tutor) Edit(ctx context.Context, req EditRequest) (res AnswerResult, err error) {
	err = t.guard.Do(ctx, "answer:"+req.SessionID, func(ctx context.Context) error {
		var eerr error
		res, eerr = t.answers.Edit(ctx, req)
		return eerr
	})
	return res, err
}

// Finalize locks an answer against further changes.
func (t *Tutor) Finalize(ctx context.Context, sessionID string) (res AnswerResult, err error) {
	err = t.guard.Do(ctx, "answer:"+sessionID, func(ctx context.Context) error {
		var ferr error
		res, ferr = t.answers.Finalize(ctx, sessionID)
		return ferr
	})
	return res, err
}

// Conversation returns the stored record of a conversation.
func (t *Tutor) Conversation(ctx context.Context, sessionID string) (domain.OrchestratorState, bool, error) {
	return t.orch.Get(ctx, sessionID)
}

// Answer returns the stored record of an answer-formulation session.
func (t *Tutor) Answer(ctx context.Context, sessionID string) (domain.AnswerState, bool, error) {
	return t.answers.Get(ctx, sessionID)
}

// Quiz returns the stored record of a quiz sub-session.
func (t *Tutor) Quiz(ctx context.Context, sessionID string) (domain.QuizState, bool, error) {
	return t.quiz.Get(ctx, sessionID)
}

// QA returns the stored record of a conversational sub-session.
func (t *Tutor) QA(ctx context.Context, sessionID string) (domain.QAState, bool, error) {
	return t.qa.Get(ctx, sessionID)
}

// Stores exposes the checkpoint stores for inspection and cleanup.
func (t *Tutor) Stores() *checkpoint.Stores {
	return t.stores
}
