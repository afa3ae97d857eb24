package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/codec"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/ports"
)

// Option configures a Checkpointer.
type Option func(*config)

type config struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// WithLogger sets the logger used for save retries.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records save outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithClock overrides the time stamped on saved records.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		c.now = now
	}
}

// Checkpointer persists state of type S under one workflow namespace.
type Checkpointer[S any] struct {
	workflow domain.Workflow
	store    ports.StateStore
	cfg      config
}

// New creates a Checkpointer for workflow backed by store.
func New[S any](workflow domain.Workflow, store ports.StateStore, opts ...Option) *Checkpointer[S] {
	cfg := config{
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Checkpointer[S]{workflow: workflow, store: store, cfg: cfg}
}

// Workflow returns the namespace this checkpointer writes to.
func (c *Checkpointer[S]) Workflow() domain.Workflow {
	return c.workflow
}

// Save writes state for sessionID. The first attempt converts strictly; on any
// failure a single retry is made with forced conversion.
func (c *Checkpointer[S]) Save(ctx context.Context, sessionID string, state *S) error {
	err := c.attempt(ctx, sessionID, func() (any, error) { return codec.ToDurable(state) })
	if err == nil {
		c.cfg.metrics.ObserveCheckpointSave(string(c.workflow), observability.SaveOK)
		return nil
	}

	c.cfg.logger.Warn("checkpoint save failed, retrying with forced conversion",
		"workflow", c.workflow, "session_id", sessionID, "error", err)

	err = c.attempt(ctx, sessionID, func() (any, error) { return codec.Force(state), nil })
	if err != nil {
		c.cfg.metrics.ObserveCheckpointSave(string(c.workflow), observability.SaveFailed)
		c.cfg.logger.Error("checkpoint save failed after forced conversion",
			"workflow", c.workflow, "session_id", sessionID, "error", err)
		return &domain.CheckpointError{Workflow: c.workflow, SessionID: sessionID, Op: "save", Err: err}
	}

	c.cfg.metrics.ObserveCheckpointSave(string(c.workflow), observability.SaveForced)
	return nil
}

func (c *Checkpointer[S]) attempt(ctx context.Context, sessionID string, convert func() (any, error)) error {
	durable, err := convert()
	if err != nil {
		return err
	}
	state, ok := durable.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: state must convert to an object, got %T", codec.ErrUnsupported, durable)
	}
	record := &domain.Checkpoint{
		Workflow:  c.workflow,
		SessionID: sessionID,
		Version:   domain.CheckpointVersion,
		SavedAt:   c.cfg.now().UTC(),
		State:     state,
	}
	return c.store.Save(ctx, sessionID, record)
}

// Load restores the state for sessionID. A missing session yields (zero, false, nil).
func (c *Checkpointer[S]) Load(ctx context.Context, sessionID string) (S, bool, error) {
	var state S

	record, err := c.store.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return state, false, nil
	}
	if err != nil {
		return state, false, &domain.CheckpointError{Workflow: c.workflow, SessionID: sessionID, Op: "load", Err: err}
	}

	if record.Version > domain.CheckpointVersion {
		return state, false, &domain.CheckpointError{
			Workflow:  c.workflow,
			SessionID: sessionID,
			Op:        "load",
			Err:       fmt.Errorf("record version %d is newer than supported %d", record.Version, domain.CheckpointVersion),
		}
	}

	if err := codec.FromDurable(record.State, &state); err != nil {
		return state, false, &domain.CheckpointError{Workflow: c.workflow, SessionID: sessionID, Op: "decode", Err: err}
	}
	return state, true, nil
}

// Delete removes the state for sessionID.
func (c *Checkpointer[S]) Delete(ctx context.Context, sessionID string) error {
	if err := c.store.Delete(ctx, sessionID); err != nil {
		return &domain.CheckpointError{Workflow: c.workflow, SessionID: sessionID, Op: "delete", Err: err}
	}
	return nil
}
