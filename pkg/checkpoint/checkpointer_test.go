package checkpoint_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/aretw0/lectern/internal/adapters/file"
	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/checkpoint"
	"github.com/aretw0/lectern/pkg/codec"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/observability"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// flakyStore fails the first n saves.
type flakyStore struct {
	ports.StateStore
	failures int
	saves    []*domain.Checkpoint
}

var errDisk = errors.New("disk unavailable")

func (s *flakyStore) Save(ctx context.Context, id string, record *domain.Checkpoint) error {
	s.saves = append(s.saves, record)
	if s.failures > 0 {
		s.failures--
		return errDisk
	}
	return s.StateStore.Save(ctx, id, record)
}

type withCallback struct {
	Name     string `json:"name"`
	Callback func() `json:"callback"`
}

func TestCheckpointer_RoundTripQuizState(t *testing.T) {
	ctx := context.Background()
	cp := checkpoint.New[domain.QuizState](domain.WorkflowQuiz, memory.NewStore(), checkpoint.WithClock(func() time.Time { return fixedNow }))

	state := domain.NewQuizState("quiz:s1:intro:ab12cd34", "intro", "Go has goroutines.", 3, fixedNow)
	require.NoError(t, state.Transition(domain.QuizGeneratingQuestion, fixedNow))
	state.CurrentQuestion = &domain.QuizQuestion{Text: "What runs concurrently?", Options: []string{"goroutines", "macros"}, CorrectIndex: 0}

	require.NoError(t, cp.Save(ctx, state.SessionID, &state))

	loaded, ok, err := cp.Load(ctx, state.SessionID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, loaded)
}

func TestCheckpointer_LoadMissing(t *testing.T) {
	cp := checkpoint.New[domain.AnswerState](domain.WorkflowAnswer, memory.NewStore())

	state, ok, err := cp.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, domain.AnswerState{}, state)
}

func TestCheckpointer_ForcesUnconvertibleState(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	store := memory.NewStore()
	cp := checkpoint.New[withCallback](domain.WorkflowQA, store, checkpoint.WithLogger(logging.NewWithWriter(&logs, slog.LevelDebug)))

	require.NoError(t, cp.Save(ctx, "s1", &withCallback{Name: "x", Callback: func() {}}))

	record, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "x", record.State["name"])
	marker, ok := record.State["callback"].(map[string]any)
	require.True(t, ok, "callback should be replaced by a marker")
	assert.Contains(t, marker, codec.UnserializableKey)
	assert.Contains(t, logs.String(), "retrying with forced conversion")
}

func TestCheckpointer_RetriesOnceAfterStoreFailure(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	store := &flakyStore{StateStore: memory.NewStore(), failures: 1}
	cp := checkpoint.New[domain.QAState](domain.WorkflowQA, store, checkpoint.WithMetrics(metrics))

	require.NoError(t, cp.Save(ctx, "qa:s1", &domain.QAState{SessionID: "qa:s1", Turns: 2}))

	assert.Len(t, store.saves, 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CheckpointSaves.WithLabelValues("qa", observability.SaveForced)))

	loaded, ok, err := cp.Load(ctx, "qa:s1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, loaded.Turns)
}

func TestCheckpointer_SurfacesSecondFailure(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{StateStore: memory.NewStore(), failures: 2}
	cp := checkpoint.New[domain.QAState](domain.WorkflowQA, store)

	err := cp.Save(ctx, "qa:s1", &domain.QAState{SessionID: "qa:s1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCheckpoint)
	assert.ErrorIs(t, err, errDisk)

	var cpErr *domain.CheckpointError
	require.ErrorAs(t, err, &cpErr)
	assert.Equal(t, domain.WorkflowQA, cpErr.Workflow)
	assert.Equal(t, "save", cpErr.Op)
	assert.Len(t, store.saves, 2, "exactly one retry")
}

func TestCheckpointer_RejectsNewerVersion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, "s1", &domain.Checkpoint{
		Workflow: domain.WorkflowQA, SessionID: "s1", Version: domain.CheckpointVersion + 1, State: map[string]any{},
	}))

	_, _, err := checkpoint.New[domain.QAState](domain.WorkflowQA, store).Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrCheckpoint)
}

func TestStores_NamespacesAreIsolated(t *testing.T) {
	ctx := context.Background()
	stores := checkpoint.NewMemoryStores()

	require.NoError(t, stores.For(domain.WorkflowQuiz).Save(ctx, "s1", &domain.Checkpoint{Workflow: domain.WorkflowQuiz, SessionID: "s1"}))

	for _, w := range []domain.Workflow{domain.WorkflowOrchestrator, domain.WorkflowQA, domain.WorkflowAnswer} {
		_, err := stores.For(w).Load(ctx, "s1")
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, w)
	}
}

func TestStores_FactoryError(t *testing.T) {
	boom := errors.New("boom")
	_, err := checkpoint.OpenStores(context.Background(), func(context.Context, domain.Workflow) (ports.StateStore, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCheckpointer_RoundTripStoredFailure(t *testing.T) {
	failure := domain.NewFailure(domain.KindGeneration, domain.CodeModelFailed, "model unavailable")
	clock := checkpoint.WithClock(func() time.Time { return fixedNow })

	backends := map[string]func(t *testing.T) ports.StateStore{
		"memory": func(*testing.T) ports.StateStore { return memory.NewStore() },
		"file":   func(t *testing.T) ports.StateStore { return file.New(t.TempDir()) },
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			t.Run("orchestrator", func(t *testing.T) {
				cp := checkpoint.New[domain.OrchestratorState](domain.WorkflowOrchestrator, store, clock)
				state := domain.NewOrchestratorState("s1", fixedNow)
				state.Error = failure
				state.Turns = 1

				require.NoError(t, cp.Save(ctx, "s1", &state))
				loaded, ok, err := cp.Load(ctx, "s1")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, state, loaded)
			})

			t.Run("quiz", func(t *testing.T) {
				cp := checkpoint.New[domain.QuizState](domain.WorkflowQuiz, store, clock)
				state := domain.NewQuizState("q1", "intro", "Go has goroutines.", 3, fixedNow)
				state.Fail(domain.NewFailure(domain.KindMalformedOutput, domain.CodeMalformedOutput, "not json"), fixedNow)

				require.NoError(t, cp.Save(ctx, "q1", &state))
				loaded, ok, err := cp.Load(ctx, "q1")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, state, loaded)
				assert.Equal(t, domain.CodeMalformedOutput, loaded.Error.Code)
			})

			t.Run("answer", func(t *testing.T) {
				cp := checkpoint.New[domain.AnswerState](domain.WorkflowAnswer, store, clock)
				state := domain.NewAnswerState("a1", "Why?", fixedNow)
				state.Fail(domain.NewFailure(domain.KindValidation, domain.CodeTranscriptShort, "too short"), fixedNow)

				require.NoError(t, cp.Save(ctx, "a1", &state))
				loaded, ok, err := cp.Load(ctx, "a1")
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, state, loaded)
				assert.Equal(t, domain.AnswerError, loaded.Status)
			})
		})
	}
}
