package ports

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	newRecord := func(id string) *domain.Checkpoint {
		return &domain.Checkpoint{
			Workflow:  domain.WorkflowQA,
			SessionID: id,
			Version:   domain.CheckpointVersion,
			SavedAt:   time.Now().UTC().Truncate(time.Millisecond),
			State: map[string]any{
				"foo":   "bar",
				"count": json.Number("42"),
				"nested": map[string]any{
					"items": []any{"a", json.Number("1.5"), true, nil},
				},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		record := newRecord(sessionID)

		err := store.Save(ctx, sessionID, record)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, record.Workflow, loaded.Workflow)
		assert.Equal(t, record.SessionID, loaded.SessionID)
		assert.Equal(t, record.Version, loaded.Version)
		assert.True(t, record.SavedAt.Equal(loaded.SavedAt), "saved_at should survive")
		// Durable values must come back exactly, numbers included.
		assert.Equal(t, record.State, loaded.State)
	})

	t.Run("Last Write Wins", func(t *testing.T) {
		first := newRecord(sessionID)
		second := newRecord(sessionID)
		second.State = map[string]any{"foo": "baz"}

		require.NoError(t, store.Save(ctx, sessionID, first))
		require.NoError(t, store.Save(ctx, sessionID, second))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, second.State, loaded.State, "no field of the first write may survive")
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, newRecord(sessionID))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		assert.NoError(t, store.Delete(ctx, sessionID), "Deleting twice should be a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, newRecord(id1))
		_ = store.Save(ctx, id2, newRecord(id2))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
