package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	record := &domain.Checkpoint{
		Workflow:  domain.WorkflowQuiz,
		SessionID: "s1",
		State:     map[string]any{"history": []any{map[string]any{"q": "one"}}},
	}
	require.NoError(t, store.Save(ctx, "s1", record))

	// Mutating the caller's copy after Save must not leak into the store.
	record.State["history"].([]any)[0].(map[string]any)["q"] = "changed"

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "one", loaded.State["history"].([]any)[0].(map[string]any)["q"])

	// Nor may mutating a loaded copy.
	loaded.State["extra"] = true
	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, again.State, "extra")
}
