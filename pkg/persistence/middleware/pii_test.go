package middleware_test

import (
	"context"
	"testing"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIIMiddleware_Masking(t *testing.T) {
	underlyingStore := NewMockStore()
	// Mask keys containing "email" or "phone"
	secureStore := middleware.NewPIIMiddleware([]string{"email", "phone"})(underlyingStore)

	ctx := context.Background()
	sessionID := "pii-session"
	record := newRecord(sessionID, map[string]any{
		"username":      "jdoe",
		"student_email": "jdoe@example.com",
		"history": []any{
			map[string]any{
				"type": "human",
				"data": map[string]any{
					"content":  "hi",
					"metadata": map[string]any{"phone_number": "555-0100"},
				},
			},
		},
	})

	require.NoError(t, secureStore.Save(ctx, sessionID, record))

	assert.Equal(t, "jdoe@example.com", record.State["student_email"], "caller's record must not be modified")

	stored, err := underlyingStore.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "jdoe", stored.State["username"])
	assert.Equal(t, middleware.Mask, stored.State["student_email"])

	meta := stored.State["history"].([]any)[0].(map[string]any)["data"].(map[string]any)["metadata"].(map[string]any)
	assert.Equal(t, middleware.Mask, meta["phone_number"], "keys inside lists are masked too")
}

func TestChain_OutermostFirst(t *testing.T) {
	base := memory.NewStore()
	key := generateKey(t)
	store := middleware.Chain(base,
		middleware.NewPIIMiddleware([]string{"secret"}),
		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
	)

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "s1", newRecord("s1", map[string]any{"secret": "x", "open": "y"})))

	raw, err := base.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Contains(t, raw.State, middleware.EncryptedKey)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.State["secret"], "masking runs before encryption")
	assert.Equal(t, "y", loaded.State["open"])
}
