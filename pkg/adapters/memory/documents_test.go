package memory_test

import (
	"context"
	"testing"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocuments(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocuments(map[string]string{"intro": "Go is compiled."})

	text, err := docs.Text(ctx, "intro")
	require.NoError(t, err)
	assert.Equal(t, "Go is compiled.", text)

	_, err = docs.Text(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	docs.Put("missing", "now here")
	text, err = docs.Text(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, "now here", text)
}
