package sqlstore_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/aretw0/lectern/internal/adapters/sqlstore"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableName(t *testing.T) {
	name, err := sqlstore.TableName("quiz")
	require.NoError(t, err)
	assert.Equal(t, "checkpoints_quiz", name)

	for _, bad := range []string{"", "Quiz", "quiz; DROP TABLE x", "1abc", "a-b"} {
		_, err := sqlstore.TableName(bad)
		assert.Error(t, err, bad)
	}
}

func TestRowRoundTrip(t *testing.T) {
	savedAt := time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)
	record := &domain.Checkpoint{
		Workflow:  domain.WorkflowAnswer,
		SessionID: "s1",
		Version:   domain.CheckpointVersion,
		SavedAt:   savedAt,
		State:     map[string]any{"score": json.Number("1e+21"), "ok": true},
	}

	row, err := sqlstore.ToRow("s1", record)
	require.NoError(t, err)

	back, err := sqlstore.FromRow(row)
	require.NoError(t, err)
	assert.Equal(t, record, back)
}
