// Package sqlstore holds what the SQL checkpoint backends share.
package sqlstore

import (
	"fmt"
	"regexp"
	"time"

	"github.com/aretw0/lectern/pkg/codec"
	"github.com/aretw0/lectern/pkg/domain"
)

var namespacePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,47}$`)

// TableName maps a namespace to its own table, e.g. "quiz" -> "checkpoints_quiz".
func TableName(namespace string) (string, error) {
	if !namespacePattern.MatchString(namespace) {
		return "", fmt.Errorf("invalid checkpoint namespace %q", namespace)
	}
	return "checkpoints_" + namespace, nil
}

// Row is the column layout shared by the SQL backends.
type Row struct {
	SessionID string
	Workflow  string
	Version   int
	SavedAt   string
	State     string
}

// ToRow flattens a record. State is stored as JSON text so numbers keep
// their exact durable spelling.
func ToRow(sessionID string, record *domain.Checkpoint) (Row, error) {
	state, err := encodeState(record.State)
	if err != nil {
		return Row{}, err
	}
	return Row{
		SessionID: sessionID,
		Workflow:  string(record.Workflow),
		Version:   record.Version,
		SavedAt:   record.SavedAt.UTC().Format(time.RFC3339Nano),
		State:     state,
	}, nil
}

// FromRow rebuilds a record.
func FromRow(r Row) (*domain.Checkpoint, error) {
	savedAt, err := time.Parse(time.RFC3339Nano, r.SavedAt)
	if err != nil {
		return nil, fmt.Errorf("parse saved_at: %w", err)
	}
	record := &domain.Checkpoint{
		Workflow:  domain.Workflow(r.Workflow),
		SessionID: r.SessionID,
		Version:   r.Version,
		SavedAt:   savedAt,
	}
	if err := codec.DecodeJSON([]byte(r.State), &record.State); err != nil {
		return nil, fmt.Errorf("unmarshal state: %w", err)
	}
	return record, nil
}
