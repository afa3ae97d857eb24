package ports

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// StateStore persists checkpoint records for a single workflow namespace.
// This is what makes every workflow resumable by session id after a restart.
type StateStore interface {
	// Save writes the record for a session, replacing any previous one (last write wins).
	Save(ctx context.Context, sessionID string, record *domain.Checkpoint) error

	// Load retrieves the record for a session.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error)

	// Delete removes the record for a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the ids of every stored session.
	List(ctx context.Context) ([]string, error)
}
