package middleware_test

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
// It keeps the pointers it is given so tests can see exactly what was written.
type MockStore struct {
	data map[string]*domain.Checkpoint
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Checkpoint),
	}
}

func (s *MockStore) Save(ctx context.Context, sessionID string, record *domain.Checkpoint) error {
	s.data[sessionID] = record
	return nil
}

func (s *MockStore) Load(ctx context.Context, sessionID string) (*domain.Checkpoint, error) {
	record, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return record, nil
}

func (s *MockStore) Delete(ctx context.Context, sessionID string) error {
	delete(s.data, sessionID)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.StateStore = (*MockStore)(nil)

func newRecord(sessionID string, state map[string]any) *domain.Checkpoint {
	return &domain.Checkpoint{
		Workflow:  domain.WorkflowAnswer,
		SessionID: sessionID,
		Version:   domain.CheckpointVersion,
		State:     state,
	}
}
