package checkpoint

import (
	"context"
	"fmt"

	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/persistence/middleware"
	"github.com/aretw0/lectern/pkg/ports"
)

// Factory opens the store backing one workflow namespace.
type Factory func(ctx context.Context, workflow domain.Workflow) (ports.StateStore, error)

// MemoryFactory gives every namespace its own in-memory store.
func MemoryFactory() Factory {
	return func(context.Context, domain.Workflow) (ports.StateStore, error) {
		return memory.NewStore(), nil
	}
}

// Stores holds one StateStore per workflow namespace.
type Stores struct {
	stores map[domain.Workflow]ports.StateStore
}

// OpenStores opens a store for every workflow and wraps each with mws.
func OpenStores(ctx context.Context, factory Factory, mws ...middleware.Middleware) (*Stores, error) {
	s := &Stores{stores: make(map[domain.Workflow]ports.StateStore)}
	for _, w := range domain.Workflows() {
		store, err := factory(ctx, w)
		if err != nil {
			return nil, fmt.Errorf("open %s store: %w", w, err)
		}
		s.stores[w] = middleware.Chain(store, mws...)
	}
	return s, nil
}

// NewMemoryStores is OpenStores with in-memory backends and no middleware.
func NewMemoryStores() *Stores {
	s, _ := OpenStores(context.Background(), MemoryFactory())
	return s
}

// For returns the store of a namespace.
func (s *Stores) For(w domain.Workflow) ports.StateStore {
	store, ok := s.stores[w]
	if !ok {
		panic(fmt.Sprintf("checkpoint: no store for workflow %q", w))
	}
	return store
}
