package ports

import (
	"context"

	"github.com/aretw0/lectern/pkg/domain"
)

// Generator is the generation-model capability.
type Generator interface {
	// Generate returns the raw model text. Structured callers parse and
	// validate the text themselves.
	Generate(ctx context.Context, prompt domain.Prompt) (string, error)
}

// DocumentSource resolves a document reference into a plain-text narrative.
type DocumentSource interface {
	// Text returns the narrative for ref, or domain.ErrDocumentNotFound.
	Text(ctx context.Context, ref string) (string, error)
}

// EventPublisher delivers monitoring events. Delivery is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}
