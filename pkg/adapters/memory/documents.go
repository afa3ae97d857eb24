package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/aretw0/lectern/pkg/domain"
)

// Documents implements ports.DocumentSource over an in-memory map.
type Documents struct {
	mu   sync.RWMutex
	docs map[string]string
}

// NewDocuments creates a source holding docs keyed by reference.
func NewDocuments(docs map[string]string) *Documents {
	d := &Documents{docs: make(map[string]string, len(docs))}
	for ref, text := range docs {
		d.docs[ref] = text
	}
	return d
}

// Put adds or replaces a document.
func (d *Documents) Put(ref, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[ref] = text
}

// Text returns the document for ref.
func (d *Documents) Text(ctx context.Context, ref string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	text, ok := d.docs[strings.TrimSpace(ref)]
	if !ok {
		return "", domain.ErrDocumentNotFound
	}
	return text, nil
}
