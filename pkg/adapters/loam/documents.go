// Package loam resolves study documents stored as Markdown/JSON files in a Loam repository.
package loam

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/ports"
	"github.com/aretw0/loam"
)

// Documents adapts a Loam repository to ports.DocumentSource.
type Documents struct {
	Repo *loam.TypedRepository[DocumentMetadata]
}

var _ ports.DocumentSource = (*Documents)(nil)

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DocumentMetadata]) *Documents {
	return &Documents{Repo: repo}
}

// Open initializes a read-only repository at dir.
func Open(dir string) (*Documents, error) {
	absPath, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	// Strict mode keeps numeric frontmatter as json.Number; read-only avoids
	// Loam's sandbox behavior since documents are never written here.
	repo, err := loam.Init(absPath,
		loam.WithStrict(true),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[DocumentMetadata](repo)), nil
}

// Text returns the narrative of a document: its title (if any) followed by its body.
// Loam resolves "intro" to intro.md or intro.json.
func (d *Documents) Text(ctx context.Context, ref string) (string, error) {
	ref = trimExtension(strings.TrimSpace(ref))
	if ref == "" {
		return "", domain.ErrDocumentNotFound
	}

	doc, err := d.Repo.Get(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrDocumentNotFound, ref, err)
	}

	body := strings.TrimSpace(doc.Content)
	if title := strings.TrimSpace(doc.Data.Title); title != "" {
		if body == "" {
			return title, nil
		}
		return title + "\n\n" + body, nil
	}
	return body, nil
}

// List returns the ids of every document, normalized without extension.
func (d *Documents) List(ctx context.Context) ([]string, error) {
	docs, err := d.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		rawID := doc.Data.ID
		if rawID == "" {
			rawID = doc.ID
		}
		id := trimExtension(rawID)

		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
