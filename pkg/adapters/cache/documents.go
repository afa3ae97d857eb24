// Package cache memoizes document lookups in front of a slower DocumentSource.
package cache

import (
	"context"
	"time"

	"github.com/aretw0/lectern/pkg/ports"
	gocache "github.com/patrickmn/go-cache"
)

// Documents wraps a DocumentSource with an expiring in-process cache.
// Only successful lookups are cached.
type Documents struct {
	next  ports.DocumentSource
	cache *gocache.Cache
}

var _ ports.DocumentSource = (*Documents)(nil)

// NewDocuments caches entries of next for ttl.
func NewDocuments(next ports.DocumentSource, ttl time.Duration) *Documents {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Documents{
		next:  next,
		cache: gocache.New(ttl, 10*time.Minute),
	}
}

func (d *Documents) Text(ctx context.Context, ref string) (string, error) {
	if text, ok := d.cache.Get(ref); ok {
		return text.(string), nil
	}
	text, err := d.next.Text(ctx, ref)
	if err != nil {
		return "", err
	}
	d.cache.SetDefault(ref, text)
	return text, nil
}

// Invalidate drops a cached document.
func (d *Documents) Invalidate(ref string) {
	d.cache.Delete(ref)
}
