// Package cache memoizes query embeddings in front of any memory.Embedder.
// Retrieval embeds every incoming message, and users repeat themselves, so
// a small in-process cache saves provider calls. Hits report zero cost.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/becomeliminal/nim-recall/memory"
)

// Config sizes the cache.
type Config struct {
	// MaxVectors bounds how many embeddings are kept (default 10000).
	MaxVectors int64
}

// Embedder wraps another embedder with a ristretto cache keyed by text.
type Embedder struct {
	next  memory.Embedder
	cache *ristretto.Cache
}

var _ memory.Embedder = (*Embedder)(nil)

// New wraps next.
func New(next memory.Embedder, cfg Config) (*Embedder, error) {
	if cfg.MaxVectors <= 0 {
		cfg.MaxVectors = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxVectors * 10,
		MaxCost:     cfg.MaxVectors,
		BufferItems: 64,
		// Every entry costs 1, so MaxCost counts vectors.
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{next: next, cache: c}, nil
}

// Embed returns the cached vector for text or asks the wrapped embedder.
// Failures are not cached.
func (e *Embedder) Embed(ctx context.Context, text string) (memory.Embedding, error) {
	if v, ok := e.cache.Get(text); ok {
		vec := v.([]float32)
		return memory.Embedding{Vector: append([]float32(nil), vec...)}, nil
	}

	emb, err := e.next.Embed(ctx, text)
	if err != nil {
		return memory.Embedding{}, err
	}
	e.cache.Set(text, append([]float32(nil), emb.Vector...), 1)
	return emb, nil
}

// Dimensions returns the wrapped embedder's size.
func (e *Embedder) Dimensions() int {
	return e.next.Dimensions()
}

// Wait blocks until pending cache writes are visible.
func (e *Embedder) Wait() {
	e.cache.Wait()
}

// Close stops the cache's background goroutines.
func (e *Embedder) Close() {
	e.cache.Close()
}
