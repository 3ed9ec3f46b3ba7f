package embedding

import (
	"context"
	"fmt"
	"sync"
)

// LazyEmbedder defers construction of an expensive embedder (model load,
// warm-up) until first use. Concurrent first uses are guarded so exactly one
// initialization executes while other callers block until it is ready.
type LazyEmbedder struct {
	dimensions int
	build      func() (Embedder, error)
	once       sync.Once
	inner      Embedder
	err        error
}

// NewLazyEmbedder wraps build so it runs at most once, on first Embed.
// dimensions is the expected output dimension, reported without forcing a load.
func NewLazyEmbedder(dimensions int, build func() (Embedder, error)) *LazyEmbedder {
	return &LazyEmbedder{dimensions: dimensions, build: build}
}

func (l *LazyEmbedder) ensure() error {
	l.once.Do(func() {
		l.inner, l.err = l.build()
		if l.err == nil && l.inner.Dimensions() != l.dimensions {
			l.err = fmt.Errorf("embedder dimension mismatch: built %d, expected %d",
				l.inner.Dimensions(), l.dimensions)
		}
	})
	return l.err
}

// Embed initializes the underlying embedder on first call and delegates.
func (l *LazyEmbedder) Embed(ctx context.Context, imageBytes []byte) ([]float32, error) {
	if err := l.ensure(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return l.inner.Embed(ctx, imageBytes)
}

// Dimensions returns the configured embedding dimension.
func (l *LazyEmbedder) Dimensions() int {
	return l.dimensions
}

// Close releases the underlying embedder if it was ever initialized.
func (l *LazyEmbedder) Close() error {
	if l.inner != nil {
		return l.inner.Close()
	}
	return nil
}
