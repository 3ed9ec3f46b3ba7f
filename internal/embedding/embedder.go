// Package embedding produces unit-normalized image embeddings for
// nearest-neighbor search, with an ONNX CLIP backend and caching.
package embedding

import (
	"context"
	"errors"
)

// ErrEmbeddingFailed indicates the embedding backend could not produce a
// vector (undecodable input or model failure). Terminal for the request.
var ErrEmbeddingFailed = errors.New("embedding failed")

// Embedder produces vector embeddings for raw image bytes. Implementations
// must return unit-normalized vectors of a fixed dimension.
type Embedder interface {
	Embed(ctx context.Context, imageBytes []byte) ([]float32, error)
	Dimensions() int
	Close() error
}
