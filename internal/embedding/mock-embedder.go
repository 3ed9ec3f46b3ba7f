package embedding

import (
	"context"
	"crypto/sha256"
	"math"

	"github.com/naild/irodori/pkg/utils"
)

// MockEmbedder is a deterministic embedder for tests and local development.
// It validates that the input decodes as an image, then derives a
// unit-normalized vector from the content hash so that identical bytes always
// get an identical embedding.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic unit-normalized embedding derived from the
// image content hash. Undecodable input fails with ErrEmbeddingFailed.
func (e *MockEmbedder) Embed(ctx context.Context, imageBytes []byte) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := decodeImage(imageBytes); err != nil {
		return nil, err
	}
	sum := sha256.Sum256(imageBytes)
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(math.Sin(float64(sum[i%len(sum)]+1)*float64(i+1))*0.1 + 0.01)
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
