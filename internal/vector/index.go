// Package vector provides the nearest-neighbor index abstraction over catalog
// embeddings and an in-process exact backend.
package vector

import (
	"context"
	"errors"

	"github.com/naild/irodori/internal/models"
)

// ErrIndexUnavailable indicates the index backend cannot be reached or used.
// Terminal for the current request, possibly transient for the caller.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Index defines vector storage and similarity search over indexed catalog items.
// Scores are cosine similarity via inner product on unit-normalized vectors.
// Backends must provide approximate-nearest-neighbor correctness; bit-exact
// ordering across backends is not part of the contract.
type Index interface {
	// Upsert stores an item, overwriting any existing item with the same id.
	Upsert(ctx context.Context, item *models.IndexedItem) error
	// BatchUpsert stores items one by one; per-item failures are logged and
	// skipped, never aborting the batch. Returns the number stored.
	BatchUpsert(ctx context.Context, items []*models.IndexedItem) (int, error)
	// Query returns up to topK hits sorted descending by score.
	Query(ctx context.Context, query []float32, topK int, opts *QueryOptions) ([]*Result, error)
	// Delete removes an item by id. Deleting a missing id is a no-op.
	Delete(ctx context.Context, id string) error
	// Stats reports the current index shape.
	Stats() Stats
	Save(path string) error
	Load(path string) error
	Close() error
}

// QueryOptions are the optional knobs for Query. A SimilarityThreshold > 0
// filters candidates below it, subject to the fallback rule (see Query
// implementations); MetadataFilter keeps only items whose metadata matches
// every key/value pair.
type QueryOptions struct {
	SimilarityThreshold float64
	MetadataFilter      map[string]string
}

// Result is a single vector search hit.
type Result struct {
	ID       string
	Score    float64
	Metadata *models.ImageMetadata
}

// Stats describes the index contents.
type Stats struct {
	Count     int     `json:"count"`
	Dimension int     `json:"dimension"`
	Fullness  float64 `json:"fullness"`
}
