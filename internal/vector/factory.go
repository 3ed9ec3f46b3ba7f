// Package vector: factory for creating index backends.
package vector

import (
	"fmt"

	"go.uber.org/zap"
)

// IndexType represents the type of vector index backend.
type IndexType string

const (
	// IndexTypeMemory uses in-process exact brute-force search. Good for the
	// current catalog size (<10k vectors).
	IndexTypeMemory IndexType = "memory"
)

// NewIndex creates a vector index of the specified type.
// Supported types: "memory" (default). Remote managed backends plug in here
// behind the same Index interface.
func NewIndex(indexType string, dimensions int, logger *zap.Logger) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		if logger == nil {
			return NewMemoryIndex(dimensions)
		}
		return NewMemoryIndex(dimensions, WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory)", indexType)
	}
}
