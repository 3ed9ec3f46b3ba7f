// Package storage defines the persistence interface for catalog image metadata.
package storage

import (
	"context"

	"github.com/naild/irodori/internal/models"
)

// MetadataStore persists per-image records: the stored LAB histogram and the
// display fields used to enrich search results.
type MetadataStore interface {
	// Upsert inserts or overwrites the record for rec.Filename.
	Upsert(ctx context.Context, rec *models.CatalogRecord) error
	// Get returns the record for filename, or an error if absent.
	Get(ctx context.Context, filename string) (*models.CatalogRecord, error)
	// BatchGet returns the records found for the given filenames, keyed by
	// filename. Missing filenames are simply absent from the map.
	BatchGet(ctx context.Context, filenames []string) (map[string]*models.CatalogRecord, error)
	// Delete removes the record for filename. Missing records are a no-op.
	Delete(ctx context.Context, filename string) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)

	Close() error
}
