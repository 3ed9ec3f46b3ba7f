// Package ingest builds catalog entries from image files: LAB histogram,
// CLIP embedding, metadata row, and text-index entry, all keyed by the
// catalog filename.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/naild/irodori/internal/colorhist"
	"github.com/naild/irodori/internal/config"
	"github.com/naild/irodori/internal/embedding"
	"github.com/naild/irodori/internal/imageid"
	"github.com/naild/irodori/internal/metasearch"
	"github.com/naild/irodori/internal/models"
	"github.com/naild/irodori/internal/storage"
	"github.com/naild/irodori/internal/vector"
)

const contentHashKey = "content_hash"

// Pipeline ingests images into all three stores. The histogram is extracted
// before the embedding so a malformed image fails fast, before the expensive
// model call.
type Pipeline struct {
	store    storage.MetadataStore
	embedder embedding.Embedder
	index    vector.Index
	meta     *metasearch.Index
	cfg      *config.IngestConfig
	bins     int
	logger   *zap.Logger
}

// NewPipeline creates an ingestion pipeline. meta may be nil to skip the
// metadata text index.
func NewPipeline(
	store storage.MetadataStore,
	embedder embedding.Embedder,
	index vector.Index,
	meta *metasearch.Index,
	cfg *config.IngestConfig,
	histogramBins int,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:    store,
		embedder: embedder,
		index:    index,
		meta:     meta,
		cfg:      cfg,
		bins:     histogramBins,
		logger:   logger,
	}
}

// IngestBytes ingests one image from memory under the given catalog filename.
// Returns false when the content hash matches the stored record and nothing
// was done. A failure in any required stage leaves the stores untouched for
// this image.
func (p *Pipeline) IngestBytes(ctx context.Context, filename string, data []byte, meta *models.ImageMetadata) (bool, error) {
	hash := imageid.ContentHash(data)

	existing, err := p.store.Get(ctx, filename)
	if err == nil && existing.Metadata != nil && existing.Metadata.Extra[contentHashKey] == hash {
		p.logger.Debug("image unchanged, skipping", zap.String("filename", filename))
		return false, nil
	}

	hist, err := colorhist.Extract(data, p.bins)
	if err != nil {
		return false, fmt.Errorf("extract histogram for %s: %w", filename, err)
	}
	histJSON, err := colorhist.ToJSON(hist)
	if err != nil {
		return false, fmt.Errorf("encode histogram for %s: %w", filename, err)
	}

	emb, err := p.embedder.Embed(ctx, data)
	if err != nil {
		return false, fmt.Errorf("embed %s: %w", filename, err)
	}

	if meta == nil {
		meta = &models.ImageMetadata{}
	} else {
		meta = meta.Clone()
	}
	meta.Filename = filename
	if meta.Extra == nil {
		meta.Extra = make(map[string]string)
	}
	meta.Extra[contentHashKey] = hash

	rec := &models.CatalogRecord{
		Filename:     filename,
		LabHistogram: histJSON,
		Metadata:     meta,
	}
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	}
	if err := p.store.Upsert(ctx, rec); err != nil {
		return false, fmt.Errorf("store %s: %w", filename, err)
	}

	if err := p.index.Upsert(ctx, &models.IndexedItem{
		ID:        filename,
		Embedding: emb,
		Metadata:  meta,
	}); err != nil {
		return false, fmt.Errorf("index %s: %w", filename, err)
	}

	// Text index is best-effort: a miss here degrades metadata search only.
	if p.meta != nil {
		if err := p.meta.Index(ctx, filename, meta); err != nil {
			p.logger.Warn("metadata index failed", zap.String("filename", filename), zap.Error(err))
		}
	}

	p.logger.Debug("image ingested", zap.String("filename", filename))
	return true, nil
}

// IngestFile reads path and ingests it under its base filename.
func (p *Pipeline) IngestFile(ctx context.Context, path string, meta *models.ImageMetadata) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", path, err)
	}
	return p.IngestBytes(ctx, imageid.Key(path), data, meta)
}

// Remove deletes an image from every store. Per-store failures are combined
// so one failing store does not leave the others stale.
func (p *Pipeline) Remove(ctx context.Context, path string) error {
	key := imageid.Key(path)
	var errs error
	if err := p.store.Delete(ctx, key); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("metadata store: %w", err))
	}
	if err := p.index.Delete(ctx, key); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("vector index: %w", err))
	}
	if p.meta != nil {
		if err := p.meta.Delete(ctx, key); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("metadata index: %w", err))
		}
	}
	if errs != nil {
		return fmt.Errorf("remove %s: %w", key, errs)
	}
	p.logger.Debug("image removed", zap.String("filename", key))
	return nil
}

// matchExtension reports whether path carries one of the configured image
// extensions. Empty config matches everything.
func matchExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range extensions {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
