// Package metasearch provides a Bleve text index over catalog image metadata
// (artist, style, color tags, filename). It answers "french tip pink" style
// queries without touching the embedding pipeline.
package metasearch

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/naild/irodori/internal/models"
)

// metadataDoc is the shape stored in Bleve. The document ID is the catalog
// key (base filename), so deletes and re-ingests hit the same entry.
type metadataDoc struct {
	Filename string `json:"filename"`
	Artist   string `json:"artist"`
	Style    string `json:"style"`
	Colors   string `json:"colors"`
}

// Result is one metadata search hit.
type Result struct {
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// Index wraps a Bleve index over catalog metadata.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so incremental ingestion does not force a full rebuild;
// remove the directory to force one after a mapping change.
func NewIndex(path string) (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "ombre"
	// matches exactly; stemming mangles style names and artist handles.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("artist", textFieldMapping)
	docMapping.AddFieldMappingsAt("style", textFieldMapping)
	docMapping.AddFieldMappingsAt("colors", textFieldMapping)
	docMapping.AddFieldMappingsAt("filename", textFieldMapping)
	im.AddDocumentMapping("image", docMapping)
	im.DefaultType = "image"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open metadata index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata index: %w", err)
	}
	return &Index{index: index}, nil
}

// Index indexes the metadata for one catalog image, keyed by filename.
func (i *Index) Index(ctx context.Context, filename string, meta *models.ImageMetadata) error {
	doc := metadataDoc{Filename: filename}
	if meta != nil {
		doc.Artist = meta.Artist
		doc.Style = meta.Style
		doc.Colors = meta.Colors
	}
	return i.index.Index(filename, doc)
}

// Search runs a match query over all metadata fields and returns up to limit
// hits, best first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("metadata search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for n, hit := range results.Hits {
		out[n] = &Result{Filename: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// SearchField runs a match query restricted to one metadata field
// (artist, style, colors, filename).
func (i *Index) SearchField(ctx context.Context, field, query string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField(field)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("metadata field search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for n, hit := range results.Hits {
		out[n] = &Result{Filename: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// Delete removes an image's metadata from the index.
func (i *Index) Delete(ctx context.Context, filename string) error {
	return i.index.Delete(filename)
}

// DocCount returns the number of indexed images.
func (i *Index) DocCount() (uint64, error) {
	return i.index.DocCount()
}

// Close closes the underlying Bleve index.
func (i *Index) Close() error {
	return i.index.Close()
}
