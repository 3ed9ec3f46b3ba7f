// Package models defines core data structures for catalog items, queries, and search results.
package models

import "time"

// ImageMetadata carries the known display fields for a catalog image plus an
// explicit side-map for forward-compatible extra data.
type ImageMetadata struct {
	Filename  string            `json:"filename"`
	PublicURL string            `json:"public_url,omitempty"`
	Artist    string            `json:"artist,omitempty"`
	Style     string            `json:"style,omitempty"`
	Colors    string            `json:"colors,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Field returns the value for a named metadata field, checking known fields
// first and falling back to Extra.
func (m *ImageMetadata) Field(key string) (string, bool) {
	switch key {
	case "filename":
		return m.Filename, m.Filename != ""
	case "public_url":
		return m.PublicURL, m.PublicURL != ""
	case "artist":
		return m.Artist, m.Artist != ""
	case "style":
		return m.Style, m.Style != ""
	case "colors":
		return m.Colors, m.Colors != ""
	}
	v, ok := m.Extra[key]
	return v, ok
}

// Matches reports whether every key/value pair in filter equals the
// corresponding metadata field. A nil or empty filter matches everything.
func (m *ImageMetadata) Matches(filter map[string]string) bool {
	for key, want := range filter {
		got, ok := m.Field(key)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so that index-held metadata cannot be mutated by callers.
func (m *ImageMetadata) Clone() *ImageMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Extra != nil {
		c.Extra = make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// IndexedItem is a catalog entry owned by the vector index: a unit-normalized
// embedding plus metadata, keyed by id. Upserting the same id overwrites.
type IndexedItem struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"-"`
	Metadata  *ImageMetadata `json:"metadata,omitempty"`
}

// CatalogRecord is a metadata-store row for one catalog image: the stored LAB
// histogram (JSON) alongside display fields.
type CatalogRecord struct {
	Filename     string         `json:"filename"`
	LabHistogram string         `json:"lab_histogram,omitempty"`
	Metadata     *ImageMetadata `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
