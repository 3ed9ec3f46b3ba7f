// Package imageid derives the stable catalog key for an image file. The
// metadata store, vector index, and metadata text index all share this key,
// so ingesting the same file twice updates the same entry everywhere.
package imageid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// Key returns the catalog key for an image file path: the cleaned base
// filename. Same path always yields the same key, so re-ingestion is an
// update, not a duplicate.
func Key(path string) string {
	return filepath.Base(filepath.Clean(path))
}

// ContentHash returns a hex sha256 of the image bytes. Ingestion stores it
// with the catalog record and skips files whose content has not changed.
func ContentHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
