// Package storage: SQLite implementation of MetadataStore.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/naild/irodori/internal/models"
)

// SQLiteStore implements MetadataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS catalog_images (
		filename TEXT PRIMARY KEY,
		lab_histogram TEXT,
		public_url TEXT,
		artist TEXT,
		style TEXT,
		colors TEXT,
		extra TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_catalog_images_created_at ON catalog_images(created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert inserts or overwrites the record for rec.Filename.
func (s *SQLiteStore) Upsert(ctx context.Context, rec *models.CatalogRecord) error {
	if rec == nil || rec.Filename == "" {
		return fmt.Errorf("record must have a filename")
	}
	meta := rec.Metadata
	if meta == nil {
		meta = &models.ImageMetadata{Filename: rec.Filename}
	}
	extraJSON, err := json.Marshal(meta.Extra)
	if err != nil {
		return fmt.Errorf("failed to marshal extra metadata: %w", err)
	}

	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO catalog_images (filename, lab_histogram, public_url, artist, style, colors, extra, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(filename) DO UPDATE SET
			lab_histogram = excluded.lab_histogram,
			public_url = excluded.public_url,
			artist = excluded.artist,
			style = excluded.style,
			colors = excluded.colors,
			extra = excluded.extra,
			updated_at = excluded.updated_at`,
		rec.Filename, rec.LabHistogram, meta.PublicURL, meta.Artist, meta.Style, meta.Colors,
		string(extraJSON), rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// Get returns the record for filename.
func (s *SQLiteStore) Get(ctx context.Context, filename string) (*models.CatalogRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT filename, lab_histogram, public_url, artist, style, colors, extra, created_at, updated_at
		 FROM catalog_images WHERE filename = ?`, filename,
	)
	rec, err := scanRecord(row.Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("catalog record not found: %s", filename)
	}
	return rec, err
}

// BatchGet returns records for the given filenames, keyed by filename.
func (s *SQLiteStore) BatchGet(ctx context.Context, filenames []string) (map[string]*models.CatalogRecord, error) {
	out := make(map[string]*models.CatalogRecord, len(filenames))
	if len(filenames) == 0 {
		return out, nil
	}
	placeholders := strings.Repeat("?,", len(filenames))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, len(filenames))
	for i, f := range filenames {
		args[i] = f
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT filename, lab_histogram, public_url, artist, style, colors, extra, created_at, updated_at
		 FROM catalog_images WHERE filename IN (`+placeholders+`)`, args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out[rec.Filename] = rec
	}
	return out, rows.Err()
}

// Delete removes the record for filename.
func (s *SQLiteStore) Delete(ctx context.Context, filename string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM catalog_images WHERE filename = ?`, filename)
	return err
}

// Count returns the number of stored records.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catalog_images`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func scanRecord(scan func(dest ...interface{}) error) (*models.CatalogRecord, error) {
	var rec models.CatalogRecord
	meta := &models.ImageMetadata{}
	var extraJSON string
	err := scan(&rec.Filename, &rec.LabHistogram, &meta.PublicURL, &meta.Artist,
		&meta.Style, &meta.Colors, &extraJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	meta.Filename = rec.Filename
	if extraJSON != "" && extraJSON != "null" {
		if err := json.Unmarshal([]byte(extraJSON), &meta.Extra); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra metadata: %w", err)
		}
	}
	rec.Metadata = meta
	return &rec, nil
}
