package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSearchConfig_Defaults(t *testing.T) {
	cfg := NewSearchConfig()
	if cfg.VectorTopK != 20 || cfg.FinalTopK != 10 {
		t.Errorf("top-k defaults wrong: %d/%d", cfg.VectorTopK, cfg.FinalTopK)
	}
	if cfg.SimilarityThreshold != 0.7 {
		t.Errorf("similarity_threshold = %f", cfg.SimilarityThreshold)
	}
	if cfg.HistogramBins != 8 {
		t.Errorf("histogram_bins = %d", cfg.HistogramBins)
	}
	if cfg.BhattacharyyaA != 6.0 || cfg.BhattacharyyaB != -3.0 {
		t.Errorf("sigmoid params = %f/%f", cfg.BhattacharyyaA, cfg.BhattacharyyaB)
	}
	if cfg.VectorWeight != 0.7 || cfg.ColorWeight != 0.3 {
		t.Errorf("weights = %f/%f", cfg.VectorWeight, cfg.ColorWeight)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestSearchConfig_Validate_TopK(t *testing.T) {
	cfg := NewSearchConfig()
	cfg.VectorTopK = 5
	cfg.FinalTopK = 10
	err := cfg.Validate()
	if err == nil {
		t.Fatal("final_top_k > vector_top_k must fail validation")
	}
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error should wrap ErrInvalidConfig, got %v", err)
	}
}

func TestSearchConfig_Validate_NonPositiveTopK(t *testing.T) {
	// Negative or zero top-k values must fail at construction; they would
	// otherwise slice out of range at query time.
	cfg := NewSearchConfig()
	cfg.FinalTopK = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative final_top_k should fail with ErrInvalidConfig, got %v", err)
	}

	cfg = NewSearchConfig()
	cfg.VectorTopK = -5
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative vector_top_k should fail with ErrInvalidConfig, got %v", err)
	}
}

func TestSearchConfig_Validate_Bins(t *testing.T) {
	cfg := NewSearchConfig()
	cfg.HistogramBins = -1
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative bins should fail with ErrInvalidConfig, got %v", err)
	}
}

func TestLoad_FileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: ./data/catalog.db
search:
  vector_top_k: 40
  final_top_k: 15
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Search.VectorTopK != 40 || cfg.Search.FinalTopK != 15 {
		t.Errorf("search overrides not applied: %+v", cfg.Search)
	}
	if cfg.Search.SimilarityThreshold != 0.7 {
		t.Errorf("threshold default missing: %f", cfg.Search.SimilarityThreshold)
	}
	if !filepath.IsAbs(cfg.Storage.DatabasePath) {
		t.Errorf("database path not expanded: %s", cfg.Storage.DatabasePath)
	}
	if cfg.Ingest.InterBatchDelay != 2*time.Second {
		t.Errorf("ingest defaults missing: %v", cfg.Ingest.InterBatchDelay)
	}
}

func TestLoad_NegativeThresholdDisablesFilter(t *testing.T) {
	// Zero means default, so disabling the threshold filter is spelled with a
	// negative value and must survive defaulting.
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
search:
  similarity_threshold: -1
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Search.SimilarityThreshold != -1 {
		t.Errorf("negative threshold replaced by default: %f", cfg.Search.SimilarityThreshold)
	}
}

func TestLoad_InvalidSearchSection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
search:
  vector_top_k: 5
  final_top_k: 10
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Load should fail fast on invalid search config, got %v", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &Config{Debug: true}
	ApplyDefaults(cfg)
	cfg.Ingest.Directories = []string{filepath.Join(dir, "drops")}

	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !back.Debug {
		t.Error("debug lost in round-trip")
	}
	if len(back.Ingest.Directories) != 1 || back.Ingest.Directories[0] != cfg.Ingest.Directories[0] {
		t.Errorf("ingest directories lost: %v", back.Ingest.Directories)
	}
	if back.Search.VectorTopK != cfg.Search.VectorTopK {
		t.Errorf("search config lost: %+v", back.Search)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("missing file should error")
	}
}
