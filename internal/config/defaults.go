package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/irodori/data/db/catalog.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/irodori/data/indices/bleve"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/irodori/data/indices/vectors.bin"
	}
	if cfg.Storage.VectorIndexType == "" {
		cfg.Storage.VectorIndexType = "memory"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/irodori/data/models/clip-vit-large-patch14-visual.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	applySearchDefaults(&cfg.Search)
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 25
	}
	if cfg.Ingest.InterItemDelay == 0 {
		cfg.Ingest.InterItemDelay = 100 * time.Millisecond
	}
	if cfg.Ingest.InterBatchDelay == 0 {
		cfg.Ingest.InterBatchDelay = 2 * time.Second
	}
}

// applySearchDefaults fills zero fields. Negative values are left alone, so
// similarity_threshold: -1 survives as the "no threshold filter" setting.
func applySearchDefaults(s *SearchConfig) {
	if s.VectorTopK == 0 {
		s.VectorTopK = 20
	}
	if s.FinalTopK == 0 {
		s.FinalTopK = 10
	}
	if s.SimilarityThreshold == 0 {
		s.SimilarityThreshold = 0.7
	}
	if s.HistogramBins == 0 {
		s.HistogramBins = 8
	}
	if s.BhattacharyyaA == 0 {
		s.BhattacharyyaA = 6.0
	}
	if s.BhattacharyyaB == 0 {
		s.BhattacharyyaB = -3.0
	}
	if s.VectorWeight == 0 && s.ColorWeight == 0 {
		s.VectorWeight = 0.7
		s.ColorWeight = 0.3
	}
	if s.EmbedTimeout == 0 {
		s.EmbedTimeout = 30 * time.Second
	}
	if s.QueryTimeout == 0 {
		s.QueryTimeout = 10 * time.Second
	}
	if s.FetchTimeout == 0 {
		s.FetchTimeout = 10 * time.Second
	}
}
