// Package config provides configuration loading and structs for the Irodori engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig indicates a configuration that fails validation at construction.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// StorageConfig holds paths for the metadata database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	VectorIndexType string `yaml:"vector_index_type"`
}

// EmbeddingConfig holds image embedder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	UseMock    bool   `yaml:"use_mock"`
}

// IngestConfig holds offline ingestion settings.
type IngestConfig struct {
	Directories     []string      `yaml:"directories"`
	Extensions      []string      `yaml:"extensions"`
	BatchSize       int           `yaml:"batch_size"`
	InterItemDelay  time.Duration `yaml:"inter_item_delay"`
	InterBatchDelay time.Duration `yaml:"inter_batch_delay"`
}

// SearchConfig is the validated, immutable parameter bundle for the reranking
// pipeline. Validate must pass before the config is handed to the engine;
// nothing mutates it afterwards.
//
// Zero-valued fields take their defaults (see ApplyDefaults), so an explicit
// 0 in YAML is indistinguishable from an omitted field. To disable the vector
// similarity threshold set similarity_threshold to a negative value; any
// threshold <= 0 skips the filter.
type SearchConfig struct {
	VectorTopK          int     `yaml:"vector_top_k"`
	FinalTopK           int     `yaml:"final_top_k"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	HistogramBins       int     `yaml:"histogram_bins"`
	BhattacharyyaA      float64 `yaml:"bhattacharyya_a"`
	BhattacharyyaB      float64 `yaml:"bhattacharyya_b"`
	VectorWeight        float64 `yaml:"vector_weight"`
	ColorWeight         float64 `yaml:"color_weight"`

	EmbedTimeout time.Duration `yaml:"embed_timeout"`
	QueryTimeout time.Duration `yaml:"query_timeout"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// Validate checks the hard invariants. Violations are programmer errors and
// fail fast with ErrInvalidConfig.
func (c *SearchConfig) Validate() error {
	if c.VectorTopK < 1 {
		return fmt.Errorf("%w: vector_top_k must be positive, got %d",
			ErrInvalidConfig, c.VectorTopK)
	}
	if c.FinalTopK < 1 {
		return fmt.Errorf("%w: final_top_k must be positive, got %d",
			ErrInvalidConfig, c.FinalTopK)
	}
	if c.FinalTopK > c.VectorTopK {
		return fmt.Errorf("%w: final_top_k (%d) must be <= vector_top_k (%d)",
			ErrInvalidConfig, c.FinalTopK, c.VectorTopK)
	}
	if c.HistogramBins <= 0 {
		return fmt.Errorf("%w: histogram_bins must be positive, got %d",
			ErrInvalidConfig, c.HistogramBins)
	}
	return nil
}

// LogWarnings reports soft violations. The fusion formula assumes the weights
// sum to 1.0 but this is deliberately not enforced; see DESIGN.md.
func (c *SearchConfig) LogWarnings(logger *zap.Logger) {
	if logger == nil {
		return
	}
	if sum := c.VectorWeight + c.ColorWeight; sum != 1.0 {
		logger.Warn("search weights do not sum to 1.0",
			zap.Float64("vector_weight", c.VectorWeight),
			zap.Float64("color_weight", c.ColorWeight),
			zap.Float64("sum", sum),
		)
	}
}

// NewSearchConfig returns a validated SearchConfig with defaults for any zero field.
func NewSearchConfig() *SearchConfig {
	cfg := &SearchConfig{}
	applySearchDefaults(cfg)
	return cfg
}

// Load reads and parses the config file at path, applies defaults, validates
// the search section, and expands paths. Returns an error if the file cannot
// be read or parsed, or if the search config is invalid.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Search.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Ingest.Directories {
		cfg.Ingest.Directories[i] = expandPath(cfg.Ingest.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting ingest directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
