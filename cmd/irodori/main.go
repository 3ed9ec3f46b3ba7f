// Package main is the Irodori CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/naild/irodori/internal/cli"
	"github.com/naild/irodori/internal/config"
	"github.com/naild/irodori/internal/embedding"
	"github.com/naild/irodori/internal/ingest"
	"github.com/naild/irodori/internal/metasearch"
	"github.com/naild/irodori/internal/models"
	"github.com/naild/irodori/internal/search"
	"github.com/naild/irodori/internal/storage"
	"github.com/naild/irodori/internal/vector"
	"github.com/naild/irodori/internal/watcher"
	"github.com/naild/irodori/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/irodori/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory wins (for development), so "irodori search" from
// the project dir uses the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "meta":
		runMeta()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("irodori version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store       *storage.SQLiteStore
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	MetaIndex   *metasearch.Index
	Engine      *search.Engine
	Pipeline    *ingest.Pipeline

	vectorIndexPath string
	logger          *zap.Logger
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.MetaIndex != nil {
		_ = c.MetaIndex.Close()
	}
}

// SaveVectorIndex persists the vector index to the configured path. Called
// after mutating commands so a restart does not require a full re-ingest.
func (c *Components) SaveVectorIndex() {
	if c.vectorIndexPath == "" {
		return
	}
	if err := c.VectorIndex.Save(c.vectorIndexPath); err != nil {
		c.logger.Warn("vector index save failed",
			zap.String("path", c.vectorIndexPath), zap.Error(err))
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// The ONNX model loads lazily on first embed, so read-only commands
	// (status, meta) never pay for it. A load failure falls back to the
	// deterministic mock so the pipeline stays usable without the model.
	var embedder embedding.Embedder
	if cfg.Embedding.UseMock {
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		modelPath := cfg.Embedding.ModelPath
		dims := cfg.Embedding.Dimensions
		cacheSize := cfg.Embedding.CacheSize
		embedder = embedding.NewLazyEmbedder(dims, func() (embedding.Embedder, error) {
			onnx, onnxErr := embedding.NewONNXEmbedder(modelPath, dims, cacheSize)
			if onnxErr != nil {
				logger.Warn("ONNX embedder unavailable, using mock embeddings",
					zap.String("model_path", modelPath), zap.Error(onnxErr))
				return embedding.NewMockEmbedder(dims), nil
			}
			return onnx, nil
		})
	}

	vectorIndex, err := vector.NewIndex(cfg.Storage.VectorIndexType, cfg.Embedding.Dimensions, logger)
	if err != nil {
		if cfg.Storage.VectorIndexType != "memory" && cfg.Storage.VectorIndexType != "" {
			logger.Warn("failed to create vector index, falling back to memory",
				zap.String("requested_type", cfg.Storage.VectorIndexType), zap.Error(err))
			vectorIndex, err = vector.NewIndex("memory", cfg.Embedding.Dimensions, logger)
		}
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to initialize vector index: %w", err)
		}
	}
	if cfg.Storage.VectorIndexPath != "" {
		if loadErr := vectorIndex.Load(cfg.Storage.VectorIndexPath); loadErr != nil {
			logger.Debug("vector index load skipped (re-ingest to rebuild)",
				zap.String("path", cfg.Storage.VectorIndexPath), zap.Error(loadErr))
		}
	}

	metaIndex, err := metasearch.NewIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize metadata index: %w", err)
	}

	engine, err := search.NewEngine(store, embedder, vectorIndex, &cfg.Search, logger)
	if err != nil {
		_ = store.Close()
		_ = metaIndex.Close()
		return nil, fmt.Errorf("failed to initialize search engine: %w", err)
	}

	var pipelineLogger *zap.Logger
	if debug {
		pipelineLogger = logger
	}
	pipeline := ingest.NewPipeline(store, embedder, vectorIndex, metaIndex,
		&cfg.Ingest, cfg.Search.HistogramBins, pipelineLogger)

	return &Components{
		Store:           store,
		Embedder:        embedder,
		VectorIndex:     vectorIndex,
		MetaIndex:       metaIndex,
		Engine:          engine,
		Pipeline:        pipeline,
		vectorIndexPath: cfg.Storage.VectorIndexPath,
		logger:          logger,
	}, nil
}

func setup(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, components
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 0, "number of results (default from config)")
	threshold := fs.Float64("threshold", -1, "minimum vector similarity (default from config)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: irodori search [flags] <image-path>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	// Flag overrides apply before the engine is built; the engine treats its
	// config as immutable.
	if *limit > 0 {
		cfg.Search.FinalTopK = *limit
		if cfg.Search.FinalTopK > cfg.Search.VectorTopK {
			cfg.Search.VectorTopK = cfg.Search.FinalTopK
		}
	}
	if *threshold >= 0 {
		cfg.Search.SimilarityThreshold = *threshold
	}

	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Debug("config loaded", zap.String("config_path", resolved))

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	imageBytes, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	response, err := components.Engine.Run(context.Background(), imageBytes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	artist := fs.String("artist", "", "artist name (single file only)")
	style := fs.String("style", "", "style tags (single file only)")
	colors := fs.String("colors", "", "color tags (single file only)")
	publicURL := fs.String("url", "", "public URL (single file only)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: irodori ingest [flags] <image-or-directory>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}

	if info.IsDir() {
		report, err := components.Pipeline.IngestDirectory(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
			os.Exit(1)
		}
		components.SaveVectorIndex()
		if err := cli.WriteIngestReport(os.Stdout, report, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	meta := &models.ImageMetadata{
		Artist:    *artist,
		Style:     *style,
		Colors:    *colors,
		PublicURL: *publicURL,
	}
	ingested, err := components.Pipeline.IngestFile(ctx, path, meta)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	components.SaveVectorIndex()
	if ingested {
		fmt.Printf("Image ingested: %s\n", filepath.Base(path))
	} else {
		fmt.Printf("Image unchanged, skipped: %s\n", filepath.Base(path))
	}
}

func runMeta() {
	fs := flag.NewFlagSet("meta", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	field := fs.String("field", "", "restrict to one field: artist, style, colors, filename")
	limit := fs.Int("limit", 10, "number of results")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: irodori meta [flags] <query>")
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	query := fs.Arg(0)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	var hits []*metasearch.Result
	if *field != "" {
		hits, err = components.MetaIndex.SearchField(ctx, *field, query, *limit)
	} else {
		hits, err = components.MetaIndex.Search(ctx, query, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Metadata search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteMetaResults(os.Stdout, hits, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: irodori delete [flags] <filename>")
		os.Exit(1)
	}
	filename := fs.Arg(0)

	_, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	if err := components.Pipeline.Remove(context.Background(), filename); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	components.SaveVectorIndex()
	fmt.Printf("Image deleted: %s\n", filename)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, components := setup(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	imageCount, err := components.Store.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count images failed: %v\n", err)
		os.Exit(1)
	}
	metaCount, _ := components.MetaIndex.DocCount()
	stats := components.VectorIndex.Stats()

	fmt.Printf("images:             %d   # catalog records\n", imageCount)
	fmt.Printf("vector_index_size:  %d   # embeddings in the vector index\n", stats.Count)
	fmt.Printf("metadata_indexed:   %d   # images in the metadata text index\n", metaCount)
	fmt.Println()
	fmt.Println("# configuration")
	fmt.Printf("vector_index_type:  %s\n", cfg.Storage.VectorIndexType)
	fmt.Printf("embedding_dims:     %d\n", cfg.Embedding.Dimensions)
	fmt.Printf("vector_top_k:       %d\n", cfg.Search.VectorTopK)
	fmt.Printf("final_top_k:        %d\n", cfg.Search.FinalTopK)
	fmt.Printf("vector_weight:      %.2f\n", cfg.Search.VectorWeight)
	fmt.Printf("color_weight:       %.2f\n", cfg.Search.ColorWeight)
	fmt.Printf("database_path:      %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("bleve_index_path:   %s\n", cfg.Storage.BleveIndexPath)
	fmt.Printf("vector_index_path:  %s\n", cfg.Storage.VectorIndexPath)
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	syncExisting := fs.Bool("sync", true, "ingest files already present in the drop folders")
	saveDirs := fs.Bool("save", false, "persist drop folders given as arguments into the config file")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	dirs := cfg.Ingest.Directories
	if fs.NArg() > 0 {
		dirs = fs.Args()
	}
	if len(dirs) == 0 {
		fmt.Println("No drop folders configured; set ingest.directories or pass paths:")
		fmt.Println("  irodori watch /path/to/drops")
		os.Exit(1)
	}
	if *saveDirs && fs.NArg() > 0 {
		cfg.Ingest.Directories = mergeDirectories(cfg.Ingest.Directories, fs.Args())
		if err := config.Save(resolved, cfg); err != nil {
			logger.Warn("failed to persist drop folders to config",
				zap.String("config_path", resolved), zap.Error(err))
		} else {
			logger.Info("drop folders saved to config",
				zap.String("config_path", resolved), zap.Strings("dirs", cfg.Ingest.Directories))
		}
	}

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchOpts := []watcher.Option{}
	if cfg.Debug {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	w := watcher.New(dirs, cfg.Ingest.Extensions, true,
		func(path string) {
			if _, err := components.Pipeline.IngestFile(context.Background(), path, nil); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
			}
		},
		func(path string) {
			if err := components.Pipeline.Remove(context.Background(), path); err != nil {
				logger.Warn("watch remove failed", zap.String("path", path), zap.Error(err))
			}
		},
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := w.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	if *syncExisting {
		w.SyncExistingFiles()
	}
	logger.Info("watching drop folders", zap.Strings("dirs", dirs))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	w.Stop()
	components.SaveVectorIndex()
}

// mergeDirectories appends the added paths to existing, absolute and deduplicated.
func mergeDirectories(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, d := range existing {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	for _, d := range added {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

func printUsage() {
	fmt.Println(`irodori - Hybrid image search for nail-art catalogs

Usage:
  irodori search [flags] <image>      Find catalog images similar to an image
  irodori ingest [flags] <path>       Ingest an image or directory into the catalog
  irodori meta [flags] <query>        Search catalog metadata (artist, style, colors)
  irodori delete [flags] <filename>   Delete a catalog image
  irodori status [flags]              Show catalog/index status
  irodori watch [flags] [dirs...]     Watch drop folders and ingest new images
  irodori version                     Show version
  irodori help                        Show this help

Search Flags:
  --config string      Config file path (default: /usr/local/etc/irodori/config.yaml)
  --limit int          Number of results (default from config)
  --threshold float    Minimum vector similarity (default from config)
  --output string      Output format: text, compact, or json (default: text)

Ingest Flags:
  --config string      Config file path
  --artist string      Artist name (single file only)
  --style string       Style tags (single file only)
  --colors string      Color tags (single file only)
  --url string         Public URL (single file only)
  --output string      Output format for directory reports: text or json

Meta Flags:
  --field string       Restrict to one field: artist, style, colors, filename
  --limit int          Number of results (default: 10)
  --output string      Output format: text or json

Watch Flags:
  --config string      Config file path
  --sync               Ingest files already present in the drop folders (default: true)
  --save               Persist drop folders given as arguments into the config file

Examples:
  irodori ingest --artist "Studio Kiko" --style "french ombre" gel-01.jpg
  irodori ingest ~/catalog/drops
  irodori search inspiration.jpg
  irodori search --limit 5 --output json inspiration.jpg
  irodori meta --field style chrome
  irodori delete gel-01.jpg
  irodori watch ~/catalog/drops`)
}
