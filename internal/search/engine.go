package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/naild/irodori/internal/colorhist"
	"github.com/naild/irodori/internal/config"
	"github.com/naild/irodori/internal/embedding"
	"github.com/naild/irodori/internal/models"
	"github.com/naild/irodori/internal/storage"
	"github.com/naild/irodori/internal/vector"
)

// Engine runs the full query pipeline: extract color profile, embed, retrieve
// candidates, fetch stored histograms, fuse scores, rank, enrich.
//
// Only image-decode and embedding failures (and an unreachable index) are
// request-fatal. Every per-candidate issue — a missing stored histogram, an
// enrichment miss — degrades that single candidate and the pipeline continues.
type Engine struct {
	store    storage.MetadataStore
	embedder embedding.Embedder
	index    vector.Index
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewEngine creates a reranking engine. The config is validated here and
// treated as immutable afterwards; weight-sum issues are logged, not fatal.
func NewEngine(
	store storage.MetadataStore,
	embedder embedding.Embedder,
	index vector.Index,
	cfg *config.SearchConfig,
	logger *zap.Logger,
) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.LogWarnings(logger)
	return &Engine{
		store:    store,
		embedder: embedder,
		index:    index,
		config:   cfg,
		logger:   logger,
	}, nil
}

// Run executes one query. An empty result list with a message is a valid
// success ("no similar images found"), distinguished from pipeline failure.
func (e *Engine) Run(ctx context.Context, imageBytes []byte) (*models.SearchResponse, error) {
	start := time.Now()
	stats := models.SearchStats{
		Config:   e.configEcho(),
		TimingMS: make(map[string]int64),
		Counts:   make(map[string]int),
	}
	stage := func(name string, since time.Time) {
		stats.TimingMS[name] = time.Since(since).Milliseconds()
	}

	// Stage 1: query color profile. Malformed upload is terminal.
	histStart := time.Now()
	queryHist, err := colorhist.Extract(imageBytes, e.config.HistogramBins)
	if err != nil {
		return nil, fmt.Errorf("extract query histogram: %w", err)
	}
	stage("query_histogram", histStart)

	// Stage 2: query embedding. Provider failure or timeout is terminal.
	embedStart := time.Now()
	embedCtx, cancelEmbed := context.WithTimeout(ctx, e.config.EmbedTimeout)
	queryEmbedding, err := e.embedder.Embed(embedCtx, imageBytes)
	cancelEmbed()
	if err != nil {
		if !errors.Is(err, embedding.ErrEmbeddingFailed) {
			err = fmt.Errorf("%w: %v", embedding.ErrEmbeddingFailed, err)
		}
		return nil, fmt.Errorf("generate query embedding: %w", err)
	}
	stage("query_embedding", embedStart)

	// Stage 3: vector retrieval.
	queryStart := time.Now()
	queryCtx, cancelQuery := context.WithTimeout(ctx, e.config.QueryTimeout)
	candidates, err := e.index.Query(queryCtx, queryEmbedding, e.config.VectorTopK, &vector.QueryOptions{
		SimilarityThreshold: e.config.SimilarityThreshold,
	})
	cancelQuery()
	if err != nil {
		if !errors.Is(err, vector.ErrIndexUnavailable) {
			err = fmt.Errorf("%w: %v", vector.ErrIndexUnavailable, err)
		}
		return nil, fmt.Errorf("vector search: %w", err)
	}
	stage("vector_search", queryStart)
	stats.Counts["vector_results"] = len(candidates)

	if len(candidates) == 0 {
		stage("total", start)
		return &models.SearchResponse{
			Results: []*models.QueryResult{},
			Message: "No similar images found",
			Stats:   stats,
		}, nil
	}

	// Stage 4: stored histograms for all candidates. A candidate whose
	// histogram cannot be fetched keeps colorScore 0 and stays in the list.
	fetchStart := time.Now()
	records := e.fetchRecords(ctx, candidateFilenames(candidates))
	stage("histogram_fetch", fetchStart)
	stats.Counts["histograms_found"] = len(records)

	// Stage 5-7: fuse, rank, truncate.
	rerankStart := time.Now()
	colorScores := make(map[string]float64, len(candidates))
	for _, c := range candidates {
		colorScores[c.ID] = e.colorScore(queryHist, records[filenameOf(c)])
	}
	results := Rerank(candidates, colorScores, e.config.VectorWeight, e.config.ColorWeight)
	if len(results) > e.config.FinalTopK {
		results = results[:e.config.FinalTopK]
	}
	stage("reranking", rerankStart)
	stats.Counts["final_results"] = len(results)

	// Stage 8: display metadata for the survivors. Misses leave defaults.
	enrichStart := time.Now()
	e.enrich(ctx, results, records)
	stage("enrichment", enrichStart)

	for i, r := range results {
		r.Rank = i + 1
	}
	stage("total", start)

	return &models.SearchResponse{
		Results: results,
		Message: fmt.Sprintf("Found %d matches", len(results)),
		Stats:   stats,
	}, nil
}

// fetchRecords batch-fetches catalog records. A failed fetch degrades every
// candidate's color contribution rather than failing the request.
func (e *Engine) fetchRecords(ctx context.Context, filenames []string) map[string]*models.CatalogRecord {
	fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
	defer cancel()
	records, err := e.store.BatchGet(fetchCtx, filenames)
	if err != nil {
		e.logger.Warn("histogram fetch failed, continuing without color scores", zap.Error(err))
		return map[string]*models.CatalogRecord{}
	}
	return records
}

// colorScore maps a candidate's stored histogram against the query histogram.
// Missing or malformed stored histograms score 0.0.
func (e *Engine) colorScore(queryHist colorhist.Histogram, rec *models.CatalogRecord) float64 {
	if rec == nil {
		return 0.0
	}
	return colorhist.SimilarityToStored(queryHist, rec.LabHistogram,
		e.config.BhattacharyyaA, e.config.BhattacharyyaB)
}

// enrich fills display fields on the surviving candidates from their catalog
// records. Records already fetched in stage 4 are reused; anything still
// missing is looked up once more, and failures leave the defaults in place.
func (e *Engine) enrich(ctx context.Context, results []*models.QueryResult, records map[string]*models.CatalogRecord) {
	var missing []string
	for _, r := range results {
		name := resultFilename(r)
		if _, ok := records[name]; !ok && name != "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		fetchCtx, cancel := context.WithTimeout(ctx, e.config.FetchTimeout)
		extra, err := e.store.BatchGet(fetchCtx, missing)
		cancel()
		if err != nil {
			e.logger.Warn("enrichment fetch failed, leaving display fields at defaults", zap.Error(err))
		} else {
			for k, v := range extra {
				records[k] = v
			}
		}
	}

	for _, r := range results {
		rec, ok := records[resultFilename(r)]
		if !ok || rec == nil || rec.Metadata == nil {
			continue
		}
		if r.Metadata == nil {
			r.Metadata = &models.ImageMetadata{Filename: rec.Filename}
		}
		if rec.Metadata.PublicURL != "" {
			r.Metadata.PublicURL = rec.Metadata.PublicURL
		}
		if rec.Metadata.Artist != "" {
			r.Metadata.Artist = rec.Metadata.Artist
		}
		if rec.Metadata.Style != "" {
			r.Metadata.Style = rec.Metadata.Style
		}
		if rec.Metadata.Colors != "" {
			r.Metadata.Colors = rec.Metadata.Colors
		}
	}
}

func (e *Engine) configEcho() models.ConfigEcho {
	return models.ConfigEcho{
		VectorTopK:          e.config.VectorTopK,
		FinalTopK:           e.config.FinalTopK,
		SimilarityThreshold: e.config.SimilarityThreshold,
		HistogramBins:       e.config.HistogramBins,
		BhattacharyyaA:      e.config.BhattacharyyaA,
		BhattacharyyaB:      e.config.BhattacharyyaB,
		VectorWeight:        e.config.VectorWeight,
		ColorWeight:         e.config.ColorWeight,
	}
}

func candidateFilenames(candidates []*vector.Result) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if name := filenameOf(c); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// filenameOf returns the metadata-store key for a candidate: the filename
// field when present, otherwise the index id.
func filenameOf(c *vector.Result) string {
	if c.Metadata != nil && c.Metadata.Filename != "" {
		return c.Metadata.Filename
	}
	return c.ID
}

func resultFilename(r *models.QueryResult) string {
	if r.Metadata != nil && r.Metadata.Filename != "" {
		return r.Metadata.Filename
	}
	return r.ID
}
