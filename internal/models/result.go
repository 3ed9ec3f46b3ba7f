package models

// QueryResult is a single reranked hit. Ephemeral: created per query, never persisted.
type QueryResult struct {
	ID          string         `json:"id"`
	VectorScore float64        `json:"vector_score"`
	ColorScore  float64        `json:"color_score"`
	FusedScore  float64        `json:"fused_score"`
	Rank        int            `json:"rank"`
	Metadata    *ImageMetadata `json:"metadata,omitempty"`
}

// ConfigEcho mirrors the effective search configuration back to the caller.
type ConfigEcho struct {
	VectorTopK          int     `json:"vector_top_k"`
	FinalTopK           int     `json:"final_top_k"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	HistogramBins       int     `json:"histogram_bins"`
	BhattacharyyaA      float64 `json:"bhattacharyya_a"`
	BhattacharyyaB      float64 `json:"bhattacharyya_b"`
	VectorWeight        float64 `json:"vector_weight"`
	ColorWeight         float64 `json:"color_weight"`
}

// SearchStats carries per-stage timings, per-stage counts, and the config echo.
type SearchStats struct {
	Config   ConfigEcho       `json:"config"`
	TimingMS map[string]int64 `json:"timing_ms"`
	Counts   map[string]int   `json:"counts"`
}

// SearchResponse is the full reranked answer for one query image.
// An empty Results slice with a Message is a valid success, not an error.
type SearchResponse struct {
	Results []*QueryResult `json:"results"`
	Message string         `json:"message"`
	Stats   SearchStats    `json:"stats"`
}
