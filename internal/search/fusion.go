// Package search provides the hybrid retrieval-and-rerank engine: vector
// nearest-neighbor search fused with LAB-histogram color similarity.
package search

import (
	"sort"

	"github.com/naild/irodori/internal/models"
	"github.com/naild/irodori/internal/vector"
)

// FuseScores combines the vector and color signals with the configured weights.
func FuseScores(vectorWeight, colorWeight, vectorScore, colorScore float64) float64 {
	return vectorWeight*vectorScore + colorWeight*colorScore
}

// Rerank builds fused results from the vector candidates and their color
// scores, sorted descending by fused score. The sort is stable, so ties keep
// the original vector-stage order and the outcome is deterministic.
func Rerank(candidates []*vector.Result, colorScores map[string]float64, vectorWeight, colorWeight float64) []*models.QueryResult {
	results := make([]*models.QueryResult, 0, len(candidates))
	for _, c := range candidates {
		colorScore := colorScores[c.ID]
		results = append(results, &models.QueryResult{
			ID:          c.ID,
			VectorScore: c.Score,
			ColorScore:  colorScore,
			FusedScore:  FuseScores(vectorWeight, colorWeight, c.Score, colorScore),
			Metadata:    c.Metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FusedScore > results[j].FusedScore
	})
	return results
}
