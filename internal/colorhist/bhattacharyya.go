package colorhist

import (
	"errors"
	"fmt"
	"math"

	"github.com/naild/irodori/pkg/utils"
)

// ErrIncompatibleHistograms indicates two histograms of different shapes were compared.
var ErrIncompatibleHistograms = errors.New("incompatible histograms")

// Default sigmoid parameters for DistanceToSimilarity, calibrated so that
// near-identical histograms map above 0.95 and unrelated ones map low.
const (
	DefaultSigmoidA = 6.0
	DefaultSigmoidB = -3.0
)

// minCoefficient is the clamp floor for the Bhattacharyya coefficient before
// the logarithm; -ln(minCoefficient) is the normalization maximum.
const minCoefficient = 1e-10

// Distance returns the normalized Bhattacharyya distance between two
// L1-normalized histograms: 0 = identical, 1 = no overlap. The coefficient is
// clamped to [1e-10, 1] before the log so the result is always finite, and
// the raw distance is divided by the theoretical maximum -ln(1e-10).
func Distance(h1, h2 Histogram) (float64, error) {
	if len(h1) != len(h2) {
		return 1.0, fmt.Errorf("%w: %d vs %d bins", ErrIncompatibleHistograms, len(h1), len(h2))
	}
	var coeff float64
	for i := range h1 {
		coeff += math.Sqrt(float64(h1[i]) * float64(h2[i]))
	}
	if math.IsNaN(coeff) {
		// Numeric failure degrades to maximum distance rather than propagating.
		return 1.0, nil
	}
	coeff = utils.Clamp(coeff, minCoefficient, 1.0)
	distance := -math.Log(coeff)
	maxDistance := -math.Log(minCoefficient)
	return math.Min(distance/maxDistance, 1.0), nil
}

// DistanceToSimilarity maps a Bhattacharyya distance in [0,1] to a similarity
// in (0,1) via sigmoid(a*(1-distance)+b). Strictly monotonically decreasing
// in distance.
func DistanceToSimilarity(distance, a, b float64) float64 {
	return utils.Sigmoid(a*(1-distance) + b)
}

// SimilarityToStored computes the color similarity between a query histogram
// and a candidate's JSON-encoded stored histogram. A missing or malformed
// stored histogram yields 0.0; this path never errors so such a candidate
// simply loses its color contribution.
func SimilarityToStored(query Histogram, storedJSON string, a, b float64) float64 {
	stored, err := FromJSON(storedJSON)
	if err != nil || stored == nil {
		return 0.0
	}
	distance, err := Distance(query, stored)
	if err != nil {
		return 0.0
	}
	return DistanceToSimilarity(distance, a, b)
}
