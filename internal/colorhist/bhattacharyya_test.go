package colorhist

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

func randomHistogram(r *rand.Rand, n int) Histogram {
	h := make(Histogram, n)
	var sum float64
	for i := range h {
		h[i] = r.Float32()
		sum += float64(h[i])
	}
	for i := range h {
		h[i] = float32(float64(h[i]) / sum)
	}
	return h
}

func TestDistance_Identity(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	h := randomHistogram(r, 512)
	d, err := Distance(h, h)
	if err != nil {
		t.Fatal(err)
	}
	if d > 1e-6 {
		t.Errorf("distance(h,h) = %f, want ~0", d)
	}
	if sim := DistanceToSimilarity(d, DefaultSigmoidA, DefaultSigmoidB); sim <= 0.95 {
		t.Errorf("similarity of identical histograms = %f, want > 0.95", sim)
	}
}

func TestDistance_Bounds(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		h1 := randomHistogram(r, 64)
		h2 := randomHistogram(r, 64)
		d, err := Distance(h1, h2)
		if err != nil {
			t.Fatal(err)
		}
		if d < 0 || d > 1 {
			t.Errorf("distance out of [0,1]: %f", d)
		}
	}
}

func TestDistance_Disjoint(t *testing.T) {
	h1 := Histogram{1, 0, 0, 0}
	h2 := Histogram{0, 0, 0, 1}
	d, err := Distance(h1, h2)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(d-1.0) > 1e-9 {
		t.Errorf("disjoint histograms should be at maximum distance, got %f", d)
	}
}

func TestDistance_ShapeMismatch(t *testing.T) {
	_, err := Distance(Histogram{1}, Histogram{0.5, 0.5})
	if !errors.Is(err, ErrIncompatibleHistograms) {
		t.Errorf("expected ErrIncompatibleHistograms, got %v", err)
	}
}

func TestDistanceToSimilarity_Monotonic(t *testing.T) {
	prev := math.Inf(1)
	for d := 0.0; d <= 1.0; d += 0.05 {
		sim := DistanceToSimilarity(d, DefaultSigmoidA, DefaultSigmoidB)
		if sim >= prev {
			t.Fatalf("similarity not strictly decreasing at distance %f: %f >= %f", d, sim, prev)
		}
		prev = sim
	}
}

func TestSimilarityToStored(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	h := randomHistogram(r, 512)
	hJSON, err := ToJSON(h)
	if err != nil {
		t.Fatal(err)
	}

	if sim := SimilarityToStored(h, hJSON, DefaultSigmoidA, DefaultSigmoidB); sim <= 0.95 {
		t.Errorf("self similarity = %f, want > 0.95", sim)
	}

	// Missing or malformed stored histograms degrade to zero rather than erroring.
	if sim := SimilarityToStored(h, "", DefaultSigmoidA, DefaultSigmoidB); sim != 0.0 {
		t.Errorf("missing histogram should give 0.0, got %f", sim)
	}
	if sim := SimilarityToStored(h, "{broken", DefaultSigmoidA, DefaultSigmoidB); sim != 0.0 {
		t.Errorf("malformed histogram should give 0.0, got %f", sim)
	}
	if sim := SimilarityToStored(h, "[]", DefaultSigmoidA, DefaultSigmoidB); sim != 0.0 {
		t.Errorf("empty histogram should give 0.0, got %f", sim)
	}
	// Shape mismatch degrades the same way.
	if sim := SimilarityToStored(h, "[0.5,0.5]", DefaultSigmoidA, DefaultSigmoidB); sim != 0.0 {
		t.Errorf("mismatched shape should give 0.0, got %f", sim)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(99))
	h := randomHistogram(r, 512)
	s, err := ToJSON(h)
	if err != nil {
		t.Fatal(err)
	}
	back, err := FromJSON(s)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(h) {
		t.Fatalf("round-trip length %d != %d", len(back), len(h))
	}
	for i := range h {
		if math.Abs(float64(back[i]-h[i])) > 1e-7 {
			t.Fatalf("bin %d: %f != %f", i, back[i], h[i])
		}
	}
}
