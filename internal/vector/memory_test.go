package vector

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/naild/irodori/internal/models"
)

func item(id string, vec []float32, meta *models.ImageMetadata) *models.IndexedItem {
	return &models.IndexedItem{ID: id, Embedding: vec, Metadata: meta}
}

func TestMemoryIndex_UpsertQuery(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	_ = idx.Upsert(ctx, item("a", []float32{1, 0, 0}, nil))
	_ = idx.Upsert(ctx, item("b", []float32{0.9, 0.1, 0}, nil))
	_ = idx.Upsert(ctx, item("c", []float32{0, 1, 0}, nil))

	results, err := idx.Query(ctx, []float32{1, 0, 0}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Errorf("top result should be a, got %s", results[0].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Error("results not sorted descending")
		}
	}
}

func TestMemoryIndex_UpsertOverwrites(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, item("x", []float32{1, 0}, &models.ImageMetadata{Style: "french"}))
	_ = idx.Upsert(ctx, item("x", []float32{0, 1}, &models.ImageMetadata{Style: "ombre"}))

	if got := idx.Stats().Count; got != 1 {
		t.Fatalf("upsert of same id should overwrite, count = %d", got)
	}
	results, err := idx.Query(ctx, []float32{0, 1}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "x" || math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("overwritten vector not in effect: %+v", results[0])
	}
	if results[0].Metadata.Style != "ombre" {
		t.Errorf("metadata not overwritten: %+v", results[0].Metadata)
	}
}

func TestMemoryIndex_QueryEmpty(t *testing.T) {
	idx, _ := NewMemoryIndex(4)
	results, err := idx.Query(context.Background(), []float32{1, 0, 0, 0}, 10, nil)
	if err != nil {
		t.Fatalf("empty index query should not error: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestMemoryIndex_ThresholdFallback(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, item("a", []float32{1, 0}, nil))
	_ = idx.Upsert(ctx, item("b", []float32{0.8, 0.6}, nil))

	// Query nearly orthogonal to both so every score is below the threshold.
	results, err := idx.Query(ctx, []float32{0, 1}, 2, &QueryOptions{SimilarityThreshold: 0.99})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 {
		t.Fatal("threshold excluding all candidates must fall back to best available")
	}
	if results[0].ID != "b" {
		t.Errorf("fallback should keep descending order, top = %s", results[0].ID)
	}
}

func TestMemoryIndex_ThresholdFilters(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, item("near", []float32{1, 0}, nil))
	_ = idx.Upsert(ctx, item("far", []float32{0, 1}, nil))

	results, err := idx.Query(ctx, []float32{1, 0}, 5, &QueryOptions{SimilarityThreshold: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "near" {
		t.Errorf("threshold should keep only the near item, got %v", results)
	}
}

func TestMemoryIndex_MetadataFilter(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, item("a", []float32{1, 0}, &models.ImageMetadata{Style: "french"}))
	_ = idx.Upsert(ctx, item("b", []float32{0.9, 0.1}, &models.ImageMetadata{Style: "ombre"}))

	results, err := idx.Query(ctx, []float32{1, 0}, 5, &QueryOptions{MetadataFilter: map[string]string{"style": "ombre"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "b" {
		t.Errorf("metadata filter not applied: %v", results)
	}
}

func TestMemoryIndex_BatchUpsertSkipsFailures(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	items := []*models.IndexedItem{
		item("good1", []float32{1, 0}, nil),
		item("bad", []float32{1, 0, 0}, nil), // wrong dimension
		item("", []float32{0, 1}, nil),       // missing id
		item("good2", []float32{0, 1}, nil),
	}
	count, err := idx.BatchUpsert(ctx, items)
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("expected 2 stored, got %d", count)
	}
	if idx.Stats().Count != 2 {
		t.Errorf("index count = %d", idx.Stats().Count)
	}
}

func TestMemoryIndex_Delete(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Upsert(ctx, item("x", []float32{1, 0}, nil))
	_ = idx.Upsert(ctx, item("y", []float32{0, 1}, nil))
	if err := idx.Delete(ctx, "x"); err != nil {
		t.Fatal(err)
	}
	if idx.Stats().Count != 1 {
		t.Errorf("count after delete = %d", idx.Stats().Count)
	}
	// Deleting a missing id is a no-op.
	if err := idx.Delete(ctx, "x"); err != nil {
		t.Errorf("deleting missing id should be nil, got %v", err)
	}
	results, _ := idx.Query(ctx, []float32{0, 1}, 5, nil)
	if len(results) != 1 || results[0].ID != "y" {
		t.Errorf("remaining item wrong: %v", results)
	}
}

func TestMemoryIndex_Stats(t *testing.T) {
	idx, _ := NewMemoryIndex(8)
	_ = idx.Upsert(context.Background(), item("a", make([]float32, 8), nil))
	s := idx.Stats()
	if s.Count != 1 || s.Dimension != 8 {
		t.Errorf("stats = %+v", s)
	}
	if s.Fullness <= 0 || s.Fullness > 1 {
		t.Errorf("fullness out of range: %f", s.Fullness)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	meta := &models.ImageMetadata{Filename: "a.jpg", Artist: "Kiko", Extra: map[string]string{"source": "ig"}}
	_ = idx.Upsert(ctx, item("a", []float32{1, 0, 0}, meta))
	_ = idx.Upsert(ctx, item("b", []float32{0, 1, 0}, nil))

	path := filepath.Join(t.TempDir(), "vectors.bin")
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Stats().Count != 2 {
		t.Fatalf("loaded count = %d", loaded.Stats().Count)
	}
	results, err := loaded.Query(ctx, []float32{1, 0, 0}, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if results[0].ID != "a" || results[0].Metadata == nil || results[0].Metadata.Artist != "Kiko" {
		t.Errorf("loaded item wrong: %+v", results[0])
	}
	if results[0].Metadata.Extra["source"] != "ig" {
		t.Errorf("extra metadata lost: %+v", results[0].Metadata)
	}
}

func TestMemoryIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	if err := idx.Load(filepath.Join(t.TempDir(), "absent.bin")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Upsert(ctx, item("a", []float32{1, 0}, nil)); err == nil {
		t.Error("wrong-dimension upsert should error")
	}
	if _, err := idx.Query(ctx, []float32{1, 0}, 1, nil); err == nil {
		t.Error("wrong-dimension query should error")
	}
}
