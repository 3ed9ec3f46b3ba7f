// Package vector: in-memory exact index using brute-force inner product search.
package vector

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/naild/irodori/internal/models"
	"github.com/naild/irodori/pkg/utils"
)

// backendMax caps both the candidate set fetched per query and the nominal
// capacity used for the fullness statistic.
const backendMax = 10000

// MemoryIndex is an in-memory exact vector index. Suitable for the current
// catalog size (thousands of images); a managed ANN service slots in behind
// the same Index interface.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	metadata   []*models.ImageMetadata
	byID       map[string]int
	logger     *zap.Logger
	mu         sync.RWMutex
}

// MemoryOption configures a MemoryIndex.
type MemoryOption func(*MemoryIndex)

// WithLogger sets a logger for warnings (threshold fallback, skipped batch items).
func WithLogger(l *zap.Logger) MemoryOption {
	return func(m *MemoryIndex) { m.logger = l }
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int, opts ...MemoryOption) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	m := &MemoryIndex{
		dimensions: dimensions,
		byID:       make(map[string]int),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Upsert stores item, overwriting any existing entry with the same id.
// The stored vector is re-normalized so the unit-norm invariant always holds.
func (m *MemoryIndex) Upsert(ctx context.Context, item *models.IndexedItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("item must have an id")
	}
	if len(item.Embedding) != m.dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(item.Embedding), m.dimensions)
	}
	vec := make([]float32, m.dimensions)
	copy(vec, item.Embedding)
	utils.NormalizeL2(vec)

	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.byID[item.ID]; ok {
		m.vectors[i] = vec
		m.metadata[i] = item.Metadata.Clone()
		return nil
	}
	m.byID[item.ID] = len(m.ids)
	m.ids = append(m.ids, item.ID)
	m.vectors = append(m.vectors, vec)
	m.metadata = append(m.metadata, item.Metadata.Clone())
	return nil
}

// BatchUpsert stores items one by one. Failures are logged and skipped so the
// batch never aborts as a whole. Returns the number of items stored.
func (m *MemoryIndex) BatchUpsert(ctx context.Context, items []*models.IndexedItem) (int, error) {
	stored := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stored, err
		}
		if err := m.Upsert(ctx, item); err != nil {
			id := ""
			if item != nil {
				id = item.ID
			}
			m.logger.Warn("skipping item in batch upsert", zap.String("id", id), zap.Error(err))
			continue
		}
		stored++
	}
	return stored, nil
}

// Query returns up to topK hits sorted descending by score. An initial
// candidate set sized min(max(topK, topK*2), backendMax) is fetched to give
// the threshold filter headroom. If the threshold would exclude every
// candidate even though candidates exist, the threshold is discarded for this
// call and the best-available candidates are returned instead of an empty set.
func (m *MemoryIndex) Query(ctx context.Context, query []float32, topK int, opts *QueryOptions) ([]*Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	if topK <= 0 {
		return nil, nil
	}
	if opts == nil {
		opts = &QueryOptions{}
	}

	m.mu.RLock()
	candidates := m.scanLocked(query, opts.MetadataFilter)
	m.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, nil
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })

	candidateK := topK * 2
	if topK > candidateK {
		candidateK = topK
	}
	if candidateK > backendMax {
		candidateK = backendMax
	}
	if len(candidates) > candidateK {
		candidates = candidates[:candidateK]
	}

	results := candidates
	if opts.SimilarityThreshold > 0 {
		filtered := make([]*Result, 0, len(candidates))
		for _, r := range candidates {
			if r.Score >= opts.SimilarityThreshold {
				filtered = append(filtered, r)
			}
		}
		if len(filtered) == 0 {
			m.logger.Warn("similarity threshold excluded all candidates, returning best available",
				zap.Float64("threshold", opts.SimilarityThreshold),
				zap.Int("candidates", len(candidates)),
			)
		} else {
			results = filtered
		}
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) scanLocked(query []float32, filter map[string]string) []*Result {
	out := make([]*Result, 0, len(m.ids))
	for i, vec := range m.vectors {
		if len(filter) > 0 {
			meta := m.metadata[i]
			if meta == nil || !meta.Matches(filter) {
				continue
			}
		}
		score := InnerProduct(query, vec)
		out = append(out, &Result{ID: m.ids[i], Score: score, Metadata: m.metadata[i].Clone()})
	}
	return out
}

// Delete removes an item by id. Missing ids are a no-op.
func (m *MemoryIndex) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.byID[id]
	if !ok {
		return nil
	}
	last := len(m.ids) - 1
	if i != last {
		m.ids[i] = m.ids[last]
		m.vectors[i] = m.vectors[last]
		m.metadata[i] = m.metadata[last]
		m.byID[m.ids[i]] = i
	}
	m.ids = m.ids[:last]
	m.vectors = m.vectors[:last]
	m.metadata = m.metadata[:last]
	delete(m.byID, id)
	return nil
}

// Stats reports the index contents. Fullness is relative to backendMax.
func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Count:     len(m.ids),
		Dimension: m.dimensions,
		Fullness:  float64(len(m.ids)) / float64(backendMax),
	}
}

// Save persists the index to path. Directory is created if needed. Format:
// dimension (4), n (4), then per item: idLen (4), id bytes, metaLen (4),
// metadata JSON, vector (dimension*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		metaJSON, err := json.Marshal(m.metadata[i])
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", id, err)
		}
		if err := writeBlob(f, []byte(id)); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if err := writeBlob(f, metaJSON); err != nil {
			return fmt.Errorf("write metadata: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// Dimensions must match. A missing file is not an error; the index is unchanged.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = make([]string, 0, n)
	m.vectors = make([][]float32, 0, n)
	m.metadata = make([]*models.ImageMetadata, 0, n)
	m.byID = make(map[string]int, n)
	vecBuf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		idBytes, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		metaBytes, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("read metadata: %w", err)
		}
		var meta *models.ImageMetadata
		if len(metaBytes) > 0 && string(metaBytes) != "null" {
			meta = &models.ImageMetadata{}
			if err := json.Unmarshal(metaBytes, meta); err != nil {
				return fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		m.byID[string(idBytes)] = len(m.ids)
		m.ids = append(m.ids, string(idBytes))
		m.vectors = append(m.vectors, bytesToFloat32Slice(vecBuf))
		m.metadata = append(m.metadata, meta)
	}
	return nil
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func writeBlob(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBlob(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
