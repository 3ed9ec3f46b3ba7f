//go:build cgo
// +build cgo

// Package embedding: ONNX CLIP visual encoder (requires CGO and the onnxruntime library).
package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/naild/irodori/pkg/utils"
)

// ONNXEmbedder runs a CLIP visual encoder exported to ONNX. It requires CGO
// and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	cache      *EmbeddingCache
	// Pre-allocated tensors for Run(); we update input data and read output.
	pixelTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// NewONNXEmbedder creates an ONNX CLIP embedder. InitializeEnvironment is
// called if not already done.
func NewONNXEmbedder(modelPath string, dimensions, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	pixelData := make([]float32, 3*clipInputSize*clipInputSize)
	pixelTensor, err := ort.NewTensor(ort.NewShape(1, 3, clipInputSize, clipInputSize), pixelData)
	if err != nil {
		return nil, fmt.Errorf("failed to create pixel_values tensor: %w", err)
	}
	outputData := make([]float32, dimensions)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), outputData)
	if err != nil {
		pixelTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		[]ort.ArbitraryTensor{pixelTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		pixelTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &ONNXEmbedder{
		session:      session,
		dimensions:   dimensions,
		cache:        NewEmbeddingCache(cacheSize),
		pixelTensor:  pixelTensor,
		outputTensor: outputTensor,
	}, nil
}

// Embed returns the unit-normalized CLIP embedding for the image, using the
// cache when available.
func (e *ONNXEmbedder) Embed(ctx context.Context, imageBytes []byte) ([]float32, error) {
	key := HashBytes(imageBytes)
	if cached, ok := e.cache.Get(key); ok {
		return cached, nil
	}

	pixels, err := preprocessCLIP(imageBytes)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	copy(e.pixelTensor.GetData(), pixels)
	if err := e.session.Run(); err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: ONNX inference: %v", ErrEmbeddingFailed, err)
	}
	emb := make([]float32, e.dimensions)
	copy(emb, e.outputTensor.GetData())
	e.mu.Unlock()

	utils.NormalizeL2(emb)
	e.cache.Set(key, emb)
	return emb, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.pixelTensor != nil {
		e.pixelTensor.Destroy()
		e.pixelTensor = nil
	}
	if e.outputTensor != nil {
		e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return nil
}
