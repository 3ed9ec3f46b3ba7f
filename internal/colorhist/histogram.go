// Package colorhist provides perceptual color profiles for catalog images:
// 3D LAB histograms and Bhattacharyya-based similarity between them.
package colorhist

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/lucasb-eyer/go-colorful"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage indicates the input bytes could not be decoded as an image.
var ErrInvalidImage = errors.New("invalid image")

// DefaultBins is the default number of bins per LAB channel (8^3 = 512 total).
const DefaultBins = 8

// LAB channel ranges used for binning. L from go-colorful is in [0,1]; the
// a/b chroma axes of the sRGB gamut fit inside [-1.1, 1.1]. Values outside
// are clamped into the edge bins so binning is total.
const (
	labAMin = -1.1
	labAMax = 1.1
)

// Histogram is a flattened bins^3 LAB histogram, L1-normalized unless the
// source image was degenerate (then all-zero, never NaN).
type Histogram []float32

// Sum returns the L1 mass of the histogram.
func (h Histogram) Sum() float64 {
	var s float64
	for _, v := range h {
		s += float64(v)
	}
	return s
}

// Extract decodes imageBytes to RGB, converts each pixel to LAB, and builds a
// flattened 3D histogram with bins per channel, L1-normalized. Identical bytes
// always yield an identical histogram.
func Extract(imageBytes []byte, bins int) (Histogram, error) {
	if bins <= 0 {
		return nil, fmt.Errorf("bins must be positive, got %d", bins)
	}
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return fromImage(img, bins), nil
}

func fromImage(img image.Image, bins int) Histogram {
	hist := make(Histogram, bins*bins*bins)
	bounds := img.Bounds()

	var total uint64
	counts := make([]uint64, len(hist))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				// Fully transparent pixel; count it as black.
				c = colorful.Color{}
			}
			l, a, b := c.Lab()
			idx := (binIndex(l, 0, 1, bins)*bins+binIndex(a, labAMin, labAMax, bins))*bins +
				binIndex(b, labAMin, labAMax, bins)
			counts[idx]++
			total++
		}
	}

	if total == 0 {
		return hist
	}
	inv := 1.0 / float64(total)
	for i, c := range counts {
		hist[i] = float32(float64(c) * inv)
	}
	return hist
}

func binIndex(v, min, max float64, bins int) int {
	if v <= min {
		return 0
	}
	if v >= max {
		return bins - 1
	}
	idx := int((v - min) / (max - min) * float64(bins))
	if idx >= bins {
		idx = bins - 1
	}
	return idx
}
