package embedding

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// clipInputSize is the square input resolution of the CLIP visual encoder.
const clipInputSize = 224

// CLIP image normalization constants (per-channel mean and std over RGB).
var (
	clipMean = [3]float32{0.48145466, 0.4578275, 0.40821073}
	clipStd  = [3]float32{0.26862954, 0.26130258, 0.27577711}
)

// decodeImage decodes raw bytes into an image, or fails with ErrEmbeddingFailed.
func decodeImage(imageBytes []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(imageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %v", ErrEmbeddingFailed, err)
	}
	return img, nil
}

// preprocessCLIP decodes, resizes to 224x224 with Catmull-Rom resampling, and
// returns normalized pixel values in NCHW layout (1, 3, 224, 224).
func preprocessCLIP(imageBytes []byte) ([]float32, error) {
	img, err := decodeImage(imageBytes)
	if err != nil {
		return nil, err
	}

	resized := image.NewRGBA(image.Rect(0, 0, clipInputSize, clipInputSize))
	xdraw.CatmullRom.Scale(resized, resized.Bounds(), img, img.Bounds(), xdraw.Src, nil)

	const plane = clipInputSize * clipInputSize
	out := make([]float32, 3*plane)
	for y := 0; y < clipInputSize; y++ {
		for x := 0; x < clipInputSize; x++ {
			o := resized.PixOffset(x, y)
			r := float32(resized.Pix[o]) / 255.0
			g := float32(resized.Pix[o+1]) / 255.0
			b := float32(resized.Pix[o+2]) / 255.0
			i := y*clipInputSize + x
			out[i] = (r - clipMean[0]) / clipStd[0]
			out[plane+i] = (g - clipMean[1]) / clipStd[1]
			out[2*plane+i] = (b - clipMean[2]) / clipStd[2]
		}
	}
	return out, nil
}

// HashBytes returns the hex sha256 of b; used as the cache key for embeddings.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
