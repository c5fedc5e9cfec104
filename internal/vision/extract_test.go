package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubDetector returns a fixed set of detections without touching ONNX.
type stubDetector struct {
	detections []Detection
	err        error
}

func (s *stubDetector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	return s.detections, s.err
}

func (s *stubDetector) InputSize() (int, int) { return 64, 64 }

// encodeTestImage renders a simple two-tone frame as PNG bytes.
func encodeTestImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{A: 255}
			if x > w/2 {
				c = color.RGBA{R: 200, G: 180, B: 160, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtractProducesUnitNormEmbedding(t *testing.T) {
	det := &stubDetector{detections: []Detection{
		{BBox: [4]float32{10, 10, 90, 90}, Confidence: 0.92},
	}}
	e := NewExtractor(det, 16)

	probe, err := e.Extract(encodeTestImage(t, 100, 100))
	require.NoError(t, err)
	require.NotNil(t, probe)

	assert.Len(t, probe.Embedding, 16*16)
	assert.Equal(t, float32(0.92), probe.Confidence)

	var sum float64
	for _, v := range probe.Embedding {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-4)
}

func TestExtractUndecodableInput(t *testing.T) {
	e := NewExtractor(&stubDetector{}, 16)
	probe, err := e.Extract([]byte("not an image"))
	assert.NoError(t, err)
	assert.Nil(t, probe)
}

func TestExtractNoDetections(t *testing.T) {
	e := NewExtractor(&stubDetector{}, 16)
	probe, err := e.Extract(encodeTestImage(t, 100, 100))
	assert.NoError(t, err)
	assert.Nil(t, probe)
}

func TestExtractPicksHighestConfidenceDetection(t *testing.T) {
	det := &stubDetector{detections: []Detection{
		{BBox: [4]float32{0, 0, 20, 20}, Confidence: 0.55},
		{BBox: [4]float32{40, 40, 80, 80}, Confidence: 0.97},
		{BBox: [4]float32{5, 60, 30, 90}, Confidence: 0.70},
	}}
	e := NewExtractor(det, 16)

	probe, err := e.Extract(encodeTestImage(t, 100, 100))
	require.NoError(t, err)
	require.NotNil(t, probe)
	assert.Equal(t, float32(0.97), probe.Confidence)
	assert.Equal(t, [4]float32{40, 40, 80, 80}, probe.BBox)
}

func TestEmbedCropBlackYieldsZeroVector(t *testing.T) {
	e := NewExtractor(&stubDetector{}, 8)
	black := image.NewRGBA(image.Rect(0, 0, 32, 32))

	embedding := e.EmbedCrop(black)
	require.Len(t, embedding, 64)
	for _, v := range embedding {
		assert.Equal(t, float32(0), v)
	}
}

func TestEmbeddingDim(t *testing.T) {
	e := NewExtractor(&stubDetector{}, 112)
	assert.Equal(t, 12544, e.EmbeddingDim())
}

func TestCropRegionDegenerateBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	assert.Nil(t, cropRegion(img, [4]float32{30, 30, 30, 30}))
	assert.Nil(t, cropRegion(img, [4]float32{200, 200, 250, 250}))
}

func TestBestDetection(t *testing.T) {
	assert.Nil(t, bestDetection(nil))

	d := bestDetection([]Detection{
		{Confidence: 0.3},
		{Confidence: 0.9},
		{Confidence: 0.6},
	})
	require.NotNil(t, d)
	assert.Equal(t, float32(0.9), d.Confidence)
}
