package vision

import (
	"image"
	"math"
	"time"

	"github.com/your-org/presence/internal/observability"
)

// Probe is the embedding computed from one captured image, ready to be
// matched against enrolled templates.
type Probe struct {
	Embedding  []float32
	BBox       [4]float32
	Confidence float32 // detector confidence, not a match score
}

// Extractor turns a captured raster into a face embedding: pick the
// highest-confidence detection, crop it, resize to a fixed square,
// grayscale, flatten and L2-normalize.
type Extractor struct {
	detector FaceDetector
	size     int
}

func NewExtractor(detector FaceDetector, size int) *Extractor {
	return &Extractor{detector: detector, size: size}
}

// EmbeddingDim returns the dimensionality of produced embeddings.
func (e *Extractor) EmbeddingDim() int {
	return e.size * e.size
}

// Extract produces a probe from raw image bytes. A nil probe with a nil
// error means no usable face: undecodable input or zero detections. Callers
// turn that into a "retry with a better photo" prompt, not a fault.
func (e *Extractor) Extract(imageData []byte) (*Probe, error) {
	img := decodeImage(imageData)
	if img == nil {
		return nil, nil
	}

	bounds := img.Bounds()
	inW, inH := e.detector.InputSize()

	start := time.Now()
	input := preprocessForDetection(img, inW, inH)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := e.detector.Detect(input, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	best := bestDetection(detections)
	if best == nil {
		return nil, nil
	}

	crop := cropRegion(img, best.BBox)
	if crop == nil {
		return nil, nil
	}

	start = time.Now()
	embedding := e.EmbedCrop(crop)
	observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

	return &Probe{
		Embedding:  embedding,
		BBox:       best.BBox,
		Confidence: best.Confidence,
	}, nil
}

// EmbedCrop computes the embedding of an already-cropped face region:
// size×size grayscale intensities flattened row-major and L2-normalized.
// A uniform black crop yields the zero vector, which later never matches.
func (e *Extractor) EmbedCrop(crop image.Image) []float32 {
	resized := resizeImage(crop, e.size, e.size)

	embedding := make([]float32, e.size*e.size)
	for y := 0; y < e.size; y++ {
		for x := 0; x < e.size; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			embedding[y*e.size+x] = float32(luma)
		}
	}

	normalize(embedding)
	return embedding
}

// normalize performs L2 normalization in-place. A zero vector is left as-is.
func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
}
