package vision

import (
	"fmt"
	"math"
	"sort"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Detection represents one detected face region.
type Detection struct {
	BBox       [4]float32 // x1, y1, x2, y2 (pixel coordinates)
	Confidence float32
}

// FaceDetector locates candidate face regions in a preprocessed image.
// Zero detections is a normal outcome, not an error.
type FaceDetector interface {
	Detect(imgData []float32, origW, origH int) ([]Detection, error)
	InputSize() (int, int)
}

// Detector runs YOLOv8-face detection using ONNX Runtime. Construct it once
// in main and share it; runs are serialized on the pre-allocated tensors.
type Detector struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	threshold    float32
	inputW       int
	inputH       int
}

// yolov8n-face head: one output [1, 5, 8400] — cx, cy, w, h, score per anchor.
const yoloAnchors = 8400

// NewDetector loads the YOLOv8-face ONNX model.
// opts may be nil (ORT defaults) or a pre-configured *ort.SessionOptions.
func NewDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*Detector, error) {
	inputW, inputH := 640, 640

	inputShape := ort.NewShape(1, 3, int64(inputH), int64(inputW))
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, 5, yoloAnchors)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{inputTensor},
		[]ort.Value{outputTensor},
		opts,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create detector session: %w", err)
	}

	return &Detector{
		session:      session,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
		threshold:    threshold,
		inputW:       inputW,
		inputH:       inputH,
	}, nil
}

// Detect runs face detection on a preprocessed image.
// imgData should be CHW format [3, inputH, inputW], normalized to [0,1].
// origW/origH are the original image dimensions for coordinate scaling.
func (d *Detector) Detect(imgData []float32, origW, origH int) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	inputSlice := d.inputTensor.GetData()
	copy(inputSlice, imgData)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}

	detections := d.parseDetections(origW, origH)
	detections = nms(detections, 0.4)

	return detections, nil
}

// parseDetections decodes the [1, 5, 8400] YOLO output. The tensor is laid
// out channel-major: all cx, then all cy, w, h, score.
func (d *Detector) parseDetections(origW, origH int) []Detection {
	out := d.outputTensor.GetData()

	scaleW := float32(origW) / float32(d.inputW)
	scaleH := float32(origH) / float32(d.inputH)

	var detections []Detection
	for i := 0; i < yoloAnchors; i++ {
		score := out[4*yoloAnchors+i]
		if score < d.threshold {
			continue
		}

		cx := out[0*yoloAnchors+i]
		cy := out[1*yoloAnchors+i]
		w := out[2*yoloAnchors+i]
		h := out[3*yoloAnchors+i]

		x1 := clampF((cx-w/2)*scaleW, 0, float32(origW))
		y1 := clampF((cy-h/2)*scaleH, 0, float32(origH))
		x2 := clampF((cx+w/2)*scaleW, 0, float32(origW))
		y2 := clampF((cy+h/2)*scaleH, 0, float32(origH))

		detections = append(detections, Detection{
			BBox:       [4]float32{x1, y1, x2, y2},
			Confidence: score,
		})
	}

	return detections
}

// InputSize returns the model's expected input dimensions.
func (d *Detector) InputSize() (int, int) {
	return d.inputW, d.inputH
}

func (d *Detector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.inputTensor != nil {
		d.inputTensor.Destroy()
	}
	if d.outputTensor != nil {
		d.outputTensor.Destroy()
	}
}

// bestDetection returns the highest-confidence detection, or nil if none.
func bestDetection(detections []Detection) *Detection {
	if len(detections) == 0 {
		return nil
	}
	best := &detections[0]
	for i := 1; i < len(detections); i++ {
		if detections[i].Confidence > best.Confidence {
			best = &detections[i]
		}
	}
	return best
}

// nms performs Non-Maximum Suppression on detections.
func nms(detections []Detection, iouThreshold float32) []Detection {
	if len(detections) == 0 {
		return detections
	}

	sort.Slice(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	keep := make([]bool, len(detections))
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < len(detections); i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < len(detections); j++ {
			if !keep[j] {
				continue
			}
			if iou(detections[i].BBox, detections[j].BBox) > iouThreshold {
				keep[j] = false
			}
		}
	}

	var result []Detection
	for i, d := range detections {
		if keep[i] {
			result = append(result, d)
		}
	}
	return result
}

func iou(a, b [4]float32) float32 {
	x1 := float32(math.Max(float64(a[0]), float64(b[0])))
	y1 := float32(math.Max(float64(a[1]), float64(b[1])))
	x2 := float32(math.Min(float64(a[2]), float64(b[2])))
	y2 := float32(math.Min(float64(a[3]), float64(b[3])))

	intersection := float32(math.Max(0, float64(x2-x1))) * float32(math.Max(0, float64(y2-y1)))

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	union := areaA + areaB - intersection

	if union <= 0 {
		return 0
	}
	return intersection / union
}

func clampF(v, min, max float32) float32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
