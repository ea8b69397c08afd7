package detector

import (
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/eye"
	"github.com/dudu/eyegaze/internal/geometry"
	"github.com/dudu/eyegaze/internal/inference"
)

// LandmarkConfig describes the 68-point landmark model
type LandmarkConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
	InputSize  int     // square RGB input
	Expand     float64 // crop side as a multiple of the larger box side
	Mean       float64
	Std        float64
}

// DefaultLandmarkConfig returns settings for a PFLD-style 112px model with
// outputs normalized to the crop.
func DefaultLandmarkConfig() LandmarkConfig {
	return LandmarkConfig{
		ModelPath:  "models/face_landmarks_68.onnx",
		InputName:  "input",
		OutputName: "output",
		InputSize:  112,
		Expand:     1.2,
		Mean:       0,
		Std:        255,
	}
}

// Landmark68 predicts the 68-point face layout inside a detected face box
type Landmark68 struct {
	session *inference.Session
	cfg     LandmarkConfig
	mu      sync.Mutex
}

// NewLandmark68 creates a 68-point landmark predictor
func NewLandmark68(cfg LandmarkConfig) (*Landmark68, error) {
	session, err := inference.NewSession(cfg.ModelPath, []string{cfg.InputName}, []string{cfg.OutputName})
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark session: %w", err)
	}
	return &Landmark68{session: session, cfg: cfg}, nil
}

// Predict returns the 68 landmarks of face in frame coordinates
func (l *Landmark68) Predict(img gocv.Mat, face Face) ([]geometry.Point, error) {
	pair, err := cropTransform(face.BoundingBox, l.cfg.InputSize, l.cfg.Expand)
	if err != nil {
		return nil, err
	}

	M := eye.AffineMat(pair.Forward)
	defer M.Close()

	size := geometry.Size{W: l.cfg.InputSize, H: l.cfg.InputSize}
	aligned := gocv.NewMat()
	defer aligned.Close()
	gocv.WarpAffine(img, &aligned, M, size.Image())

	// (x - mean) / std, BGR to RGB, HWC to NCHW
	blob := gocv.BlobFromImage(aligned, 1/l.cfg.Std, size.Image(),
		gocv.NewScalar(l.cfg.Mean, l.cfg.Mean, l.cfg.Mean, 0), true, false)
	defer blob.Close()

	floatData := inference.BytesToFloat32(blob.ToBytes())
	n := int64(l.cfg.InputSize)

	l.mu.Lock()
	defer l.mu.Unlock()

	inputTensor, err := inference.CreateTensor([]int64{1, 3, n, n}, floatData)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// (1, 136) = 68 landmarks * 2 coords
	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, 2 * eye.NumFaceLandmarks})
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := l.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return nil, fmt.Errorf("landmark inference failed: %w", err)
	}

	return postprocess(outputTensor.GetData(), l.cfg.InputSize, pair.Inverse), nil
}

// cropTransform maps the frame to a square crop centred on the box. The
// crop side is expand times the larger box side.
func cropTransform(b BoundingBox, inputSize int, expand float64) (geometry.Pair, error) {
	side := math.Max(b.Width(), b.Height()) * expand
	if side <= 0 {
		return geometry.Pair{}, fmt.Errorf("face box %vx%v: %w", b.Width(), b.Height(), geometry.ErrDegenerateGeometry)
	}
	c := b.Center()
	half := float64(inputSize) / 2
	return geometry.Chain(
		geometry.TranslateStep(-c.X, -c.Y),
		geometry.ScaleStep(float64(inputSize)/side),
		geometry.TranslateStep(half, half),
	), nil
}

// postprocess scales [0, 1] crop coordinates to pixels and maps them back
// to the frame.
func postprocess(output []float32, inputSize int, inverse geometry.Transform) []geometry.Point {
	pts := make([]geometry.Point, eye.NumFaceLandmarks)
	s := float64(inputSize)
	for i := range pts {
		pts[i] = inverse.Apply(geometry.Pt(float64(output[2*i])*s, float64(output[2*i+1])*s))
	}
	return pts
}

// Close releases predictor resources
func (l *Landmark68) Close() error {
	return l.session.Destroy()
}
