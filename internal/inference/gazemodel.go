package inference

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
)

// GazeModelConfig describes the eye landmark model's tensors
type GazeModelConfig struct {
	ModelPath   string
	EyeSize     geometry.Size // canonical input, 60x36
	HeatmapSize geometry.Size // per-landmark output map
}

// DefaultGazeModelConfig returns the shapes of the bundled model
func DefaultGazeModelConfig() GazeModelConfig {
	return GazeModelConfig{
		ModelPath:   "models/eye_landmarks.onnx",
		EyeSize:     geometry.Size{W: 60, H: 36},
		HeatmapSize: geometry.Size{W: 30, H: 18},
	}
}

// Tensor names of the eye landmark model
var (
	gazeInputNames  = []string{"eye"}
	gazeOutputNames = []string{"heatmaps", "landmarks", "radius"}
)

// GazeModel predicts eye landmarks, heatmaps and eyeball radius from a
// canonical eye image.
type GazeModel struct {
	session *Session
	cfg     GazeModelConfig
	mu      sync.Mutex
}

// NewGazeModel loads the eye landmark model
func NewGazeModel(cfg GazeModelConfig) (*GazeModel, error) {
	session, err := NewSession(cfg.ModelPath, gazeInputNames, gazeOutputNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create gaze session: %w", err)
	}
	return &GazeModel{session: session, cfg: cfg}, nil
}

// Infer runs the model on one canonical 8-bit grayscale eye image
func (m *GazeModel) Infer(eye gocv.Mat) (*gaze.Prediction, error) {
	if eye.Rows() != m.cfg.EyeSize.H || eye.Cols() != m.cfg.EyeSize.W {
		return nil, fmt.Errorf("eye image is %dx%d, want %dx%d",
			eye.Cols(), eye.Rows(), m.cfg.EyeSize.W, m.cfg.EyeSize.H)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, w := int64(m.cfg.EyeSize.H), int64(m.cfg.EyeSize.W)
	input, err := CreateTensor([]int64{1, 1, h, w}, GrayToFloat32(eye))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer input.Destroy()

	hh, hw := int64(m.cfg.HeatmapSize.H), int64(m.cfg.HeatmapSize.W)
	heatmaps, err := CreateEmptyTensor[float32]([]int64{1, gaze.NumLandmarks, hh, hw})
	if err != nil {
		return nil, fmt.Errorf("failed to create heatmap tensor: %w", err)
	}
	defer heatmaps.Destroy()

	landmarks, err := CreateEmptyTensor[float32]([]int64{1, gaze.NumLandmarks, 2})
	if err != nil {
		return nil, fmt.Errorf("failed to create landmark tensor: %w", err)
	}
	defer landmarks.Destroy()

	radius, err := CreateEmptyTensor[float32]([]int64{1, 1})
	if err != nil {
		return nil, fmt.Errorf("failed to create radius tensor: %w", err)
	}
	defer radius.Destroy()

	err = m.session.Run([]ort.Value{input}, []ort.Value{heatmaps, landmarks, radius})
	if err != nil {
		return nil, fmt.Errorf("gaze inference failed: %w", err)
	}

	return decodePrediction(heatmaps.GetData(), landmarks.GetData(), radius.GetData(), int(hh*hw)), nil
}

// decodePrediction splits flat model outputs into a Prediction. The slices
// are copied since tensor memory is released after Infer returns.
func decodePrediction(heatmaps, landmarks, radius []float32, cells int) *gaze.Prediction {
	p := &gaze.Prediction{
		Landmarks: make([]geometry.Point, gaze.NumLandmarks),
		Heatmaps:  make([][]float32, gaze.NumLandmarks),
		Radius:    float64(radius[0]),
	}
	for i := range gaze.NumLandmarks {
		p.Landmarks[i] = geometry.Pt(float64(landmarks[2*i]), float64(landmarks[2*i+1]))
		p.Heatmaps[i] = append([]float32(nil), heatmaps[i*cells:(i+1)*cells]...)
	}
	return p
}

// Close releases the model session
func (m *GazeModel) Close() error {
	return m.session.Destroy()
}
