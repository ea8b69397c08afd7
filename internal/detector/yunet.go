package detector

import (
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/geometry"
)

// Config holds face detector configuration
type Config struct {
	ModelPath      string  // path to the YuNet ONNX model
	ScoreThreshold float64 // minimum face score (default 0.6)
	NMSThreshold   float64 // overlap suppression threshold (default 0.3)
	TopK           int     // candidates kept before NMS (default 5000)
	InputWidth     int     // initial input size, updated per frame
	InputHeight    int     // initial input size, updated per frame
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ModelPath:      "models/face_detection_yunet_2023mar.onnx",
		ScoreThreshold: 0.6,
		NMSThreshold:   0.3,
		TopK:           5000,
		InputWidth:     320,
		InputHeight:    320,
	}
}

// YuNet uses OpenCV's FaceDetectorYN for face detection
type YuNet struct {
	detector gocv.FaceDetectorYN
	config   Config
	mu       sync.Mutex // protects inference
}

// NewYuNet creates a YuNet face detector
func NewYuNet(cfg Config) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"",
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ScoreThreshold),
		float32(cfg.NMSThreshold),
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in a BGR frame, best score first
func (d *YuNet) Detect(img gocv.Mat) ([]Face, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	out := gocv.NewMat()
	defer out.Close()
	d.detector.Detect(img, &out)

	faces := make([]Face, 0, out.Rows())
	for r := 0; r < out.Rows(); r++ {
		row := make([]float64, yunetColumns)
		for c := range row {
			row[c] = float64(out.GetFloatAt(r, c))
		}
		faces = append(faces, parseYuNetRow(row))
	}

	sort.Slice(faces, func(i, j int) bool {
		return faces[i].Score > faces[j].Score
	})
	return faces, nil
}

// Close releases the detector resources
func (d *YuNet) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector.Close()
	return nil
}

// YuNet output rows have 15 columns:
// 0-3 box x, y, w, h; 4-13 five keypoints as x,y pairs; 14 score.
const yunetColumns = 15

func parseYuNetRow(row []float64) Face {
	x, y, w, h := row[0], row[1], row[2], row[3]
	kp := func(i int) geometry.Point {
		return geometry.Pt(row[4+2*i], row[5+2*i])
	}
	return Face{
		BoundingBox: BoundingBox{X1: x, Y1: y, X2: x + w, Y2: y + h},
		Keypoints: Keypoints{
			LeftEye:    kp(0),
			RightEye:   kp(1),
			Nose:       kp(2),
			LeftMouth:  kp(3),
			RightMouth: kp(4),
		},
		Score: float32(row[14]),
	}
}
