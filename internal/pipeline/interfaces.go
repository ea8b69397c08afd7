// Package pipeline runs the per-frame gaze tracking chain: face detection,
// face landmarks, eye extraction, eye model inference and gaze estimation.
package pipeline

import (
	"errors"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/detector"
	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
)

// ErrNoFaceDetected is returned when a frame contains no face
var ErrNoFaceDetected = errors.New("pipeline: no face detected")

// FaceDetector finds faces in a BGR frame, best first
type FaceDetector interface {
	Detect(img gocv.Mat) ([]detector.Face, error)
	Close() error
}

// LandmarkPredictor predicts the 68-point face layout of a detected face
type LandmarkPredictor interface {
	Predict(img gocv.Mat, face detector.Face) ([]geometry.Point, error)
	Close() error
}

// InferenceEngine predicts eye landmarks from a canonical eye image
type InferenceEngine interface {
	Infer(eye gocv.Mat) (*gaze.Prediction, error)
	Close() error
}
