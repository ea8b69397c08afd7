// Package gaze turns predicted eye landmarks into a smoothed gaze direction.
package gaze

import (
	"errors"
	"fmt"

	"github.com/dudu/eyegaze/internal/geometry"
)

// Eye landmark layout shared by the inference model and the synthetic
// training targets. Do not reorder.
const (
	EyelidStart   = 0
	EyelidEnd     = 8
	IrisStart     = 8
	IrisEnd       = 16
	IrisCenter    = 16
	EyeballCenter = 17

	NumLandmarks = 18
)

var (
	// ErrLowConfidence is returned when the confidence gates reject the eye
	ErrLowConfidence = errors.New("gaze: confidence too low")

	// ErrDegenerateGeometry is returned for a zero radius or zero denominator
	ErrDegenerateGeometry = geometry.ErrDegenerateGeometry
)

// Angles is a gaze direction in radians
type Angles struct {
	Pitch float64 // vertical deviation
	Yaw   float64 // horizontal deviation
}

func checkLayout(n int) {
	if n != NumLandmarks {
		panic(fmt.Sprintf("gaze: eye landmark set has %d points, want %d", n, NumLandmarks))
	}
}
