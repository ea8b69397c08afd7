package gaze

import "github.com/dudu/eyegaze/internal/geometry"

// Prediction is the model output for one canonical eye image
type Prediction struct {
	Landmarks []geometry.Point // NumLandmarks canonical-space points
	Heatmaps  [][]float32      // one row-major map per landmark
	Radius    float64          // canonical-space eyeball radius
}

// Confidence returns the per-channel heatmap peaks
func (p *Prediction) Confidence() []float64 {
	return Confidence(p.Heatmaps)
}
