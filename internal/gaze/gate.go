package gaze

import (
	"math"
	"slices"
)

// Thresholds are the minimum heatmap peaks each landmark subset must exceed
type Thresholds struct {
	Eye    float64 `yaml:"eye"`
	Eyelid float64 `yaml:"eyelid"`
	Iris   float64 `yaml:"iris"`
}

// DefaultThresholds returns the production gate thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		Eye:    0.70,
		Eyelid: 0.75,
		Iris:   0.80,
	}
}

// Gates reports which landmark subsets are trustworthy. Each gate is
// evaluated on its own channels; none implies another.
type Gates struct {
	Eye    bool
	Eyelid bool
	Iris   bool
}

// CanEstimate reports whether a gaze direction may be computed
func (g Gates) CanEstimate() bool {
	return g.Iris && g.Eye
}

// Evaluate computes the three gates from one confidence per channel
func (t Thresholds) Evaluate(confidence []float64) Gates {
	checkLayout(len(confidence))
	return Gates{
		Eye:    slices.Min(confidence) > t.Eye,
		Eyelid: slices.Min(confidence[EyelidStart:EyelidEnd]) > t.Eyelid,
		Iris:   slices.Min(confidence[IrisStart:IrisEnd]) > t.Iris,
	}
}

// Confidence returns the peak activation of each heatmap channel
func Confidence(heatmaps [][]float32) []float64 {
	checkLayout(len(heatmaps))
	out := make([]float64, len(heatmaps))
	for i, hm := range heatmaps {
		peak := math.Inf(-1)
		for _, v := range hm {
			peak = math.Max(peak, float64(v))
		}
		out[i] = peak
	}
	return out
}
