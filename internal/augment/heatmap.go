package augment

import (
	"math"

	"github.com/dudu/eyegaze/internal/geometry"
)

// Gaussian2D renders a row-major h×w grid with a unit-peak Gaussian blob
// at centre, sampled at pixel centres.
func Gaussian2D(size geometry.Size, centre geometry.Point, sigma float64) []float32 {
	out := make([]float32, size.W*size.H)
	alpha := -0.5 / (sigma * sigma)
	for y := 0; y < size.H; y++ {
		dy := float64(y) + 0.5 - centre.Y
		for x := 0; x < size.W; x++ {
			dx := float64(x) + 0.5 - centre.X
			out[y*size.W+x] = float32(math.Exp(alpha * (dx*dx + dy*dy)))
		}
	}
	return out
}

// Heatmaps renders one blob per landmark on a grid scaled from the
// canonical size.
func Heatmaps(landmarks []geometry.Point, canonical geometry.Size, scale, sigma float64) [][]float32 {
	size := geometry.Size{
		W: int(math.Round(scale * float64(canonical.W))),
		H: int(math.Round(scale * float64(canonical.H))),
	}
	out := make([][]float32, len(landmarks))
	for i, lm := range landmarks {
		out[i] = Gaussian2D(size, lm.Scale(scale), sigma)
	}
	return out
}
