package geometry

import "math"

// EyeWidthFactor is how much wider than the corner-to-corner distance the
// canonical crop is.
const EyeWidthFactor = 1.5

// EyeCrop describes how an eye is normalised into the canonical image
type EyeCrop struct {
	Center Point   // midpoint of the two eye corners
	Roll   float64 // radians, arctan of corner dy/dx
	Scale  float64 // canonical pixels per frame pixel
	Out    Size
}

// Roll returns the eye roll angle for the corner pair. It is zero when both
// corners share an x coordinate.
func Roll(c1, c2 Point) float64 {
	if c1.X == c2.X {
		return 0
	}
	return math.Atan((c2.Y - c1.Y) / (c2.X - c1.X))
}

// NewEyeCrop measures an eye from its two corners. It fails with
// ErrDegenerateGeometry when the corners coincide.
func NewEyeCrop(c1, c2 Point, out Size) (EyeCrop, error) {
	eyeWidth := EyeWidthFactor * c1.Dist(c2)
	if eyeWidth == 0 {
		return EyeCrop{}, ErrDegenerateGeometry
	}
	return EyeCrop{
		Center: c1.Mid(c2),
		Roll:   Roll(c1, c2),
		Scale:  float64(out.W) / eyeWidth,
		Out:    out,
	}, nil
}

// Pair builds the frame→canonical transform as Center∘Scale∘Rotate∘Translate
// and its exact inverse.
func (e EyeCrop) Pair() Pair {
	half := e.Out.Center()
	return Chain(
		TranslateStep(-e.Center.X, -e.Center.Y),
		RotateStep(-e.Roll),
		ScaleStep(e.Scale),
		TranslateStep(half.X, half.Y),
	)
}

// EyeTransform is NewEyeCrop followed by Pair
func EyeTransform(c1, c2 Point, out Size) (Pair, error) {
	crop, err := NewEyeCrop(c1, c2, out)
	if err != nil {
		return Pair{}, err
	}
	return crop.Pair(), nil
}
