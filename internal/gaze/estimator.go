package gaze

import (
	"math"

	"github.com/dudu/eyegaze/internal/geometry"
)

// Estimate is one gaze result: the raw sample and the smoothed mean of the
// history including it.
type Estimate struct {
	Raw      Angles
	Smoothed Angles
}

// Direction computes gaze angles from a spherical eyeball model: the iris
// centre lies on a sphere of the given radius around the eyeball centre.
// It does not touch any history.
func Direction(iris, eyeball geometry.Point, radius float64) (Angles, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return Angles{}, ErrDegenerateGeometry
	}
	theta := -math.Asin(geometry.Clip((iris.Y-eyeball.Y)/radius, -1, 1))
	den := radius * -math.Cos(theta)
	if den == 0 || math.IsNaN(den) {
		return Angles{}, ErrDegenerateGeometry
	}
	phi := math.Asin(geometry.Clip((iris.X-eyeball.X)/den, -1, 1))
	if math.IsNaN(theta) || math.IsNaN(phi) {
		return Angles{}, ErrDegenerateGeometry
	}
	return Angles{Pitch: theta, Yaw: phi}, nil
}

// Estimator converts back-projected landmarks into smoothed gaze for one eye
type Estimator struct {
	history *History
}

// NewEstimator creates an estimator with its own history
func NewEstimator(capacity int) *Estimator {
	return &Estimator{history: NewHistory(capacity)}
}

// History exposes the estimator's sample history
func (e *Estimator) History() *History {
	return e.history
}

// Estimate gates, computes and records a gaze sample. It returns
// ErrLowConfidence when the gates forbid estimation and
// ErrDegenerateGeometry when the geometry is unusable; the history is left
// untouched in both cases so callers can hold the previous smoothed value.
func (e *Estimator) Estimate(lm Landmarks, gates Gates) (Estimate, error) {
	if !gates.CanEstimate() {
		return Estimate{}, ErrLowConfidence
	}
	raw, err := Direction(lm.IrisCenter, lm.EyeballCenter, lm.EyeballRadius)
	if err != nil {
		return Estimate{}, err
	}
	e.history.Add(raw)
	smoothed, _ := e.history.Mean()
	return Estimate{Raw: raw, Smoothed: smoothed}, nil
}

// Smoothed returns the current mean without adding a sample
func (e *Estimator) Smoothed() (Angles, bool) {
	return e.history.Mean()
}
