package augment

import (
	"errors"
	"math"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/geometry"
)

// ErrOutOfFrontalRange is returned for renders whose head pose is not close
// enough to frontal to be used.
var ErrOutOfFrontalRange = errors.New("augment: head pose out of frontal range")

// MaxHeadAngle is the largest head pitch or yaw, in degrees, accepted
const MaxHeadAngle = 20.0

// HeadPose is the render's head rotation in degrees as stored in the
// annotation: pitch wraps at 360 and yaw is offset by 180.
type HeadPose struct {
	Pitch, Yaw, Roll float64
}

// Corrected returns pitch and yaw centred on zero
func (h HeadPose) Corrected() (pitch, yaw float64) {
	pitch = h.Pitch
	if pitch > 180 {
		pitch -= 360
	}
	return pitch, h.Yaw - 180
}

// Frontal reports whether both corrected angles are within MaxHeadAngle
func (h HeadPose) Frontal() bool {
	pitch, yaw := h.Corrected()
	return math.Abs(pitch) <= MaxHeadAngle && math.Abs(yaw) <= MaxHeadAngle
}

// Annotation is one rendered eye with its ground truth, already converted to
// image coordinates (y down).
type Annotation struct {
	Image gocv.Mat // full grayscale render

	Interior []geometry.Point // interior margin, 16 points
	Caruncle []geometry.Point
	Iris     []geometry.Point // iris contour, 32 points

	LookVec  [3]float64
	HeadPose HeadPose
}

// Size returns the render dimensions
func (a *Annotation) Size() geometry.Size {
	return geometry.Size{W: a.Image.Cols(), H: a.Image.Rows()}
}
