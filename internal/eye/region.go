// Package eye cuts canonical eye images out of a face frame.
package eye

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/geometry"
)

// Side tells which eye a region came from
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// Mirrored reports whether crops of this side are flipped horizontally so
// both eyes share one canonical orientation.
func (s Side) Mirrored() bool {
	return s == SideLeft
}

// DefaultSize is the canonical eye image size (60x36)
var DefaultSize = geometry.Size{W: 60, H: 36}

// 68-point face layout indices of the eye corners
const (
	LeftOuterCorner  = 36
	LeftInnerCorner  = 39
	RightInnerCorner = 42
	RightOuterCorner = 45

	NumFaceLandmarks = 68
)

// Corners is the pair of corner points of one eye
type Corners struct {
	Side   Side
	C1, C2 geometry.Point
}

// FaceCorners picks both eyes' corners out of a 68-point face landmark set.
// Any other length is a contract violation with the landmark predictor.
func FaceCorners(face []geometry.Point) []Corners {
	if len(face) != NumFaceLandmarks {
		panic(fmt.Sprintf("eye: face landmark set has %d points, want %d", len(face), NumFaceLandmarks))
	}
	return []Corners{
		{Side: SideLeft, C1: face[LeftOuterCorner], C2: face[LeftInnerCorner]},
		{Side: SideRight, C1: face[RightInnerCorner], C2: face[RightOuterCorner]},
	}
}

// Region is one extracted eye: the canonical image, the transform pair that
// produced it and its side.
type Region struct {
	Image     gocv.Mat // canonical grayscale crop, mirrored for SideLeft
	Transform geometry.Pair
	Side      Side
	Size      geometry.Size
}

// Inverse returns the canonical→frame transform
func (r *Region) Inverse() geometry.Transform {
	return r.Transform.Inverse
}

// Close releases the region image
func (r *Region) Close() error {
	return r.Image.Close()
}
