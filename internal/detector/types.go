package detector

import (
	"image"

	"github.com/dudu/eyegaze/internal/geometry"
)

// BoundingBox represents a face bounding box
type BoundingBox struct {
	X1, Y1 float64 // top-left
	X2, Y2 float64 // bottom-right
}

// Width returns box width
func (b BoundingBox) Width() float64 {
	return b.X2 - b.X1
}

// Height returns box height
func (b BoundingBox) Height() float64 {
	return b.Y2 - b.Y1
}

// Center returns box center point
func (b BoundingBox) Center() geometry.Point {
	return geometry.Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Area returns box area
func (b BoundingBox) Area() float64 {
	return b.Width() * b.Height()
}

// Rect returns the box as an integer rectangle for drawing
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rectangle{
		Min: geometry.Pt(b.X1, b.Y1).Image(),
		Max: geometry.Pt(b.X2, b.Y2).Image(),
	}
}

// Keypoints represents the 5 coarse facial points a detector reports
type Keypoints struct {
	LeftEye    geometry.Point // index 0
	RightEye   geometry.Point // index 1
	Nose       geometry.Point // index 2
	LeftMouth  geometry.Point // index 3
	RightMouth geometry.Point // index 4
}

// Face represents a detected face
type Face struct {
	BoundingBox BoundingBox
	Keypoints   Keypoints
	Score       float32
}

// Regions of the 68-point face layout, named from the image's point of view
var (
	JawIndices       = span(0, 17)
	LeftBrowIndices  = span(17, 22)
	RightBrowIndices = span(22, 27)
	NoseIndices      = span(27, 36)
	LeftEyeIndices   = span(36, 42)
	RightEyeIndices  = span(42, 48)
	MouthIndices     = span(48, 68)
)

func span(from, to int) []int {
	out := make([]int, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, i)
	}
	return out
}

// GetPoints picks points by index, skipping indices out of range
func GetPoints(pts []geometry.Point, indices []int) []geometry.Point {
	out := make([]geometry.Point, 0, len(indices))
	for _, idx := range indices {
		if idx < len(pts) {
			out = append(out, pts[idx])
		}
	}
	return out
}
