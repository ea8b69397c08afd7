// Package geometry holds the plane geometry shared by the runtime eye
// extractor and the synthetic augmentation engine: points, immutable 3x3
// homogeneous transforms and the eye-crop transform pair.
package geometry

import (
	"image"
	"math"
)

// Point represents a 2D point
type Point struct {
	X, Y float64
}

// Pt is shorthand for Point{X: x, Y: y}
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns p+q
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p-q
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Scale returns p*s
func (p Point) Scale(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Dist returns the Euclidean distance between p and q
func (p Point) Dist(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Mid returns the midpoint of p and q
func (p Point) Mid(q Point) Point {
	return Point{X: 0.5 * (p.X + q.X), Y: 0.5 * (p.Y + q.Y)}
}

// Image rounds p to the nearest pixel
func (p Point) Image() image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

// Size is an image size in pixels
type Size struct {
	W, H int
}

// Image returns the size as an image.Point (width, height) as gocv expects
func (s Size) Image() image.Point {
	return image.Pt(s.W, s.H)
}

// Center returns the geometric centre of an image of this size
func (s Size) Center() Point {
	return Point{X: 0.5 * float64(s.W), Y: 0.5 * float64(s.H)}
}

// Mean returns the centroid of pts. The centroid of no points is the origin.
func Mean(pts []Point) Point {
	if len(pts) == 0 {
		return Point{}
	}
	var c Point
	for _, p := range pts {
		c.X += p.X
		c.Y += p.Y
	}
	return c.Scale(1 / float64(len(pts)))
}

// Bounds returns the component-wise minimum and maximum of pts
func Bounds(pts []Point) (lo, hi Point) {
	if len(pts) == 0 {
		return Point{}, Point{}
	}
	lo, hi = pts[0], pts[0]
	for _, p := range pts[1:] {
		lo.X = math.Min(lo.X, p.X)
		lo.Y = math.Min(lo.Y, p.Y)
		hi.X = math.Max(hi.X, p.X)
		hi.Y = math.Max(hi.Y, p.Y)
	}
	return lo, hi
}
