package geometry

import (
	"errors"
	"math"
)

// ErrDegenerateGeometry is returned when a transform cannot be built because
// the reference geometry collapses (zero eye width, zero gaze denominator).
var ErrDegenerateGeometry = errors.New("geometry: degenerate geometry")

// Transform is a row-major 3x3 homogeneous matrix for an affine map of the
// plane. It is a value type; every operation returns a new Transform.
type Transform [9]float64

// Identity returns the identity transform
func Identity() Transform {
	return Transform{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Translation returns a transform moving points by (tx, ty)
func Translation(tx, ty float64) Transform {
	return Transform{
		1, 0, tx,
		0, 1, ty,
		0, 0, 1,
	}
}

// Rotation returns the rotation by theta radians about the origin
func Rotation(theta float64) Transform {
	c, s := math.Cos(theta), math.Sin(theta)
	return Transform{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	}
}

// Scaling returns an isotropic scale by s
func Scaling(s float64) Transform {
	return Transform{
		s, 0, 0,
		0, s, 0,
		0, 0, 1,
	}
}

// At returns the element at row r, column c
func (t Transform) At(r, c int) float64 {
	return t[r*3+c]
}

// Mul returns the composition t∘o: o is applied first, then t.
func (t Transform) Mul(o Transform) Transform {
	var out Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = t[r*3]*o[c] + t[r*3+1]*o[3+c] + t[r*3+2]*o[6+c]
		}
	}
	return out
}

// Transpose returns the transposed matrix (the inverse of a pure rotation)
func (t Transform) Transpose() Transform {
	return Transform{
		t[0], t[3], t[6],
		t[1], t[4], t[7],
		t[2], t[5], t[8],
	}
}

// Apply maps p through t, dividing out the homogeneous coordinate
func (t Transform) Apply(p Point) Point {
	x := t[0]*p.X + t[1]*p.Y + t[2]
	y := t[3]*p.X + t[4]*p.Y + t[5]
	w := t[6]*p.X + t[7]*p.Y + t[8]
	if w != 1 && w != 0 {
		return Point{X: x / w, Y: y / w}
	}
	return Point{X: x, Y: y}
}

// ApplyAll maps every point of pts through t
func (t Transform) ApplyAll(pts []Point) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = t.Apply(p)
	}
	return out
}

// ApplyVec3 multiplies the 3-vector v by t without a homogeneous divide.
// With a rotation-only transform this rotates v about the z axis.
func (t Transform) ApplyVec3(v [3]float64) [3]float64 {
	return [3]float64{
		t[0]*v[0] + t[1]*v[1] + t[2]*v[2],
		t[3]*v[0] + t[4]*v[1] + t[5]*v[2],
		t[6]*v[0] + t[7]*v[1] + t[8]*v[2],
	}
}

// Affine returns the top two rows in the 2x3 layout gocv.WarpAffine expects
func (t Transform) Affine() [6]float64 {
	return [6]float64{t[0], t[1], t[2], t[3], t[4], t[5]}
}

// Step is one sub-transform together with its exact inverse
type Step struct {
	Forward Transform
	Inverse Transform
}

// TranslateStep moves (tx, ty); its inverse moves (-tx, -ty)
func TranslateStep(tx, ty float64) Step {
	return Step{Forward: Translation(tx, ty), Inverse: Translation(-tx, -ty)}
}

// RotateStep rotates by theta; its inverse is the transpose
func RotateStep(theta float64) Step {
	r := Rotation(theta)
	return Step{Forward: r, Inverse: r.Transpose()}
}

// ScaleStep scales by s, which must be non-zero
func ScaleStep(s float64) Step {
	return Step{Forward: Scaling(s), Inverse: Scaling(1 / s)}
}

// IdentityStep does nothing
func IdentityStep() Step {
	return Step{Forward: Identity(), Inverse: Identity()}
}

// Pair is a forward transform and its inverse. The inverse is assembled from
// the inverted sub-transforms in reverse order, never by numerically
// inverting the composed forward matrix.
type Pair struct {
	Forward Transform
	Inverse Transform
}

// Chain composes steps in application order: steps[0] is applied first.
func Chain(steps ...Step) Pair {
	p := Pair{Forward: Identity(), Inverse: Identity()}
	for _, s := range steps {
		p.Forward = s.Forward.Mul(p.Forward)
		p.Inverse = p.Inverse.Mul(s.Inverse)
	}
	return p
}
