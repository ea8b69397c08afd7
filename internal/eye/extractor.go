package eye

import (
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/geometry"
)

// Extractor warps eye regions of a grayscale frame into canonical space
type Extractor struct {
	size geometry.Size
}

// NewExtractor creates an extractor producing crops of the given size
func NewExtractor(size geometry.Size) *Extractor {
	return &Extractor{size: size}
}

// Size returns the canonical output size
func (x *Extractor) Size() geometry.Size {
	return x.size
}

// Extract produces one Region per eye. Eyes whose corners coincide have no
// region to emit; their sides are returned in skipped. The caller owns the
// returned regions and must Close them.
func (x *Extractor) Extract(gray gocv.Mat, eyes []Corners) (regions []Region, skipped []Side) {
	for _, c := range eyes {
		pair, err := geometry.EyeTransform(c.C1, c.C2, x.size)
		if err != nil {
			skipped = append(skipped, c.Side)
			continue
		}
		regions = append(regions, Region{
			Image:     x.warp(gray, pair.Forward, c.Side.Mirrored()),
			Transform: pair,
			Side:      c.Side,
			Size:      x.size,
		})
	}
	return regions, skipped
}

// warp applies the forward transform and mirrors the crop if requested
func (x *Extractor) warp(gray gocv.Mat, t geometry.Transform, mirror bool) gocv.Mat {
	m := AffineMat(t)
	defer m.Close()

	crop := gocv.NewMat()
	gocv.WarpAffine(gray, &crop, m, x.size.Image())
	if !mirror {
		return crop
	}

	flipped := gocv.NewMat()
	gocv.Flip(crop, &flipped, 1)
	crop.Close()
	return flipped
}

// AffineMat converts t into the 2x3 CV64F matrix gocv.WarpAffine expects
func AffineMat(t geometry.Transform) gocv.Mat {
	a := t.Affine()
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	for i, v := range a {
		m.SetDoubleAt(i/3, i%3, v)
	}
	return m
}
