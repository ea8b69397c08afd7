// Package augment generates synthetic eye training examples from annotated
// 3D eye renders, with noise scaled by a curriculum difficulty.
package augment

import (
	"fmt"
	"sort"
)

// Type names one kind of augmentation noise
type Type string

const (
	Translation  Type = "translation"
	Rotation     Type = "rotation"
	Intensity    Type = "intensity"
	Blur         Type = "blur"
	Scale        Type = "scale"
	Rescale      Type = "rescale"
	NumLine      Type = "num_line"
	HeatmapSigma Type = "heatmap_sigma"
)

// Range is the nominal value of a noise type at difficulty 0 (Easy) and at
// difficulty 1 (Hard). Hard may be smaller than Easy.
type Range struct {
	Easy float64 `yaml:"easy"`
	Hard float64 `yaml:"hard"`
}

// Ranges maps every augmentation type to its range. Treat it as read-only
// once engines are built from it; use With to derive a modified copy.
type Ranges map[Type]Range

// DefaultRanges returns the standard curriculum table
func DefaultRanges() Ranges {
	return Ranges{
		Translation:  {Easy: 2.0, Hard: 10.0},
		Rotation:     {Easy: 0.1, Hard: 2.0},
		Intensity:    {Easy: 0.5, Hard: 20.0},
		Blur:         {Easy: 0.1, Hard: 1.0},
		Scale:        {Easy: 0.01, Hard: 0.1},
		Rescale:      {Easy: 1.0, Hard: 0.2},
		NumLine:      {Easy: 0.0, Hard: 2.0},
		HeatmapSigma: {Easy: 5.0, Hard: 2.5},
	}
}

// Types returns the known types in a stable order
func (r Ranges) Types() []Type {
	out := make([]Type, 0, len(r))
	for t := range r {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// With returns a copy of r with the range of t replaced. t must already be
// a known type.
func (r Ranges) With(t Type, easy, hard float64) (Ranges, error) {
	if _, ok := r[t]; !ok {
		return nil, fmt.Errorf("unknown augmentation type %q", t)
	}
	out := make(Ranges, len(r))
	for k, v := range r {
		out[k] = v
	}
	out[t] = Range{Easy: easy, Hard: hard}
	return out, nil
}

// Merge returns a copy of r with every entry of o applied through With
func (r Ranges) Merge(o Ranges) (Ranges, error) {
	out := r
	for t, v := range o {
		var err error
		if out, err = out.With(t, v.Easy, v.Hard); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Value interpolates the range of t at the given difficulty, clipped to the
// range whichever way round it runs. Unknown types panic.
func (r Ranges) Value(t Type, difficulty float64) float64 {
	rg, ok := r[t]
	if !ok {
		panic(fmt.Sprintf("augment: unknown augmentation type %q", t))
	}
	v := (rg.Hard-rg.Easy)*difficulty + rg.Easy
	lo, hi := rg.Easy, rg.Hard
	if lo > hi {
		lo, hi = hi, lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ValidateDifficulty checks d lies in [0, 1]
func ValidateDifficulty(d float64) error {
	if !(d >= 0 && d <= 1) {
		return fmt.Errorf("difficulty %v outside [0, 1]", d)
	}
	return nil
}
