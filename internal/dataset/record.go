// Package dataset persists augmented eye examples in a sqlite store and
// builds them from directories of annotated renders.
package dataset

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dudu/eyegaze/internal/augment"
	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
)

var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Record is the persisted form of one example. It is encoded as a CBOR
// array so the field order is the wire order: eye, landmarks, gaze, radius
// and heatmaps (nil when not generated) at positions 0-4, followed by
// metadata that consumers reading by position may ignore.
type Record struct {
	_ struct{} `cbor:",toarray"`

	Eye       []float32 // Height*Width, row-major, in [-1, 1]
	Landmarks [][2]float32
	Gaze      [2]float32 // pitch, yaw
	Radius    float32
	Heatmaps  [][]float32

	Stem          string
	Difficulty    float32
	Height        int
	Width         int
	HeatmapHeight int
	HeatmapWidth  int
}

// NewRecord flattens an augmented example
func NewRecord(stem string, difficulty float64, ex *augment.Example) Record {
	r := Record{
		Eye:           ex.Eye,
		Landmarks:     make([][2]float32, len(ex.Landmarks)),
		Gaze:          [2]float32{float32(ex.Gaze.Pitch), float32(ex.Gaze.Yaw)},
		Radius:        float32(ex.Radius),
		Heatmaps:      ex.Heatmaps,
		Stem:          stem,
		Difficulty:    float32(difficulty),
		Height:        ex.Size.H,
		Width:         ex.Size.W,
		HeatmapHeight: ex.HeatmapSize.H,
		HeatmapWidth:  ex.HeatmapSize.W,
	}
	for i, p := range ex.Landmarks {
		r.Landmarks[i] = [2]float32{float32(p.X), float32(p.Y)}
	}
	return r
}

// Points returns the landmarks as geometry points
func (r *Record) Points() []geometry.Point {
	pts := make([]geometry.Point, len(r.Landmarks))
	for i, l := range r.Landmarks {
		pts[i] = geometry.Pt(float64(l[0]), float64(l[1]))
	}
	return pts
}

// Angles returns the ground-truth gaze
func (r *Record) Angles() gaze.Angles {
	return gaze.Angles{Pitch: float64(r.Gaze[0]), Yaw: float64(r.Gaze[1])}
}

// Validate checks the record's buffers agree with its dimensions
func (r *Record) Validate() error {
	if len(r.Eye) != r.Height*r.Width {
		return fmt.Errorf("record %s: eye has %d pixels, want %dx%d", r.Stem, len(r.Eye), r.Height, r.Width)
	}
	if len(r.Landmarks) != gaze.NumLandmarks {
		return fmt.Errorf("record %s: %d landmarks, want %d", r.Stem, len(r.Landmarks), gaze.NumLandmarks)
	}
	for i, hm := range r.Heatmaps {
		if len(hm) != r.HeatmapHeight*r.HeatmapWidth {
			return fmt.Errorf("record %s: heatmap %d has %d cells, want %dx%d",
				r.Stem, i, len(hm), r.HeatmapHeight, r.HeatmapWidth)
		}
	}
	return nil
}

// MarshalRecord encodes r deterministically
func MarshalRecord(r Record) ([]byte, error) {
	b, err := encMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", r.Stem, err)
	}
	return b, nil
}

// UnmarshalRecord decodes a record produced by MarshalRecord
func UnmarshalRecord(b []byte) (Record, error) {
	var r Record
	if err := cbor.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return r, nil
}
