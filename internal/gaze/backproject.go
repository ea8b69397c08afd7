package gaze

import (
	"slices"

	"github.com/dudu/eyegaze/internal/eye"
	"github.com/dudu/eyegaze/internal/geometry"
)

// Landmarks are eye landmarks mapped back into frame coordinates
type Landmarks struct {
	Eyelid        []geometry.Point
	Iris          []geometry.Point
	IrisCenter    geometry.Point
	EyeballCenter geometry.Point
	EyeballRadius float64

	// Canonical holds the 18 canonical-space points with any mirroring
	// undone, matching the un-mirrored crop shown for debugging.
	Canonical []geometry.Point
}

// BackProject maps canonical landmarks of a region back to the frame.
// radius is the canonical-space eyeball radius predicted by the model; the
// frame-space radius is recovered by projecting a point offset by radius
// along x and measuring its distance to the projected eyeball centre.
func BackProject(canonical []geometry.Point, radius float64, region *eye.Region) Landmarks {
	checkLayout(len(canonical))

	pts := make([]geometry.Point, NumLandmarks, NumLandmarks+1)
	copy(pts, canonical)
	if region.Side.Mirrored() {
		w := float64(region.Size.W)
		for i := range pts {
			pts[i].X = w - pts[i].X
		}
	}
	unmirrored := slices.Clone(pts)

	centre := pts[EyeballCenter]
	pts = append(pts, geometry.Pt(centre.X+radius, centre.Y))
	frame := region.Inverse().ApplyAll(pts)

	return Landmarks{
		Eyelid:        frame[EyelidStart:EyelidEnd],
		Iris:          frame[IrisStart:IrisEnd],
		IrisCenter:    frame[IrisCenter],
		EyeballCenter: frame[EyeballCenter],
		EyeballRadius: frame[NumLandmarks].Dist(frame[EyeballCenter]),
		Canonical:     unmirrored,
	}
}
