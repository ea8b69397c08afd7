package gaze

import (
	"fmt"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/eyegaze/internal/eye"
	"github.com/dudu/eyegaze/internal/geometry"
)

func confidences(eyelid, iris, rest float64) []float64 {
	c := make([]float64, NumLandmarks)
	for i := range c {
		switch {
		case i < EyelidEnd:
			c[i] = eyelid
		case i < IrisEnd:
			c[i] = iris
		default:
			c[i] = rest
		}
	}
	return c
}

func TestEvaluate_GatesAreIndependent(t *testing.T) {
	t.Parallel()

	th := DefaultThresholds()

	cases := []struct {
		name                string
		eyelid, iris, other float64
		want                Gates
	}{
		{"eyelid only", 0.76, 0.79, 0.9, Gates{Eye: true, Eyelid: true, Iris: false}},
		{"iris only", 0.74, 0.81, 0.9, Gates{Eye: true, Eyelid: false, Iris: true}},
		{"eye fails on extra channels", 0.9, 0.9, 0.65, Gates{Eye: false, Eyelid: true, Iris: true}},
		{"all pass", 0.95, 0.95, 0.95, Gates{Eye: true, Eyelid: true, Iris: true}},
		{"thresholds are strict", 0.75, 0.80, 0.70, Gates{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := th.Evaluate(confidences(tc.eyelid, tc.iris, tc.other))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_ShapeMismatchPanics(t *testing.T) {
	t.Parallel()
	assert.PanicsWithValue(t, "gaze: eye landmark set has 17 points, want 18", func() {
		DefaultThresholds().Evaluate(make([]float64, 17))
	})
	assert.PanicsWithValue(t, "gaze: eye landmark set has 19 points, want 18", func() {
		BackProject(make([]geometry.Point, 19), 1, &eye.Region{Side: eye.SideRight})
	})
}

func TestConfidence_PeakPerChannel(t *testing.T) {
	t.Parallel()

	hm := make([][]float32, NumLandmarks)
	for i := range hm {
		hm[i] = []float32{0.1, float32(i) / 20, -1}
	}
	c := Confidence(hm)
	require.Len(t, c, NumLandmarks)
	assert.InDelta(t, 0.1, c[0], 1e-6)
	assert.InDelta(t, 0.85, c[17], 1e-6)
}

func TestHistory_KeepsMostRecent(t *testing.T) {
	t.Parallel()

	h := NewHistory(DefaultHistoryCapacity)
	for i := 1; i <= 25; i++ {
		h.Add(Angles{Pitch: float64(i), Yaw: -float64(i)})
	}

	require.Equal(t, 10, h.Len())
	s := h.Samples()
	for i, a := range s {
		assert.Equal(t, float64(16+i), a.Pitch)
	}

	mean, ok := h.Mean()
	require.True(t, ok)
	assert.InDelta(t, 20.5, mean.Pitch, 1e-12)
	assert.InDelta(t, -20.5, mean.Yaw, 1e-12)
}

func TestNewHistory_RejectsEmptyCapacity(t *testing.T) {
	t.Parallel()

	for _, capacity := range []int{0, -3} {
		assert.PanicsWithValue(t, fmt.Sprintf("gaze: history capacity %d must be at least 1", capacity), func() {
			NewHistory(capacity)
		})
	}
	assert.Panics(t, func() { NewEstimator(0) })

	h := NewHistory(1)
	h.Add(Angles{Pitch: 1})
	h.Add(Angles{Pitch: 2})
	assert.Equal(t, []Angles{{Pitch: 2}}, h.Samples())
}

func TestHistory_MeanOverPresentOnly(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	_, ok := h.Mean()
	assert.False(t, ok)

	h.Add(Angles{Pitch: 0.2, Yaw: 0.4})
	h.Add(Angles{Pitch: 0.4, Yaw: 0.0})
	mean, ok := h.Mean()
	require.True(t, ok)
	assert.InDelta(t, 0.3, mean.Pitch, 1e-12)
	assert.InDelta(t, 0.2, mean.Yaw, 1e-12)

	h.Reset()
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Samples())
}

func TestDirection_DomainSafety(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 10000; i++ {
		iris := geometry.Pt(rng.Float64()*400-200, rng.Float64()*400-200)
		ball := geometry.Pt(rng.Float64()*400-200, rng.Float64()*400-200)
		radius := rng.Float64()*50 + 1e-9

		a, err := Direction(iris, ball, radius)
		require.NoError(t, err)
		for _, v := range []float64{a.Pitch, a.Yaw} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
			assert.LessOrEqual(t, math.Abs(v), math.Pi/2)
		}
	}
}

func TestDirection_Geometry(t *testing.T) {
	t.Parallel()

	ball := geometry.Pt(100, 100)

	a, err := Direction(ball, ball, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, a.Pitch, 1e-12)
	assert.InDelta(t, 0.0, a.Yaw, 1e-12)

	// Iris above the centre (smaller y) means looking up.
	a, err = Direction(geometry.Pt(100, 95), ball, 10)
	require.NoError(t, err)
	assert.InDelta(t, math.Asin(0.5), a.Pitch, 1e-12)

	// Iris to the right: -cos(0) flips the sign.
	a, err = Direction(geometry.Pt(105, 100), ball, 10)
	require.NoError(t, err)
	assert.InDelta(t, -math.Asin(0.5), a.Yaw, 1e-12)

	// Iris far outside the sphere is clipped, not NaN.
	a, err = Direction(geometry.Pt(100, -900), ball, 10)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, a.Pitch, 1e-12)
}

func TestDirection_Degenerate(t *testing.T) {
	t.Parallel()

	p := geometry.Pt(1, 1)
	for _, r := range []float64{0, -3, math.NaN(), math.Inf(1)} {
		_, err := Direction(p, p, r)
		assert.ErrorIs(t, err, ErrDegenerateGeometry)
	}
	_, err := Direction(geometry.Pt(math.NaN(), 0), p, 4)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestEstimator_HoldsHistoryWhenGated(t *testing.T) {
	t.Parallel()

	e := NewEstimator(DefaultHistoryCapacity)
	lm := Landmarks{
		IrisCenter:    geometry.Pt(50, 50),
		EyeballCenter: geometry.Pt(50, 50),
		EyeballRadius: 12,
	}
	all := Gates{Eye: true, Eyelid: true, Iris: true}

	got, err := e.Estimate(lm, all)
	require.NoError(t, err)
	assert.Equal(t, got.Raw, got.Smoothed)

	_, err = e.Estimate(lm, Gates{Eye: true, Eyelid: true})
	assert.ErrorIs(t, err, ErrLowConfidence)
	_, err = e.Estimate(lm, Gates{Iris: true})
	assert.ErrorIs(t, err, ErrLowConfidence)

	lm.EyeballRadius = 0
	_, err = e.Estimate(lm, all)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)

	assert.Equal(t, 1, e.History().Len())
}

func TestEstimator_SmoothsButReturnsRaw(t *testing.T) {
	t.Parallel()

	e := NewEstimator(DefaultHistoryCapacity)
	all := Gates{Eye: true, Eyelid: true, Iris: true}
	ball := geometry.Pt(0, 0)

	_, err := e.Estimate(Landmarks{IrisCenter: ball, EyeballCenter: ball, EyeballRadius: 10}, all)
	require.NoError(t, err)

	up := Landmarks{IrisCenter: geometry.Pt(0, -5), EyeballCenter: ball, EyeballRadius: 10}
	got, err := e.Estimate(up, all)
	require.NoError(t, err)

	want, err := Direction(up.IrisCenter, up.EyeballCenter, up.EyeballRadius)
	require.NoError(t, err)
	assert.Equal(t, want, got.Raw)
	assert.InDelta(t, want.Pitch/2, got.Smoothed.Pitch, 1e-12)
}

func testRegion(t *testing.T, side eye.Side) *eye.Region {
	t.Helper()
	pair, err := geometry.EyeTransform(geometry.Pt(100, 50), geometry.Pt(130, 50), eye.DefaultSize)
	require.NoError(t, err)
	return &eye.Region{Transform: pair, Side: side, Size: eye.DefaultSize}
}

func canonicalLandmarks() []geometry.Point {
	pts := make([]geometry.Point, NumLandmarks)
	for i := range pts {
		pts[i] = geometry.Pt(10+2*float64(i), 18)
	}
	pts[IrisCenter] = geometry.Pt(34, 16)
	pts[EyeballCenter] = geometry.Pt(30, 18)
	return pts
}

func TestBackProject_RightEye(t *testing.T) {
	t.Parallel()

	r := testRegion(t, eye.SideRight)
	lm := BackProject(canonicalLandmarks(), 12, r)

	assert.Len(t, lm.Eyelid, 8)
	assert.Len(t, lm.Iris, 8)
	assert.InDelta(t, 115.0, lm.EyeballCenter.X, 1e-9)
	assert.InDelta(t, 50.0, lm.EyeballCenter.Y, 1e-9)
	assert.InDelta(t, 118.0, lm.IrisCenter.X, 1e-9)
	assert.InDelta(t, 48.5, lm.IrisCenter.Y, 1e-9)
	// 12 canonical pixels at scale 4/3 is 9 frame pixels.
	assert.InDelta(t, 9.0, lm.EyeballRadius, 1e-9)
}

func TestBackProject_LeftEyeUnmirrors(t *testing.T) {
	t.Parallel()

	in := canonicalLandmarks()
	lm := BackProject(in, 12, testRegion(t, eye.SideLeft))

	assert.InDelta(t, 112.0, lm.IrisCenter.X, 1e-9)
	assert.InDelta(t, 26.0, lm.Canonical[IrisCenter].X, 1e-9)
	assert.InDelta(t, 9.0, lm.EyeballRadius, 1e-9)
	assert.Equal(t, 34.0, in[IrisCenter].X, "input must not be modified")
}
