package detector

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/eye"
	"github.com/dudu/eyegaze/internal/geometry"
)

func TestBoundingBox(t *testing.T) {
	t.Parallel()

	b := BoundingBox{X1: 10, Y1: 20, X2: 50, Y2: 100}
	assert.Equal(t, 40.0, b.Width())
	assert.Equal(t, 80.0, b.Height())
	assert.Equal(t, 3200.0, b.Area())
	assert.Equal(t, geometry.Pt(30, 60), b.Center())

	r := b.Rect()
	assert.Equal(t, 10, r.Min.X)
	assert.Equal(t, 100, r.Max.Y)
}

func TestEyeIndicesMatchCorners(t *testing.T) {
	t.Parallel()

	assert.Equal(t, eye.LeftOuterCorner, LeftEyeIndices[0])
	assert.Equal(t, eye.LeftInnerCorner, LeftEyeIndices[3])
	assert.Equal(t, eye.RightInnerCorner, RightEyeIndices[0])
	assert.Equal(t, eye.RightOuterCorner, RightEyeIndices[3])

	total := 0
	for _, idx := range [][]int{JawIndices, LeftBrowIndices, RightBrowIndices, NoseIndices,
		LeftEyeIndices, RightEyeIndices, MouthIndices} {
		total += len(idx)
	}
	assert.Equal(t, eye.NumFaceLandmarks, total)
}

func TestGetPoints_SkipsOutOfRange(t *testing.T) {
	t.Parallel()

	pts := []geometry.Point{geometry.Pt(0, 0), geometry.Pt(1, 1), geometry.Pt(2, 2)}
	got := GetPoints(pts, []int{2, 5, 0})
	assert.Equal(t, []geometry.Point{geometry.Pt(2, 2), geometry.Pt(0, 0)}, got)
}

func TestCropTransform(t *testing.T) {
	t.Parallel()

	b := BoundingBox{X1: 100, Y1: 50, X2: 200, Y2: 250}
	pair, err := cropTransform(b, 112, 1.2)
	require.NoError(t, err)

	// Box centre lands on the crop centre.
	c := pair.Forward.Apply(b.Center())
	assert.InDelta(t, 56, c.X, 1e-9)
	assert.InDelta(t, 56, c.Y, 1e-9)

	// The larger side (200px) times 1.2 spans the whole crop.
	top := pair.Forward.Apply(geometry.Pt(150, 150-120))
	assert.InDelta(t, 0, top.Y, 1e-9)

	back := pair.Inverse.Apply(pair.Forward.Apply(geometry.Pt(123, 77)))
	assert.InDelta(t, 123, back.X, 1e-9)
	assert.InDelta(t, 77, back.Y, 1e-9)
}

func TestCropTransform_Degenerate(t *testing.T) {
	t.Parallel()

	_, err := cropTransform(BoundingBox{X1: 5, Y1: 5, X2: 5, Y2: 5}, 112, 1.2)
	assert.True(t, errors.Is(err, geometry.ErrDegenerateGeometry))
}

func TestPostprocess(t *testing.T) {
	t.Parallel()

	b := BoundingBox{X1: 0, Y1: 0, X2: 100, Y2: 100}
	pair, err := cropTransform(b, 100, 1.0)
	require.NoError(t, err)

	out := make([]float32, 2*eye.NumFaceLandmarks)
	out[0], out[1] = 0.5, 0.5 // crop centre
	out[2], out[3] = 0.25, 1.0

	pts := postprocess(out, 100, pair.Inverse)
	require.Len(t, pts, eye.NumFaceLandmarks)
	assert.InDelta(t, 50, pts[0].X, 1e-9)
	assert.InDelta(t, 50, pts[0].Y, 1e-9)
	assert.InDelta(t, 25, pts[1].X, 1e-9)
	assert.InDelta(t, 100, pts[1].Y, 1e-9)
}

func TestParseYuNetRow(t *testing.T) {
	t.Parallel()

	row := []float64{10, 20, 100, 120, 40, 60, 80, 60, 60, 80, 45, 100, 75, 100, 0.93}
	f := parseYuNetRow(row)

	assert.Equal(t, BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 140}, f.BoundingBox)
	assert.Equal(t, geometry.Pt(40, 60), f.Keypoints.LeftEye)
	assert.Equal(t, geometry.Pt(80, 60), f.Keypoints.RightEye)
	assert.Equal(t, geometry.Pt(60, 80), f.Keypoints.Nose)
	assert.Equal(t, geometry.Pt(75, 100), f.Keypoints.RightMouth)
	assert.InDelta(t, 0.93, f.Score, 1e-6)
}

func TestNewYuNet_MissingModel(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"
	_, err := NewYuNet(cfg)
	assert.Error(t, err)
}

func TestYuNet_BlankFrame(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		cfg.ModelPath = "../../" + cfg.ModelPath
		if _, err := os.Stat(cfg.ModelPath); err != nil {
			t.Skip("YuNet model not found, skipping test")
		}
	}

	d, err := NewYuNet(cfg)
	require.NoError(t, err)
	defer d.Close()

	frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer frame.Close()

	faces, err := d.Detect(frame)
	require.NoError(t, err)
	assert.Empty(t, faces)

	empty := gocv.NewMat()
	defer empty.Close()
	_, err = d.Detect(empty)
	assert.Error(t, err)
}
