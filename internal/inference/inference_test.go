package inference

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
)

func TestBytesToFloat32(t *testing.T) {
	t.Parallel()

	want := []float32{0, 1.5, -2.25, float32(math.Pi)}
	buf := make([]byte, 4*len(want))
	for i, v := range want {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	// Trailing partial value is ignored.
	buf = append(buf, 0xff, 0xff)

	assert.Equal(t, want, BytesToFloat32(buf))
}

func TestGrayToFloat32_Range(t *testing.T) {
	t.Parallel()

	img := gocv.NewMatWithSize(4, 6, gocv.MatTypeCV8U)
	defer img.Close()
	for y := 0; y < 4; y++ {
		for x := 0; x < 6; x++ {
			img.SetUCharAt(y, x, uint8(10*(y*6+x)))
		}
	}

	out := GrayToFloat32(img)
	require.Len(t, out, 24)
	lo, hi := out[0], out[0]
	for _, v := range out {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.LessOrEqual(t, v, float32(1))
		lo, hi = min(lo, v), max(hi, v)
	}
	// Equalization stretches the histogram to the full range.
	assert.InDelta(t, 1, hi, 1e-6)
	assert.Less(t, lo, float32(-0.8))
}

func TestDecodePrediction(t *testing.T) {
	t.Parallel()

	const cells = 6
	heatmaps := make([]float32, gaze.NumLandmarks*cells)
	landmarks := make([]float32, 2*gaze.NumLandmarks)
	for i := range gaze.NumLandmarks {
		heatmaps[i*cells+i%cells] = float32(i) / 20
		landmarks[2*i] = float32(i)
		landmarks[2*i+1] = float32(2 * i)
	}

	p := decodePrediction(heatmaps, landmarks, []float32{7.5}, cells)
	require.Len(t, p.Landmarks, gaze.NumLandmarks)
	require.Len(t, p.Heatmaps, gaze.NumLandmarks)
	assert.Equal(t, 7.5, p.Radius)
	assert.Equal(t, geometry.Pt(17, 34), p.Landmarks[17])
	assert.Len(t, p.Heatmaps[3], cells)

	conf := p.Confidence()
	assert.InDelta(t, 0.85, conf[17], 1e-6)

	// Heatmaps are copies, not views of the tensor buffer.
	heatmaps[17*cells+5] = 99
	assert.NotEqual(t, float32(99), p.Heatmaps[17][5])
}

func TestNewSession_RequiresInitialize(t *testing.T) {
	if Initialized() {
		t.Skip("runtime already initialized")
	}
	_, err := NewSession("model.onnx", []string{"in"}, []string{"out"})
	assert.Error(t, err)

	_, err = NewGazeModel(DefaultGazeModelConfig())
	assert.Error(t, err)
}

func TestDefaultLibraryPath(t *testing.T) {
	t.Parallel()
	assert.NotEmpty(t, DefaultLibraryPath())
}
