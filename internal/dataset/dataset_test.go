package dataset

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/augment"
	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
	"github.com/dudu/eyegaze/internal/log"
)

func testRecord(stem string) Record {
	r := Record{
		Stem:       stem,
		Difficulty: 0.5,
		Height:     2,
		Width:      3,
		Eye:        []float32{-1, -0.5, 0, 0.25, 0.5, 1},
		Landmarks:  make([][2]float32, gaze.NumLandmarks),
		Gaze:       [2]float32{0.1, -0.2},
		Radius:     22.5,
	}
	for i := range r.Landmarks {
		r.Landmarks[i] = [2]float32{float32(i), float32(2 * i)}
	}
	return r
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "examples.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecord_EncodingIsStable(t *testing.T) {
	t.Parallel()

	r := testRecord("0001")
	r.HeatmapHeight, r.HeatmapWidth = 1, 2
	r.Heatmaps = [][]float32{{0.5, 1}}

	b1, err := MarshalRecord(r)
	require.NoError(t, err)
	b2, err := MarshalRecord(r)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	got, err := UnmarshalRecord(b1)
	require.NoError(t, err)
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, gaze.Angles{Pitch: float64(float32(0.1)), Yaw: float64(float32(-0.2))}, got.Angles())
	assert.Equal(t, geometry.Pt(17, 34), got.Points()[17])

	_, err = UnmarshalRecord([]byte{0xff, 0x00})
	assert.Error(t, err)
}

func TestRecord_ArrayPositions(t *testing.T) {
	t.Parallel()

	r := testRecord("0001")
	r.HeatmapHeight, r.HeatmapWidth = 1, 2
	r.Heatmaps = [][]float32{{0.5, 1}}
	b, err := MarshalRecord(r)
	require.NoError(t, err)

	var fields []cbor.RawMessage
	require.NoError(t, cbor.Unmarshal(b, &fields))
	require.Len(t, fields, 11)

	var eye []float32
	require.NoError(t, cbor.Unmarshal(fields[0], &eye))
	assert.Equal(t, r.Eye, eye)

	var landmarks [][2]float32
	require.NoError(t, cbor.Unmarshal(fields[1], &landmarks))
	assert.Len(t, landmarks, gaze.NumLandmarks)

	var angles [2]float32
	require.NoError(t, cbor.Unmarshal(fields[2], &angles))
	assert.Equal(t, r.Gaze, angles)

	var radius float32
	require.NoError(t, cbor.Unmarshal(fields[3], &radius))
	assert.Equal(t, r.Radius, radius)

	var heatmaps [][]float32
	require.NoError(t, cbor.Unmarshal(fields[4], &heatmaps))
	assert.Equal(t, r.Heatmaps, heatmaps)

	var stem string
	require.NoError(t, cbor.Unmarshal(fields[5], &stem))
	assert.Equal(t, "0001", stem)

	// Without heatmaps position 4 is null, not absent.
	r.Heatmaps = nil
	b, err = MarshalRecord(r)
	require.NoError(t, err)
	require.NoError(t, cbor.Unmarshal(b, &fields))
	require.Len(t, fields, 11)
	assert.Equal(t, cbor.RawMessage{0xf6}, fields[4])
}

func TestRecord_Validate(t *testing.T) {
	t.Parallel()

	r := testRecord("a")
	require.NoError(t, r.Validate())

	bad := testRecord("a")
	bad.Eye = bad.Eye[:5]
	assert.Error(t, bad.Validate())

	bad = testRecord("a")
	bad.Landmarks = bad.Landmarks[:3]
	assert.Error(t, bad.Validate())

	bad = testRecord("a")
	bad.HeatmapHeight, bad.HeatmapWidth = 2, 2
	bad.Heatmaps = [][]float32{{1, 2, 3}}
	assert.Error(t, bad.Validate())
}

func TestStore_RunsAndRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	v, err := s.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	run, err := s.BeginRun(ctx, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	for _, stem := range []string{"0003", "0001", "0005", "0002", "0004"} {
		require.NoError(t, s.Put(ctx, run.ID, testRecord(stem)))
	}
	// Replacing a stem keeps one row.
	again := testRecord("0001")
	again.Radius = 30
	require.NoError(t, s.Put(ctx, run.ID, again))

	n, err := s.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	n, err = s.Count(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	got, err := s.Get(ctx, "0001")
	require.NoError(t, err)
	assert.Equal(t, float32(30), got.Radius)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	bad := testRecord("0009")
	bad.Eye = nil
	assert.Error(t, s.Put(ctx, run.ID, bad))

	run.Accepted, run.Skipped, run.Failed = 5, 2, 1
	require.NoError(t, s.FinishRun(ctx, run))

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, 5, runs[0].Accepted)
	assert.Equal(t, 2, runs[0].Skipped)
	assert.Equal(t, 1, runs[0].Failed)
	assert.False(t, runs[0].FinishedAt.IsZero())

	assert.ErrorIs(t, s.FinishRun(ctx, &Run{ID: "nope"}), ErrNotFound)
}

func TestReader_IteratesLazilyInStemOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	run, err := s.BeginRun(ctx, 0)
	require.NoError(t, err)
	for _, stem := range []string{"c", "a", "b"} {
		require.NoError(t, s.Put(ctx, run.ID, testRecord(stem)))
	}

	r, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	var stems []string
	for r.Next() {
		stems = append(stems, r.Record().Stem)
	}
	require.NoError(t, r.Err())
	require.NoError(t, r.Close())
	assert.Equal(t, []string{"a", "b", "c"}, stems)

	// Exhausted readers stay exhausted.
	assert.False(t, r.Next())
}

func TestReader_NextBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	run, err := s.BeginRun(ctx, 0)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Put(ctx, run.ID, testRecord(fmt.Sprintf("%04d", i))))
	}

	r, err := s.Records(ctx, "")
	require.NoError(t, err)
	defer r.Close()

	var sizes []int
	for {
		batch, err := r.NextBatch(2)
		require.NoError(t, err)
		sizes = append(sizes, len(batch))
		if len(batch) == 0 {
			break
		}
	}
	assert.Equal(t, []int{2, 2, 1, 0}, sizes)
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openTestStore(t)

	empty, err := Summarize(ctx, s, "", 0)
	require.NoError(t, err)
	assert.Equal(t, uint(1), empty.SchemaVersion)
	assert.Zero(t, empty.Records)
	assert.True(t, math.IsNaN(empty.MeanRadius))

	run, err := s.BeginRun(ctx, 0)
	require.NoError(t, err)
	for i, radius := range []float32{10, 20, 30, 40, 50} {
		r := testRecord(fmt.Sprintf("%04d", i))
		r.Radius = radius
		if i%2 == 0 {
			r.HeatmapHeight, r.HeatmapWidth = 1, 2
			r.Heatmaps = [][]float32{{0, 1}}
		}
		require.NoError(t, s.Put(ctx, run.ID, r))
	}
	other, err := s.BeginRun(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, other.ID, testRecord("9999")))

	sum, err := Summarize(ctx, s, run.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Records)
	assert.Equal(t, 3, sum.WithHeatmaps)
	assert.Zero(t, sum.Invalid)
	assert.InDelta(t, 30, sum.MeanRadius, 1e-9)
	assert.InDelta(t, 10, sum.MinRadius, 1e-9)
	assert.InDelta(t, 50, sum.MaxRadius, 1e-9)
	assert.InDelta(t, 0.1, sum.MeanGaze.Pitch, 1e-6)
	assert.InDelta(t, -0.2, sum.MeanGaze.Yaw, 1e-6)

	all, err := Summarize(ctx, s, "", 4)
	require.NoError(t, err)
	assert.Equal(t, 6, all.Records)
}

func TestStore_ReopenKeepsData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "examples.db")

	s, err := Open(path)
	require.NoError(t, err)
	run, err := s.BeginRun(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, run.ID, testRecord("keep")))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	_, err = s.Get(ctx, "keep")
	assert.NoError(t, err)
}

func TestParseTuple(t *testing.T) {
	t.Parallel()

	v, err := parseTuple("(307.7428, 271.5624, 9.7808)", 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{307.7428, 271.5624, 9.7808}, v)

	v, err = parseTuple(" (0.1,-0.2, -0.97, 0.0) ", 3)
	require.NoError(t, err)
	assert.Len(t, v, 4)

	for _, bad := range []string{"", "()", "(1, 2)", "(1, x, 3)"} {
		_, err := parseTuple(bad, 3)
		assert.Error(t, err, bad)
	}
}

// renderJSON writes an annotation for an elliptical eye centred in a w×h
// render, in render coordinates (y up).
func renderJSON(w, h int, pitch, yaw float64) string {
	cx, cy := float64(w)/2, float64(h)/2
	tuple := func(x, y float64) string {
		return fmt.Sprintf("%q", fmt.Sprintf("(%.4f, %.4f, 0.0000)", x, float64(h)-y))
	}
	var interior, iris []string
	for i := 0; i < augment.InteriorPoints; i++ {
		th := 2 * math.Pi * float64(i) / augment.InteriorPoints
		interior = append(interior, tuple(cx+60*math.Cos(th), cy+25*math.Sin(th)))
	}
	for i := 0; i < augment.IrisPoints; i++ {
		th := 2 * math.Pi * float64(i) / augment.IrisPoints
		iris = append(iris, tuple(cx+20*math.Cos(th), cy+20*math.Sin(th)))
	}
	caruncle := []string{tuple(cx+70, cy-2), tuple(cx+70, cy+2), tuple(cx+66, cy)}

	return fmt.Sprintf(`{
  "interior_margin_2d": [%s],
  "caruncle_2d": [%s],
  "iris_2d": [%s],
  "head_pose": "(%.4f, %.4f, 0.0000)",
  "eye_details": {"look_vec": "(0.0000, 0.0000, -1.0000, 0.0000)", "pupil_size": "0.1"}
}`, strings.Join(interior, ", "), strings.Join(caruncle, ", "), strings.Join(iris, ", "), pitch, yaw)
}

func writeRender(t *testing.T, dir, stem string, pitch, yaw float64, withImage bool) {
	t.Helper()
	const w, h = 400, 300
	require.NoError(t, os.WriteFile(filepath.Join(dir, stem+".json"), []byte(renderJSON(w, h, pitch, yaw)), 0o644))
	if !withImage {
		return
	}
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(150, 0, 0, 0), h, w, gocv.MatTypeCV8U)
	defer img.Close()
	gocv.Circle(&img, image.Pt(w/2, h/2), 20, color.RGBA{A: 255}, -1)
	require.True(t, gocv.IMWrite(filepath.Join(dir, stem+".jpg"), img))
}

func TestParseAnnotation_FlipsY(t *testing.T) {
	t.Parallel()

	a, err := ParseAnnotation([]byte(renderJSON(400, 300, 10, 190)), 300)
	require.NoError(t, err)
	require.Len(t, a.Interior, augment.InteriorPoints)
	require.Len(t, a.Iris, augment.IrisPoints)
	require.Len(t, a.Caruncle, 3)

	// Interior point 4 sits at the bottom of the ellipse in image rows.
	assert.InDelta(t, 200.0, a.Interior[4].X, 1e-3)
	assert.InDelta(t, 175.0, a.Interior[4].Y, 1e-3)
	assert.Equal(t, augment.HeadPose{Pitch: 10, Yaw: 190}, a.HeadPose)
	assert.Equal(t, [3]float64{0, 0, -1}, a.LookVec)

	_, err = ParseAnnotation([]byte(`{"interior_margin_2d": ["(1, 2"]}`), 300)
	assert.Error(t, err)
	_, err = ParseAnnotation([]byte(`not json`), 300)
	assert.Error(t, err)
}

func TestListStems(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	for _, name := range []string{"2.json", "10.json", "1.json", "1.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.json"), 0o755))

	stems, err := ListStems(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "10", "2"}, stems)

	_, err = ListStems(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestGenerator_Run(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	writeRender(t, dir, "0001", 0, 180, true)
	writeRender(t, dir, "0002", 5, 185, true)
	writeRender(t, dir, "0003", 30, 180, true) // not frontal
	writeRender(t, dir, "0004", 0, 180, false) // no image

	s := openTestStore(t)
	cfg := augment.DefaultConfig()
	cfg.Heatmaps = true
	cfg.HeatmapScale = 0.5

	g := NewGenerator(s, GeneratorConfig{InputDir: dir, Workers: 2, Seed: 11, Augment: cfg}, log.Discard())
	run, err := g.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Accepted)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Failed)

	r, err := s.Records(ctx, run.ID)
	require.NoError(t, err)
	defer r.Close()
	var stems []string
	for r.Next() {
		rec := r.Record()
		require.NoError(t, rec.Validate())
		assert.Len(t, rec.Heatmaps, gaze.NumLandmarks)
		assert.Equal(t, 60*36, len(rec.Eye))
		stems = append(stems, rec.Stem)
	}
	require.NoError(t, r.Err())
	assert.Equal(t, []string{"0001", "0002"}, stems)
}

func TestGenerator_DeterministicAcrossRuns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := t.TempDir()
	for i := 0; i < 8; i++ {
		writeRender(t, dir, fmt.Sprintf("%04d", i), float64(i%3), 180+float64(i), true)
	}
	cfg := augment.DefaultConfig()
	cfg.Difficulty = 0.7

	generate := func(workers int) map[string][]byte {
		s := openTestStore(t)
		g := NewGenerator(s, GeneratorConfig{InputDir: dir, Workers: workers, Seed: 5, Augment: cfg}, log.Discard())
		run, err := g.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, 8, run.Accepted)

		r, err := s.Records(ctx, run.ID)
		require.NoError(t, err)
		defer r.Close()
		out := make(map[string][]byte)
		for r.Next() {
			b, err := MarshalRecord(r.Record())
			require.NoError(t, err)
			out[r.Record().Stem] = b
		}
		require.NoError(t, r.Err())
		return out
	}

	first := generate(4)
	require.Len(t, first, 8)
	assert.Equal(t, first, generate(4))
	assert.Equal(t, first, generate(1), "worker count must not change the records")
}

func TestGenerator_RejectsBadDifficulty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := augment.DefaultConfig()
	cfg.Difficulty = 3
	g := NewGenerator(openTestStore(t), GeneratorConfig{InputDir: dir, Augment: cfg}, log.Discard())
	_, err := g.Run(context.Background())
	assert.Error(t, err)
}
