package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dudu/eyegaze/internal/dataset"
	"github.com/dudu/eyegaze/internal/gaze"
)

func seededStore(t *testing.T) (*dataset.Store, string) {
	t.Helper()
	ctx := context.Background()

	s, err := dataset.Open(filepath.Join(t.TempDir(), "eyes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	run, err := s.BeginRun(ctx, 0.25)
	require.NoError(t, err)
	for _, stem := range []string{"0001", "0002"} {
		rec := dataset.Record{
			Eye:        make([]float32, 6),
			Landmarks:  make([][2]float32, gaze.NumLandmarks),
			Gaze:       [2]float32{0.25, -0.5},
			Radius:     12,
			Stem:       stem,
			Difficulty: 0.25,
			Height:     2,
			Width:      3,
		}
		rec.Landmarks[gaze.IrisCenter] = [2]float32{31.5, 17.25}
		require.NoError(t, s.Put(ctx, run.ID, rec))
	}
	return s, run.ID
}

func TestDumpRecord(t *testing.T) {
	t.Parallel()
	s, _ := seededStore(t)

	var buf bytes.Buffer
	require.NoError(t, dumpRecord(context.Background(), s, "0002", &buf))
	out := buf.String()
	assert.Contains(t, out, "stem:       0002")
	assert.Contains(t, out, "eye:        3x2")
	assert.Contains(t, out, "gaze:       pitch=0.2500 yaw=-0.5000 rad")
	assert.Contains(t, out, "heatmaps:   none")
	assert.Contains(t, out, "  16    31.50   17.25")
	assert.Equal(t, 6+1+gaze.NumLandmarks, strings.Count(out, "\n"))

	err := dumpRecord(context.Background(), s, "nope", &buf)
	assert.ErrorIs(t, err, dataset.ErrNotFound)
}

func TestInspect(t *testing.T) {
	t.Parallel()
	s, runID := seededStore(t)

	var buf bytes.Buffer
	require.NoError(t, inspect(context.Background(), s, runID, &buf))
	out := buf.String()
	assert.Contains(t, out, "schema v1, run "+runID+": 2 examples (0 with heatmaps, 0 invalid)")
	assert.Contains(t, out, "mean gaze: pitch=0.2500 yaw=-0.5000 rad")
	assert.Contains(t, out, "radius:    mean=12.00 min=12.00 max=12.00 px")

	buf.Reset()
	require.NoError(t, inspect(context.Background(), s, "no-such-run", &buf))
	assert.Equal(t, "schema v1, run no-such-run: 0 examples (0 with heatmaps, 0 invalid)\n", buf.String())
}
