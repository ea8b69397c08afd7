package dataset

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/dudu/eyegaze/internal/gaze"
)

// DefaultBatchSize is how many records Summarize decodes at a time
const DefaultBatchSize = 256

// Summary describes the records of one run, or of the whole store
type Summary struct {
	SchemaVersion uint
	Records       int
	WithHeatmaps  int
	Invalid       int // records whose buffers disagree with their dimensions

	MeanGaze   gaze.Angles
	MeanRadius float64
	MinRadius  float64
	MaxRadius  float64
}

// Summarize walks the records of runID (all runs when empty) in batches of
// batchSize and aggregates them.
func Summarize(ctx context.Context, s *Store, runID string, batchSize int) (Summary, error) {
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	var sum Summary
	v, err := s.SchemaVersion(ctx)
	if err != nil {
		return sum, err
	}
	sum.SchemaVersion = v

	r, err := s.Records(ctx, runID)
	if err != nil {
		return sum, err
	}
	defer r.Close()

	var pitch, yaw, radius []float64
	for {
		batch, err := r.NextBatch(batchSize)
		if err != nil {
			return sum, err
		}
		if len(batch) == 0 {
			break
		}
		for i := range batch {
			rec := &batch[i]
			sum.Records++
			if rec.Heatmaps != nil {
				sum.WithHeatmaps++
			}
			if rec.Validate() != nil {
				sum.Invalid++
				continue
			}
			a := rec.Angles()
			pitch = append(pitch, a.Pitch)
			yaw = append(yaw, a.Yaw)
			radius = append(radius, float64(rec.Radius))
		}
	}

	if len(radius) == 0 {
		sum.MeanGaze = gaze.Angles{Pitch: math.NaN(), Yaw: math.NaN()}
		sum.MeanRadius, sum.MinRadius, sum.MaxRadius = math.NaN(), math.NaN(), math.NaN()
		return sum, nil
	}
	sum.MeanGaze = gaze.Angles{Pitch: stat.Mean(pitch, nil), Yaw: stat.Mean(yaw, nil)}
	sum.MeanRadius = stat.Mean(radius, nil)
	sum.MinRadius = floats.Min(radius)
	sum.MaxRadius = floats.Max(radius)
	return sum, nil
}
