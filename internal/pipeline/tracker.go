package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/detector"
	"github.com/dudu/eyegaze/internal/eye"
	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
)

// Timing holds performance timing information
type Timing struct {
	Detection  time.Duration
	Landmarks  time.Duration
	Extraction time.Duration
	Inference  time.Duration
	Estimation time.Duration
	Total      time.Duration
}

// EyeResult is everything computed for one eye of a frame
type EyeResult struct {
	Side       eye.Side
	Gates      gaze.Gates
	Confidence []float64
	Landmarks  gaze.Landmarks
	Gaze       *gaze.Estimate // nil when the gates or geometry forbid it
	Image      gocv.Mat       // canonical crop, mirrored for the left eye
}

// FrameResult is the outcome of tracking one frame
type FrameResult struct {
	Face          detector.Face
	FaceLandmarks []geometry.Point
	Eyes          []EyeResult
	Skipped       []eye.Side // eyes with coincident corners
	Timing        Timing
}

// Eye returns the result for side, if one was produced
func (r *FrameResult) Eye(side eye.Side) (*EyeResult, bool) {
	for i := range r.Eyes {
		if r.Eyes[i].Side == side {
			return &r.Eyes[i], true
		}
	}
	return nil, false
}

// Close releases the eye images
func (r *FrameResult) Close() error {
	var errs []error
	for i := range r.Eyes {
		if err := r.Eyes[i].Image.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TrackerConfig holds the tracker's tunables
type TrackerConfig struct {
	EyeSize         geometry.Size
	Thresholds      gaze.Thresholds
	HistoryCapacity int
}

// DefaultTrackerConfig returns the production settings
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		EyeSize:         eye.DefaultSize,
		Thresholds:      gaze.DefaultThresholds(),
		HistoryCapacity: gaze.DefaultHistoryCapacity,
	}
}

// Tracker turns frames into per-eye gaze results. Each eye keeps its own
// smoothing history, so a Tracker must not be shared between streams.
type Tracker struct {
	detector   FaceDetector
	landmarks  LandmarkPredictor
	engine     InferenceEngine
	extractor  *eye.Extractor
	thresholds gaze.Thresholds
	estimators map[eye.Side]*gaze.Estimator
	logger     *slog.Logger
}

// NewTracker wires the collaborators into a tracker
func NewTracker(det FaceDetector, lm LandmarkPredictor, engine InferenceEngine, cfg TrackerConfig, logger *slog.Logger) *Tracker {
	return &Tracker{
		detector:   det,
		landmarks:  lm,
		engine:     engine,
		extractor:  eye.NewExtractor(cfg.EyeSize),
		thresholds: cfg.Thresholds,
		estimators: map[eye.Side]*gaze.Estimator{
			eye.SideLeft:  gaze.NewEstimator(cfg.HistoryCapacity),
			eye.SideRight: gaze.NewEstimator(cfg.HistoryCapacity),
		},
		logger: logger,
	}
}

// Estimator returns the smoothing state of one eye
func (t *Tracker) Estimator(side eye.Side) *gaze.Estimator {
	return t.estimators[side]
}

// Process tracks the first detected face of a BGR or grayscale frame. The
// caller owns the result and must Close it.
func (t *Tracker) Process(frame gocv.Mat) (*FrameResult, error) {
	totalStart := time.Now()
	res := &FrameResult{}

	start := time.Now()
	faces, err := t.detector.Detect(frame)
	res.Timing.Detection = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}
	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}
	res.Face = faces[0]

	start = time.Now()
	res.FaceLandmarks, err = t.landmarks.Predict(frame, res.Face)
	res.Timing.Landmarks = time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("landmark prediction failed: %w", err)
	}

	start = time.Now()
	gray := toGray(frame)
	regions, skipped := t.extractor.Extract(gray, eye.FaceCorners(res.FaceLandmarks))
	gray.Close()
	res.Timing.Extraction = time.Since(start)
	res.Skipped = skipped
	for _, side := range skipped {
		t.logger.Debug("eye corners coincide", "side", side)
	}

	for i := range regions {
		r := &regions[i]
		start = time.Now()
		pred, err := t.engine.Infer(r.Image)
		res.Timing.Inference += time.Since(start)
		if err != nil {
			for j := i; j < len(regions); j++ {
				regions[j].Close()
			}
			res.Close()
			return nil, fmt.Errorf("%s eye inference failed: %w", r.Side, err)
		}

		start = time.Now()
		res.Eyes = append(res.Eyes, t.estimate(r, pred))
		res.Timing.Estimation += time.Since(start)
	}

	res.Timing.Total = time.Since(totalStart)
	return res, nil
}

// estimate gates one eye's prediction and updates that eye's history
func (t *Tracker) estimate(r *eye.Region, pred *gaze.Prediction) EyeResult {
	conf := pred.Confidence()
	out := EyeResult{
		Side:       r.Side,
		Gates:      t.thresholds.Evaluate(conf),
		Confidence: conf,
		Landmarks:  gaze.BackProject(pred.Landmarks, pred.Radius, r),
		Image:      r.Image,
	}

	est, err := t.estimators[r.Side].Estimate(out.Landmarks, out.Gates)
	switch {
	case err == nil:
		out.Gaze = &est
	case errors.Is(err, gaze.ErrLowConfidence):
		t.logger.Debug("gaze gated", "side", r.Side, "eye", out.Gates.Eye, "iris", out.Gates.Iris)
	default:
		t.logger.Debug("gaze geometry unusable", "side", r.Side, "error", err)
	}
	return out
}

// toGray returns a grayscale copy of frame
func toGray(frame gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	switch frame.Channels() {
	case 1:
		frame.CopyTo(&gray)
	case 4:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRAToGray)
	default:
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	}
	return gray
}
