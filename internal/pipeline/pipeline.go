package pipeline

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/detector"
	"github.com/dudu/eyegaze/internal/inference"
)

// Config holds pipeline configuration
type Config struct {
	ORTLibraryPath string
	Detector       detector.Config
	Landmarks      detector.LandmarkConfig
	GazeModel      inference.GazeModelConfig
	Tracker        TrackerConfig
}

// Pipeline owns the models behind a Tracker
type Pipeline struct {
	config    Config
	detector  *detector.YuNet
	landmarks *detector.Landmark68
	gazeModel *inference.GazeModel
	tracker   *Tracker
	logger    *slog.Logger
}

// New loads every model and builds the tracker
func New(config Config, logger *slog.Logger) (*Pipeline, error) {
	if err := inference.Initialize(config.ORTLibraryPath); err != nil {
		return nil, fmt.Errorf("failed to initialize inference: %w", err)
	}

	p := &Pipeline{config: config, logger: logger}

	det, err := detector.NewYuNet(config.Detector)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}
	p.detector = det

	lm, err := detector.NewLandmark68(config.Landmarks)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create landmark predictor: %w", err)
	}
	p.landmarks = lm

	gm, err := inference.NewGazeModel(config.GazeModel)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to create gaze model: %w", err)
	}
	p.gazeModel = gm

	p.tracker = NewTracker(det, lm, gm, config.Tracker, logger)
	logger.Info("models loaded",
		"detector", config.Detector.ModelPath,
		"landmarks", config.Landmarks.ModelPath,
		"gaze", config.GazeModel.ModelPath)
	return p, nil
}

// Tracker returns the frame tracker
func (p *Pipeline) Tracker() *Tracker {
	return p.tracker
}

// Process tracks one frame
func (p *Pipeline) Process(frame gocv.Mat) (*FrameResult, error) {
	return p.tracker.Process(frame)
}

// Close releases pipeline resources
func (p *Pipeline) Close() error {
	var errs []error

	if p.detector != nil {
		if err := p.detector.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.landmarks != nil {
		if err := p.landmarks.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.gazeModel != nil {
		if err := p.gazeModel.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := inference.Shutdown(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}
