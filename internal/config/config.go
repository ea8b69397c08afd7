// Package config loads eyegaze settings from YAML, .env files and
// EYEGAZE_* environment variables, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dudu/eyegaze/internal/augment"
	"github.com/dudu/eyegaze/internal/camera"
	"github.com/dudu/eyegaze/internal/dataset"
	"github.com/dudu/eyegaze/internal/detector"
	"github.com/dudu/eyegaze/internal/gaze"
	"github.com/dudu/eyegaze/internal/geometry"
	"github.com/dudu/eyegaze/internal/inference"
	"github.com/dudu/eyegaze/internal/log"
	"github.com/dudu/eyegaze/internal/pipeline"
	"github.com/dudu/eyegaze/internal/ui"
)

// Models locates the model files and the ONNX Runtime library
type Models struct {
	ORTLibrary    string  `yaml:"ort_library"`
	FaceDetector  string  `yaml:"face_detector"`
	FaceScore     float64 `yaml:"face_score"`
	Landmarks     string  `yaml:"landmarks"`
	Gaze          string  `yaml:"gaze"`
	HeatmapWidth  int     `yaml:"heatmap_width"`
	HeatmapHeight int     `yaml:"heatmap_height"`
}

// Eye is the canonical eye image size
type Eye struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Size returns the eye size as a geometry.Size
func (e Eye) Size() geometry.Size {
	return geometry.Size{W: e.Width, H: e.Height}
}

// Gaze configures gating and smoothing
type Gaze struct {
	HistoryCapacity int             `yaml:"history_capacity"`
	Thresholds      gaze.Thresholds `yaml:"thresholds"`
}

// Augment configures synthetic example generation
type Augment struct {
	Difficulty   float64        `yaml:"difficulty"`
	Ranges       augment.Ranges `yaml:"ranges"` // overrides of the default table
	Heatmaps     bool           `yaml:"heatmaps"`
	HeatmapScale float64        `yaml:"heatmap_scale"`
	Seed         uint64         `yaml:"seed"`
}

// Dataset configures the store and the generator input
type Dataset struct {
	InputDir      string `yaml:"input_dir"`
	Path          string `yaml:"path"`
	Workers       int    `yaml:"workers"`
	ProgressEvery int    `yaml:"progress_every"`
}

// Display configures the preview overlay
type Display struct {
	Preview     bool    `yaml:"preview"`
	ArrowLength float64 `yaml:"arrow_length"`
	PanelScale  int     `yaml:"panel_scale"`
	FaceWidthCM float64 `yaml:"face_width_cm"`
	FocalLength float64 `yaml:"focal_length"`
	QueueSize   int     `yaml:"queue_size"`
}

// Config is the complete eyegaze configuration
type Config struct {
	Camera  camera.Config `yaml:"camera"`
	Models  Models        `yaml:"models"`
	Eye     Eye           `yaml:"eye"`
	Gaze    Gaze          `yaml:"gaze"`
	Augment Augment       `yaml:"augment"`
	Dataset Dataset       `yaml:"dataset"`
	Display Display       `yaml:"display"`
	Log     log.Options   `yaml:"log"`
}

// Default returns production defaults
func Default() *Config {
	det := detector.DefaultConfig()
	lm := detector.DefaultLandmarkConfig()
	gm := inference.DefaultGazeModelConfig()
	return &Config{
		Camera: camera.DefaultConfig(),
		Models: Models{
			FaceDetector:  det.ModelPath,
			FaceScore:     det.ScoreThreshold,
			Landmarks:     lm.ModelPath,
			Gaze:          gm.ModelPath,
			HeatmapWidth:  gm.HeatmapSize.W,
			HeatmapHeight: gm.HeatmapSize.H,
		},
		Eye: Eye{Width: 60, Height: 36},
		Gaze: Gaze{
			HistoryCapacity: gaze.DefaultHistoryCapacity,
			Thresholds:      gaze.DefaultThresholds(),
		},
		Augment: Augment{HeatmapScale: 1.0},
		Dataset: Dataset{
			Path:          "eyegaze.db",
			ProgressEvery: dataset.DefaultProgressEvery,
		},
		Display: Display{
			Preview:     true,
			ArrowLength: 100,
			PanelScale:  2,
			FaceWidthCM: 14,
			QueueSize:   2,
		},
		Log: log.Options{Level: "info"},
	}
}

// Load builds a configuration from defaults, the optional YAML file at
// path, the optional envFile and the process environment. A missing
// envFile is not an error.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg, rejecting unknown keys
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnv overrides fields from EYEGAZE_* variables
func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}

	num("EYEGAZE_CAMERA_DEVICE", &c.Camera.Device)
	num("EYEGAZE_CAMERA_FPS", &c.Camera.FPS)
	str("EYEGAZE_ORT_LIBRARY", &c.Models.ORTLibrary)
	str("EYEGAZE_FACE_MODEL", &c.Models.FaceDetector)
	str("EYEGAZE_LANDMARK_MODEL", &c.Models.Landmarks)
	str("EYEGAZE_GAZE_MODEL", &c.Models.Gaze)
	float("EYEGAZE_DIFFICULTY", &c.Augment.Difficulty)
	str("EYEGAZE_DATASET_INPUT", &c.Dataset.InputDir)
	str("EYEGAZE_DATASET_PATH", &c.Dataset.Path)
	num("EYEGAZE_WORKERS", &c.Dataset.Workers)
	str("EYEGAZE_LOG_LEVEL", &c.Log.Level)
	str("EYEGAZE_LOG_FILE", &c.Log.File)

	return errors.Join(errs...)
}

// Validate checks values that would otherwise fail deep inside a run
func (c *Config) Validate() error {
	if c.Eye.Width <= 0 || c.Eye.Height <= 0 {
		return fmt.Errorf("eye size %dx%d must be positive", c.Eye.Width, c.Eye.Height)
	}
	if err := augment.ValidateDifficulty(c.Augment.Difficulty); err != nil {
		return err
	}
	if c.Augment.HeatmapScale <= 0 {
		return fmt.Errorf("heatmap scale %v must be positive", c.Augment.HeatmapScale)
	}
	if _, err := augment.DefaultRanges().Merge(c.Augment.Ranges); err != nil {
		return err
	}
	if c.Gaze.HistoryCapacity < 1 {
		return fmt.Errorf("history capacity %d must be at least 1", c.Gaze.HistoryCapacity)
	}
	return nil
}

// AugmentConfig returns the engine settings with range overrides applied
func (c *Config) AugmentConfig() (augment.Config, error) {
	ranges, err := augment.DefaultRanges().Merge(c.Augment.Ranges)
	if err != nil {
		return augment.Config{}, err
	}
	return augment.Config{
		Size:         c.Eye.Size(),
		Difficulty:   c.Augment.Difficulty,
		Ranges:       ranges,
		Heatmaps:     c.Augment.Heatmaps,
		HeatmapScale: c.Augment.HeatmapScale,
	}, nil
}

// GeneratorConfig returns the dataset generator settings
func (c *Config) GeneratorConfig() (dataset.GeneratorConfig, error) {
	ac, err := c.AugmentConfig()
	if err != nil {
		return dataset.GeneratorConfig{}, err
	}
	return dataset.GeneratorConfig{
		InputDir:      c.Dataset.InputDir,
		Workers:       c.Dataset.Workers,
		Seed:          c.Augment.Seed,
		Augment:       ac,
		ProgressEvery: c.Dataset.ProgressEvery,
	}, nil
}

// PipelineConfig returns the runtime model and tracker settings
func (c *Config) PipelineConfig() pipeline.Config {
	det := detector.DefaultConfig()
	det.ModelPath = c.Models.FaceDetector
	det.ScoreThreshold = c.Models.FaceScore

	lm := detector.DefaultLandmarkConfig()
	lm.ModelPath = c.Models.Landmarks

	gm := inference.DefaultGazeModelConfig()
	gm.ModelPath = c.Models.Gaze
	gm.EyeSize = c.Eye.Size()
	gm.HeatmapSize = geometry.Size{W: c.Models.HeatmapWidth, H: c.Models.HeatmapHeight}

	return pipeline.Config{
		ORTLibraryPath: c.Models.ORTLibrary,
		Detector:       det,
		Landmarks:      lm,
		GazeModel:      gm,
		Tracker: pipeline.TrackerConfig{
			EyeSize:         c.Eye.Size(),
			Thresholds:      c.Gaze.Thresholds,
			HistoryCapacity: c.Gaze.HistoryCapacity,
		},
	}
}

// AnnotateOptions returns the preview overlay settings
func (c *Config) AnnotateOptions() ui.AnnotateOptions {
	opts := ui.DefaultAnnotateOptions()
	opts.ArrowLength = c.Display.ArrowLength
	opts.PanelScale = c.Display.PanelScale
	opts.FaceWidthCM = c.Display.FaceWidthCM
	opts.FocalLength = c.Display.FocalLength
	return opts
}
