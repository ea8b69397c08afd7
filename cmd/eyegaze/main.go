package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dudu/eyegaze/internal/camera"
	"github.com/dudu/eyegaze/internal/config"
	"github.com/dudu/eyegaze/internal/log"
	"github.com/dudu/eyegaze/internal/pipeline"
	"github.com/dudu/eyegaze/internal/ui"
)

func init() {
	// Lock the main goroutine to the main OS thread.
	// This is required on macOS for OpenCV's highgui (window creation).
	runtime.LockOSThread()
}

type Flags struct {
	ConfigPath  string
	EnvFile     string
	CameraIndex int
	Preview     bool
	LogLevel    string
}

func main() {
	flags := parseFlags()

	cfg, err := config.Load(flags.ConfigPath, flags.EnvFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	applyFlags(cfg, flags)

	log.Init(cfg.Log)
	defer log.Close()

	if err := run(cfg); err != nil {
		log.Error("eyegaze failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() Flags {
	f := Flags{}

	flag.StringVar(&f.ConfigPath, "config", "", "YAML configuration file")
	flag.StringVar(&f.ConfigPath, "f", "", "YAML configuration file (shorthand)")
	flag.StringVar(&f.EnvFile, "env", ".env", "Environment file")
	flag.IntVar(&f.CameraIndex, "camera", -1, "Camera device index (overrides config)")
	flag.IntVar(&f.CameraIndex, "c", -1, "Camera device index (shorthand)")
	flag.BoolVar(&f.Preview, "preview", true, "Show preview window")
	flag.BoolVar(&f.Preview, "p", true, "Show preview window (shorthand)")
	flag.StringVar(&f.LogLevel, "log", "", "Log level: debug, info, warn, error")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "eyegaze - Real-time webcam gaze tracking\n\n")
		fmt.Fprintf(os.Stderr, "Usage: eyegaze [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  eyegaze\n")
		fmt.Fprintf(os.Stderr, "  eyegaze --config eyegaze.yaml --camera 1\n")
		fmt.Fprintf(os.Stderr, "  EYEGAZE_LOG_LEVEL=debug eyegaze -p=false\n")
	}

	flag.Parse()
	return f
}

func applyFlags(cfg *config.Config, f Flags) {
	if f.CameraIndex >= 0 {
		cfg.Camera.Device = f.CameraIndex
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	cfg.Display.Preview = cfg.Display.Preview && f.Preview
}

func run(cfg *config.Config) error {
	log.Info("eyegaze starting")

	p, err := pipeline.New(cfg.PipelineConfig(), log.With("component", "tracker"))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer p.Close()

	cam, err := camera.NewCapture(cfg.Camera)
	if err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}
	defer cam.Close()
	log.Info("camera opened", "device", cfg.Camera.Device, "width", cam.Width(), "height", cam.Height())

	var window *ui.Window
	if cfg.Display.Preview {
		window = ui.NewWindow("eyegaze", cam.Width(), cam.Height())
		defer window.Close()
	}

	// Handle signals for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	handoff := pipeline.NewHandoff(p.Tracker(), cfg.Display.QueueSize, log.With("component", "handoff"))

	captureErr := make(chan error, 1)
	go func() {
		err := camera.Stream(ctx, cam, handoff.Push, 100)
		handoff.Close()
		captureErr <- err
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- handoff.Run(ctx) }()

	log.Info("running, press 'q' to quit")
	annotate := cfg.AnnotateOptions()
	// Results are consumed on the main thread so the window stays on it.
	for out := range handoff.Results() {
		if out.Result != nil {
			ui.Annotate(&out.Frame, out.Result, annotate)
			ui.ShowTiming(&out.Frame, out.Result.Timing)
			logGaze(out.Result)
		}

		quit := false
		if window != nil {
			window.Show(&out.Frame)
			// WaitKey must be called to process window events on macOS
			quit = ui.IsQuitKey(window.WaitKey(1))
		}
		out.Close()
		if quit {
			log.Info("quitting")
			cancel()
		}
	}

	err = errors.Join(ignoreCanceled(<-captureErr), ignoreCanceled(<-runErr))
	log.Info("shut down")
	return err
}

func logGaze(res *pipeline.FrameResult) {
	for _, e := range res.Eyes {
		if e.Gaze == nil {
			continue
		}
		log.Debug("gaze", "side", e.Side,
			"pitch", e.Gaze.Smoothed.Pitch, "yaw", e.Gaze.Smoothed.Yaw,
			"raw_pitch", e.Gaze.Raw.Pitch, "raw_yaw", e.Gaze.Raw.Yaw)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
