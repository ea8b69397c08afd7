// Package camera reads frames from a webcam.
package camera

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Config selects the capture device and requested format
type Config struct {
	Device int `yaml:"device"`
	FPS    int `yaml:"fps"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// DefaultConfig returns 720p at 30 FPS on the first device
func DefaultConfig() Config {
	return Config{Device: 0, FPS: 30, Width: 1280, Height: 720}
}

// Capture manages webcam capture
type Capture struct {
	webcam    *gocv.VideoCapture
	deviceID  int
	targetFPS int
	width     int
	height    int
	mu        sync.Mutex
}

// NewCapture opens the configured device
func NewCapture(cfg Config) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera %d: %w", cfg.Device, err)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	// Get actual dimensions (camera may not support requested resolution)
	actualWidth := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	actualHeight := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:    webcam,
		deviceID:  cfg.Device,
		targetFPS: cfg.FPS,
		width:     actualWidth,
		height:    actualHeight,
	}, nil
}

// Read captures a frame into the provided Mat
func (c *Capture) Read(frame *gocv.Mat) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return false
	}

	return c.webcam.Read(frame)
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}

// Reader is anything frames can be read from
type Reader interface {
	Read(frame *gocv.Mat) bool
}

// PushFunc takes ownership of a frame. It blocks while the consumer is busy.
type PushFunc func(ctx context.Context, frame gocv.Mat) error

// Stream reads frames until ctx ends, a push fails or maxMisses reads in a
// row return nothing. Each pushed frame is a fresh Mat owned by push.
func Stream(ctx context.Context, r Reader, push PushFunc, maxMisses int) error {
	buf := gocv.NewMat()
	defer buf.Close()

	misses := 0
	for ctx.Err() == nil {
		if !r.Read(&buf) || buf.Empty() {
			misses++
			if maxMisses > 0 && misses >= maxMisses {
				return fmt.Errorf("camera returned no frame %d times in a row", misses)
			}
			continue
		}
		misses = 0
		if err := push(ctx, buf.Clone()); err != nil {
			return err
		}
	}
	return ctx.Err()
}
