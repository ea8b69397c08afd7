// Package ui shows annotated frames in a preview window.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/eyegaze/internal/pipeline"
)

// Window manages the preview display
type Window struct {
	window     *gocv.Window
	name       string
	lastFrame  time.Time
	frameCount int
	fps        float64
}

// NewWindow creates a preview window of the given size
func NewWindow(name string, width, height int) *Window {
	window := gocv.NewWindow(name)
	// Force window to appear on macOS
	window.ResizeWindow(width, height)
	window.MoveWindow(100, 100)
	return &Window{
		window:    window,
		name:      name,
		lastFrame: time.Now(),
	}
}

// tick counts a frame and refreshes the FPS estimate once a second
func (w *Window) tick(now time.Time) {
	w.frameCount++
	elapsed := now.Sub(w.lastFrame)
	if elapsed >= time.Second {
		w.fps = float64(w.frameCount) / elapsed.Seconds()
		w.frameCount = 0
		w.lastFrame = now
	}
}

// Show displays a frame and updates FPS counter
func (w *Window) Show(frame *gocv.Mat) {
	w.tick(time.Now())

	fpsText := fmt.Sprintf("FPS: %.1f", w.fps)
	gocv.PutText(frame, fpsText, image.Pt(10, 30),
		gocv.FontHersheyPlain, 2, color.RGBA{R: 0, G: 255, B: 0, A: 255}, 2)

	w.window.IMShow(*frame)
}

// ShowTiming draws the stage timings in the bottom-left corner
func ShowTiming(frame *gocv.Mat, t pipeline.Timing) {
	gocv.PutText(frame, TimingText(t), image.Pt(10, frame.Rows()-12),
		gocv.FontHersheyPlain, 1.2, color.RGBA{R: 0, G: 255, B: 0, A: 255}, 1)
}

// TimingText formats per-stage timings in milliseconds
func TimingText(t pipeline.Timing) string {
	ms := func(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }
	return fmt.Sprintf("D:%.1fms L:%.1fms E:%.1fms I:%.1fms G:%.1fms T:%.1fms",
		ms(t.Detection), ms(t.Landmarks), ms(t.Extraction), ms(t.Inference), ms(t.Estimation), ms(t.Total))
}

// WaitKey waits for key press, returns key code or -1
func (w *Window) WaitKey(delayMs int) int {
	return w.window.WaitKey(delayMs)
}

// IsQuitKey reports whether key is 'q' or ESC
func IsQuitKey(key int) bool {
	return key == 'q' || key == 27
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.window != nil {
		return w.window.Close()
	}
	return nil
}
