package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"gocv.io/x/gocv"
)

// Processor is the per-frame work done on the inference side of a Handoff
type Processor interface {
	Process(frame gocv.Mat) (*FrameResult, error)
}

// Output pairs a processed frame with its result. Result is nil when Err
// is set. The receiver owns both and releases them with Close.
type Output struct {
	Frame  gocv.Mat
	Result *FrameResult
	Err    error
}

// Close releases the frame and the result
func (o *Output) Close() error {
	var errs []error
	if o.Result != nil {
		errs = append(errs, o.Result.Close())
	}
	errs = append(errs, o.Frame.Close())
	return errors.Join(errs...)
}

// Handoff moves frames from a capture goroutine to a single inference
// goroutine over bounded queues. Frames are processed in order, and a full
// input queue blocks the producer.
type Handoff struct {
	proc   Processor
	in     chan gocv.Mat
	out    chan Output
	logger *slog.Logger
}

// NewHandoff creates queues holding up to capacity frames each
func NewHandoff(proc Processor, capacity int, logger *slog.Logger) *Handoff {
	if capacity < 1 {
		capacity = 1
	}
	return &Handoff{
		proc:   proc,
		in:     make(chan gocv.Mat, capacity),
		out:    make(chan Output, capacity),
		logger: logger,
	}
}

// Push queues a frame, blocking while the queue is full. The handoff takes
// ownership of frame; it is closed here if ctx ends first.
func (h *Handoff) Push(ctx context.Context, frame gocv.Mat) error {
	select {
	case h.in <- frame:
		return nil
	case <-ctx.Done():
		frame.Close()
		return ctx.Err()
	}
}

// TryPush queues a frame if there is room and reports whether it did. A
// rejected frame stays with the caller.
func (h *Handoff) TryPush(frame gocv.Mat) bool {
	select {
	case h.in <- frame:
		return true
	default:
		return false
	}
}

// Results delivers processed frames. It is closed when Run returns.
func (h *Handoff) Results() <-chan Output {
	return h.out
}

// Close ends the input side. Only the producer may call it, once, after its
// last Push.
func (h *Handoff) Close() {
	close(h.in)
}

// Run processes queued frames until the input is closed or ctx ends
func (h *Handoff) Run(ctx context.Context) error {
	defer close(h.out)
	defer h.drain()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-h.in:
			if !ok {
				return nil
			}
			res, err := h.proc.Process(frame)
			if err != nil && !errors.Is(err, ErrNoFaceDetected) {
				h.logger.Warn("frame processing failed", "error", err)
			}
			select {
			case h.out <- Output{Frame: frame, Result: res, Err: err}:
			case <-ctx.Done():
				if res != nil {
					res.Close()
				}
				frame.Close()
				return ctx.Err()
			}
		}
	}
}

// drain releases frames left in the input queue after cancellation
func (h *Handoff) drain() {
	for {
		select {
		case frame, ok := <-h.in:
			if !ok {
				return
			}
			frame.Close()
		default:
			return
		}
	}
}
