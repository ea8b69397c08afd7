package gaze

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// DefaultHistoryCapacity is how many recent samples are averaged
const DefaultHistoryCapacity = 10

// History is a fixed-capacity ring of the most recent gaze samples. Once
// full, adding a sample evicts the oldest. It is not safe for concurrent use;
// each tracked eye owns its own History.
type History struct {
	samples  []Angles
	capacity int
	head     int // next write position
	size     int
}

// NewHistory creates an empty history holding up to capacity samples. It
// panics if capacity is below 1; configuration rejects such values earlier.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		panic(fmt.Sprintf("gaze: history capacity %d must be at least 1", capacity))
	}
	return &History{
		samples:  make([]Angles, capacity),
		capacity: capacity,
	}
}

// Add stores a sample, overwriting the oldest if at capacity
func (h *History) Add(a Angles) {
	h.samples[h.head] = a
	h.head = (h.head + 1) % h.capacity
	if h.size < h.capacity {
		h.size++
	}
}

// Len returns the number of samples currently held
func (h *History) Len() int {
	return h.size
}

// Capacity returns the maximum number of samples held
func (h *History) Capacity() int {
	return h.capacity
}

// Samples returns the held samples from oldest to newest
func (h *History) Samples() []Angles {
	out := make([]Angles, h.size)
	for i := range out {
		out[i] = h.samples[(h.head-h.size+i+h.capacity)%h.capacity]
	}
	return out
}

// Mean returns the element-wise mean of the held samples. ok is false when
// the history is empty.
func (h *History) Mean() (mean Angles, ok bool) {
	if h.size == 0 {
		return Angles{}, false
	}
	pitch := make([]float64, 0, h.size)
	yaw := make([]float64, 0, h.size)
	for _, a := range h.Samples() {
		pitch = append(pitch, a.Pitch)
		yaw = append(yaw, a.Yaw)
	}
	return Angles{Pitch: stat.Mean(pitch, nil), Yaw: stat.Mean(yaw, nil)}, true
}

// Reset drops all samples
func (h *History) Reset() {
	clear(h.samples)
	h.head = 0
	h.size = 0
}
