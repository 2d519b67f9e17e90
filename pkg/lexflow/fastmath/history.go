package fastmath

import (
	"sync"
	"time"
)

// Point is one entry of a training history.
type Point struct {
	Epoch    int
	Loss     float64
	Examples int64
	Elapsed  time.Duration
}

// History records training progress. Only worker 0 writes to it.
type History struct {
	mu     sync.Mutex
	start  time.Time
	points []Point
}

// NewHistory starts a history clock.
func NewHistory() *History {
	return &History{start: time.Now()}
}

// Record appends a point for the given epoch.
func (h *History) Record(epoch int, loss float64, examples int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.points = append(h.points, Point{
		Epoch:    epoch,
		Loss:     loss,
		Examples: examples,
		Elapsed:  time.Since(h.start),
	})
}

// Points returns a copy of the recorded points.
func (h *History) Points() []Point {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Point, len(h.points))
	copy(out, h.points)
	return out
}

// Last returns the most recent point.
func (h *History) Last() (Point, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.points) == 0 {
		return Point{}, false
	}
	return h.points[len(h.points)-1], true
}
