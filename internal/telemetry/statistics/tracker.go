package statistics

import (
	"math"
	"sync"
)

// DefaultWindowSize is the rolling window capacity per (device, parameter).
const DefaultWindowSize = 100

// Stats are the derived rolling statistics for one window.
type Stats struct {
	Count  int
	Mean   float64
	StdDev float64
}

// Tracker maintains a fixed-capacity FIFO window of the most recent raw
// values per (device, parameter) pair and derives mean/stddev on demand.
// Unknown pairs start with an empty window; there are no error conditions.
type Tracker struct {
	mu       sync.RWMutex
	capacity int
	windows  map[pairKey]*window
}

type pairKey struct {
	deviceID  string
	parameter string
}

// NewTracker constructs a tracker. A non-positive capacity falls back to
// DefaultWindowSize.
func NewTracker(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Tracker{
		capacity: capacity,
		windows:  make(map[pairKey]*window),
	}
}

// Record appends a value to the pair's window, creating the window on first
// use and evicting the oldest value once capacity is exceeded.
func (t *Tracker) Record(deviceID, parameter string, value float64) {
	key := pairKey{deviceID: deviceID, parameter: parameter}
	t.mu.Lock()
	w := t.windows[key]
	if w == nil {
		w = newWindow(t.capacity)
		t.windows[key] = w
	}
	w.push(value)
	t.mu.Unlock()
}

// Stats returns (count, mean, stddev) over the pair's current window
// contents. StdDev uses the population formula.
func (t *Tracker) Stats(deviceID, parameter string) Stats {
	key := pairKey{deviceID: deviceID, parameter: parameter}
	t.mu.RLock()
	w := t.windows[key]
	t.mu.RUnlock()
	if w == nil {
		return Stats{}
	}
	return w.stats()
}

// window is a FIFO ring buffer of raw samples.
type window struct {
	values []float64
	next   int
	full   bool
}

func newWindow(capacity int) *window {
	return &window{values: make([]float64, 0, capacity)}
}

func (w *window) push(value float64) {
	if !w.full {
		w.values = append(w.values, value)
		if len(w.values) == cap(w.values) {
			w.full = true
		}
		return
	}
	w.values[w.next] = value
	w.next = (w.next + 1) % len(w.values)
}

func (w *window) stats() Stats {
	n := len(w.values)
	if n == 0 {
		return Stats{}
	}

	var sum float64
	for _, v := range w.values {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range w.values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(n)

	return Stats{Count: n, Mean: mean, StdDev: math.Sqrt(variance)}
}
