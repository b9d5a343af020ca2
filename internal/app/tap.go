package app

import (
	"sync"
	"time"
)

// Exit gesture defaults.
const (
	DefaultTapWindow    = time.Second
	DefaultTapThreshold = 3
)

// TapRecognizer detects a burst of taps within a rolling window.
type TapRecognizer struct {
	window    time.Duration
	threshold int

	mu   sync.Mutex
	taps []time.Time
}

// NewTapRecognizer creates a recognizer. Non-positive values use the defaults.
func NewTapRecognizer(window time.Duration, threshold int) *TapRecognizer {
	if window <= 0 {
		window = DefaultTapWindow
	}
	if threshold <= 0 {
		threshold = DefaultTapThreshold
	}
	return &TapRecognizer{window: window, threshold: threshold}
}

// Tap records a tap at the given time and reports whether it completes the
// gesture. The count restarts after the gesture fires.
func (r *TapRecognizer) Tap(at time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.taps[:0]
	for _, t := range r.taps {
		if at.Sub(t) <= r.window {
			kept = append(kept, t)
		}
	}
	r.taps = append(kept, at)

	if len(r.taps) < r.threshold {
		return false
	}
	r.taps = r.taps[:0]
	return true
}
