// Package gate implements the frame intake and backpressure gate: frames are
// handed to a single detection worker, and any frame arriving while a
// detection is in flight is dropped rather than queued.
package gate

import (
	"sync"
	"sync/atomic"

	"github.com/ayusman/aisight/internal/capture"
	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/log"
)

// Sink receives the result of every completed detection cycle.
// It runs on the detection worker goroutine.
type Sink func(detector.Result)

// Stats is a snapshot of gate counters.
type Stats struct {
	// Accepted counts frames handed to the worker.
	Accepted uint64 `json:"accepted"`
	// Dropped counts frames rejected because a detection was in flight.
	Dropped uint64 `json:"dropped"`
	// Processed counts results forwarded to the sink.
	Processed uint64 `json:"processed"`
	// Failures counts detector errors converted into empty results.
	Failures uint64 `json:"failures"`
	// Discarded counts frames or results thrown away because the gate was stopped.
	Discarded uint64 `json:"discarded"`
	Busy      bool   `json:"busy"`
}

// Gate serializes detector invocations with a keep-latest, drop-while-busy policy.
type Gate struct {
	detector detector.Detector
	sink     Sink

	busy  atomic.Bool
	alive atomic.Bool

	accepted  atomic.Uint64
	dropped   atomic.Uint64
	processed atomic.Uint64
	failures  atomic.Uint64
	discarded atomic.Uint64

	mu      sync.Mutex
	handoff chan capture.Frame
	done    chan struct{}
	started bool
	stopped bool
}

// New creates a gate that feeds det and forwards results to sink.
func New(det detector.Detector, sink Sink) *Gate {
	return &Gate{
		detector: det,
		sink:     sink,
		handoff:  make(chan capture.Frame, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the detection worker. Calling Start more than once, or after
// Stop, is a no-op.
func (g *Gate) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.started || g.stopped {
		return
	}
	g.started = true
	g.alive.Store(true)

	go g.work()
}

// OnFrame offers a frame to the gate. It never blocks: the frame is either
// accepted for detection or released immediately. Returns true if accepted.
func (g *Gate) OnFrame(frame capture.Frame) bool {
	if !g.alive.Load() {
		frame.Close()
		g.discarded.Add(1)
		return false
	}

	if !g.busy.CompareAndSwap(false, true) {
		frame.Close()
		g.dropped.Add(1)
		return false
	}

	// busy guarantees the handoff slot is empty, so this send cannot block.
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		g.busy.Store(false)
		frame.Close()
		g.discarded.Add(1)
		return false
	}
	g.handoff <- frame
	g.mu.Unlock()

	g.accepted.Add(1)
	return true
}

// work is the single dedicated detection worker.
func (g *Gate) work() {
	defer close(g.done)

	for frame := range g.handoff {
		g.process(frame)
		g.busy.Store(false)
	}
}

func (g *Gate) process(frame capture.Frame) {
	if !g.alive.Load() {
		frame.Close()
		g.discarded.Add(1)
		return
	}

	result := g.detect(frame)

	if !g.alive.Load() {
		g.discarded.Add(1)
		return
	}

	g.processed.Add(1)
	g.sink(result)
}

// detect runs the detector, treating any failure as an empty result.
// It consumes the frame.
func (g *Gate) detect(frame capture.Frame) detector.Result {
	upright, err := capture.Normalize(frame)
	if err != nil {
		frame.Close()
		g.failures.Add(1)
		log.Warn("frame normalization failed", "seq", frame.Seq, "error", err)
		return detector.Result{Empty: true}
	}
	defer upright.Close()

	result, err := g.detector.Detect(upright)
	if err != nil {
		g.failures.Add(1)
		log.Warn("detection failed, treating as empty", "seq", frame.Seq, "error", err)
		return detector.Result{Empty: true}
	}
	return result
}

// Stop stops accepting frames and waits for the worker to finish. A detection
// already in flight runs to completion but its result is discarded. Safe to
// call repeatedly and concurrently.
func (g *Gate) Stop() {
	g.alive.Store(false)

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		<-g.done
		return
	}
	g.stopped = true
	started := g.started
	close(g.handoff)
	g.mu.Unlock()

	if !started {
		close(g.done)
		return
	}
	<-g.done
	log.Debug("gate stopped", "accepted", g.accepted.Load(), "dropped", g.dropped.Load())
}

// Stats returns a snapshot of the gate counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Accepted:  g.accepted.Load(),
		Dropped:   g.dropped.Load(),
		Processed: g.processed.Load(),
		Failures:  g.failures.Load(),
		Discarded: g.discarded.Load(),
		Busy:      g.busy.Load(),
	}
}
