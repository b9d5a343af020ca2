package capture

import (
	"context"
	"sync"
	"time"
)

// MockSource plays back frame metadata at a fixed interval for testing.
// Frames carry no pixels, so no OpenCV runtime is needed.
type MockSource struct {
	interval time.Duration
	loop     bool
	frames   []Frame

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}
	sink      Sink
	seq       uint64
	bindErr   error
	binds     int
	unbinds   int
	torch     bool
	torchSets int
}

// NewMockSource creates a source that emits frames every interval.
// With loop set the sequence repeats until Unbind. A zero interval disables
// automatic playback; use Emit to push frames by hand.
func NewMockSource(frames []Frame, interval time.Duration, loop bool) *MockSource {
	return &MockSource{frames: frames, interval: interval, loop: loop}
}

// SetBindError makes the next Bind calls fail with err.
func (s *MockSource) SetBindError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindErr = err
}

func (s *MockSource) Bind(ctx context.Context, sink Sink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyBound
	}
	if s.bindErr != nil {
		return s.bindErr
	}

	s.binds++
	s.running = true
	s.sink = sink

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	if s.interval > 0 && len(s.frames) > 0 {
		go s.play(loopCtx, s.done)
	} else {
		close(s.done)
	}
	return nil
}

func (s *MockSource) play(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	index := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if index >= len(s.frames) {
			if !s.loop {
				return
			}
			index = 0
		}
		frame := s.frames[index]
		index++
		s.Emit(frame)
	}
}

// Emit delivers a frame to the bound sink from the caller's goroutine.
// It returns false when the source is not bound.
func (s *MockSource) Emit(frame Frame) bool {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false
	}
	s.seq++
	frame.Seq = s.seq
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}
	sink := s.sink
	s.mu.Unlock()

	sink(frame)
	return true
}

func (s *MockSource) Unbind() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.unbinds++
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

func (s *MockSource) IsBound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// SetTorch records the torch state.
func (s *MockSource) SetTorch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torch = on
	s.torchSets++
	return nil
}

// TorchOn reports the last torch state set.
func (s *MockSource) TorchOn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torch
}

// Binds returns how many times Bind succeeded.
func (s *MockSource) Binds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.binds
}

// Unbinds returns how many times Unbind actually released a binding.
func (s *MockSource) Unbinds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unbinds
}
