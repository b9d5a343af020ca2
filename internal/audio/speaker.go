package audio

import (
	"context"
	"os/exec"
	"sync"

	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/log"
)

// ExecSpeaker speaks text with an external TTS command such as espeak-ng.
// Utterances run one at a time in the order queued.
type ExecSpeaker struct {
	command string
	voice   string

	mu       sync.Mutex
	queue    []string
	cancel   context.CancelFunc
	running  bool
	released bool
	wg       sync.WaitGroup
}

// NewExecSpeaker creates a speaker. An empty voice uses the command default.
func NewExecSpeaker(command, voice string) *ExecSpeaker {
	if command == "" {
		command = "espeak-ng"
	}
	return &ExecSpeaker{command: command, voice: voice}
}

// Speak queues text. QueueFlush interrupts the current utterance and drops
// anything queued before it.
func (s *ExecSpeaker) Speak(text string, mode feedback.QueueMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrReleased
	}
	if mode == feedback.QueueFlush {
		s.flush()
	}
	s.queue = append(s.queue, text)
	if !s.running {
		s.running = true
		s.wg.Add(1)
		go s.drain()
	}
	return nil
}

func (s *ExecSpeaker) flush() {
	s.queue = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *ExecSpeaker) drain() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.released {
			s.running = false
			s.mu.Unlock()
			return
		}
		text := s.queue[0]
		s.queue = s.queue[1:]
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.mu.Unlock()

		err := exec.CommandContext(ctx, s.command, s.args(text)...).Run()
		if err != nil && ctx.Err() == nil {
			log.Warn("speech failed", "command", s.command, "error", err)
		}
		cancel()
	}
}

func (s *ExecSpeaker) args(text string) []string {
	if s.voice == "" {
		return []string{text}
	}
	return []string{"-v", s.voice, text}
}

// Stop interrupts the current utterance and clears the queue.
func (s *ExecSpeaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flush()
	return nil
}

// Release stops speech and waits for the worker to exit. Later Speak calls
// fail with ErrReleased.
func (s *ExecSpeaker) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	s.flush()
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}
