package app

import (
	"sync"
	"testing"
	"time"

	"github.com/ayusman/aisight/internal/capture"
	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/mode"
	"github.com/ayusman/aisight/internal/perception"
)

type fixture struct {
	det       *detector.MockDetector
	src       *capture.MockSource
	player    *feedback.MockPlayer
	speaker   *feedback.MockSpeaker
	presenter *countingPresenter
}

func newFixture(interval time.Duration) *fixture {
	frames := []capture.Frame{{Width: 640, Height: 480}}
	return &fixture{
		det:       detector.NewMockDetector(),
		src:       capture.NewMockSource(frames, interval, true),
		player:    feedback.NewMockPlayer(),
		speaker:   feedback.NewMockSpeaker(nil),
		presenter: &countingPresenter{},
	}
}

func (f *fixture) config(m mode.Mode) Config {
	return Config{
		Mode:      m,
		Detector:  f.det,
		Source:    f.src,
		Cues:      f.player,
		Speaker:   f.speaker,
		Presenter: f.presenter,
		Cooldown:  time.Second,
		Unit:      "dinars",
	}
}

type countingPresenter struct {
	mu         sync.Mutex
	inferences int
	totals     []string
	directions []perception.Direction
}

func (p *countingPresenter) ShowInferenceTime(time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inferences++
}

func (p *countingPresenter) ShowBoxes([]detector.Box) {}

func (p *countingPresenter) ShowTotal(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals = append(p.totals, text)
}

func (p *countingPresenter) ShowDirection(d perception.Direction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.directions = append(p.directions, d)
}

func (p *countingPresenter) Inferences() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inferences
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
