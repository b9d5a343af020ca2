package app

import (
	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/gate"
	"github.com/ayusman/aisight/internal/loop"
	"github.com/ayusman/aisight/internal/perception"
)

// onResult builds the gate sink. It runs on the detection worker, interprets
// the result there and hands the event to the foreground loop, which is the
// only place presenter updates and the machine run.
//
// Liveness is checked on both sides of the handoff: a result that finishes
// after teardown or suspension began never reaches the machine.
func (s *Session) onResult(l *loop.Loop, m feedback.Machine) gate.Sink {
	presenter := s.cfg.Presenter
	interp := s.interp

	return func(res detector.Result) {
		if !s.alive.Load() {
			return
		}
		ev := perception.FromResult(interp, res)

		l.Post(func() {
			if !s.alive.Load() {
				return
			}
			presenter.ShowInferenceTime(res.InferenceTime)
			presenter.ShowBoxes(res.Boxes)
			m.Handle(ev)
		})
	}
}
