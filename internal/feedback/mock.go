package feedback

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrReleased is returned by mocks used after Release.
var ErrReleased = errors.New("feedback: released")

// PlayCall records one MockPlayer.Play call.
type PlayCall struct {
	Cue    Cue
	Loop   bool
	Handle Handle
}

// MockPlayer is a CuePlayer that records cues for testing.
type MockPlayer struct {
	mu       sync.Mutex
	plays    []PlayCall
	stops    []Handle
	active   map[Handle]Cue
	next     Handle
	failing  map[Cue]error
	releases int
	released bool
}

// NewMockPlayer creates a mock cue player.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{active: make(map[Handle]Cue), failing: make(map[Cue]error)}
}

// SetFailure makes Play fail for cue. A nil err clears it.
func (p *MockPlayer) SetFailure(cue Cue, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failing, cue)
		return
	}
	p.failing[cue] = err
}

func (p *MockPlayer) Play(cue Cue, loop bool) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return 0, ErrReleased
	}
	if err := p.failing[cue]; err != nil {
		return 0, err
	}
	p.next++
	h := p.next
	p.plays = append(p.plays, PlayCall{Cue: cue, Loop: loop, Handle: h})
	if loop {
		p.active[h] = cue
	}
	return h, nil
}

func (p *MockPlayer) Stop(h Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops = append(p.stops, h)
	delete(p.active, h)
	return nil
}

func (p *MockPlayer) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	p.released = true
	clear(p.active)
	return nil
}

// Plays returns every successful Play call.
func (p *MockPlayer) Plays() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PlayCall(nil), p.plays...)
}

// Count returns how many times cue was played.
func (p *MockPlayer) Count(cue Cue) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.plays {
		if c.Cue == cue {
			n++
		}
	}
	return n
}

// Looping reports how many looping cues are still playing.
func (p *MockPlayer) Looping() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Stops returns every stopped handle.
func (p *MockPlayer) Stops() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Handle(nil), p.stops...)
}

// Releases returns how many times Release was called.
func (p *MockPlayer) Releases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.releases
}

// Utterance records one MockSpeaker.Speak call.
type Utterance struct {
	Text string
	Mode QueueMode
	At   time.Time
}

// MockSpeaker is a Speaker that records utterances for testing.
type MockSpeaker struct {
	mu         sync.Mutex
	clock      Clock
	utterances []Utterance
	err        error
	stops      int
	releases   int
}

// NewMockSpeaker creates a mock speaker. clock stamps each utterance and may be nil.
func NewMockSpeaker(clock Clock) *MockSpeaker {
	return &MockSpeaker{clock: clock}
}

// SetError makes Speak fail with err.
func (s *MockSpeaker) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *MockSpeaker) Speak(text string, mode QueueMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	u := Utterance{Text: text, Mode: mode}
	if s.clock != nil {
		u.At = s.clock.Now()
	}
	s.utterances = append(s.utterances, u)
	return nil
}

func (s *MockSpeaker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *MockSpeaker) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases++
	return nil
}

// Utterances returns everything spoken so far.
func (s *MockSpeaker) Utterances() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Utterance(nil), s.utterances...)
}

// Stops returns how many times Stop was called.
func (s *MockSpeaker) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Releases returns how many times Release was called.
func (s *MockSpeaker) Releases() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases
}

// ManualClock is a Clock whose time only moves through Advance.
// Callbacks run synchronously inside Advance.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	at    time.Time
	seq   int
	f     func()
	done  bool
}

// NewManualClock creates a clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending returns the number of timers that have not fired or been stopped.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// Advance moves time forward by d, firing due timers in deadline order.
// Timers scheduled by callbacks fire too when they fall within the window.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		t := c.nextDue(end)
		if t == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		t.done = true
		if t.at.After(c.now) {
			c.now = t.at
		}
		c.mu.Unlock()
		t.f()
	}
}

func (c *ManualClock) nextDue(end time.Time) *manualTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.done {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].at.Equal(live[j].at) {
			return live[i].seq < live[j].seq
		}
		return live[i].at.Before(live[j].at)
	})
	if len(live) == 0 || live[0].at.After(end) {
		return nil
	}
	return live[0]
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}
