package feedback

import (
	"sync"
	"time"

	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/perception"
)

// DefaultCooldown is the minimum interval between repeated announcements.
const DefaultCooldown = 4 * time.Second

// AggregateConfig configures an Aggregate machine.
type AggregateConfig struct {
	Cooldown time.Duration
	// Unit is appended to spoken and displayed totals, e.g. "dinars".
	Unit string
}

// Aggregate announces a running total: immediately when it changes, then
// once per cooldown while it stays the same.
type Aggregate struct {
	mu        sync.Mutex
	clock     Clock
	speaker   Speaker
	presenter Presenter
	cooldown  time.Duration
	unit      string

	total           float64
	lastSpokenValue string
	lastSpeak       time.Time
	timer           Timer
	gen             uint64
	closed          bool
}

// NewAggregate creates an aggregate machine. presenter may be nil.
func NewAggregate(clock Clock, speaker Speaker, presenter Presenter, cfg AggregateConfig) *Aggregate {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Aggregate{
		clock:     clock,
		speaker:   speaker,
		presenter: presenter,
		cooldown:  cfg.Cooldown,
		unit:      cfg.Unit,
	}
}

// Handle applies one event.
func (m *Aggregate) Handle(ev perception.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	switch ev.Kind {
	case perception.KindEmpty:
		m.reset()
		m.presenter.ShowTotal(m.text(0))
	case perception.KindAggregate:
		m.onTotal(ev.Total)
	}
}

func (m *Aggregate) onTotal(total float64) {
	m.total = total
	m.presenter.ShowTotal(m.text(total))

	key := perception.ValueKey(total)
	if key == m.lastSpokenValue {
		return
	}
	m.lastSpeak = time.Time{}
	m.lastSpokenValue = key
	if total != 0 {
		m.schedule(0)
	} else {
		m.stopTimer()
	}
}

func (m *Aggregate) text(total float64) string {
	amount := perception.FormatAmount(total)
	if m.unit == "" {
		return amount
	}
	return amount + " " + m.unit
}

// schedule replaces any pending timer. Callbacks from replaced timers are
// ignored through the generation counter.
func (m *Aggregate) schedule(d time.Duration) {
	m.stopTimer()
	m.gen++
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() { m.fire(gen) })
}

func (m *Aggregate) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
}

func (m *Aggregate) fire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || gen != m.gen {
		return
	}
	m.timer = nil
	if m.total == 0 {
		return
	}

	now := m.clock.Now()
	if !m.lastSpeak.IsZero() {
		if wait := m.cooldown - now.Sub(m.lastSpeak); wait > 0 {
			m.schedule(wait)
			return
		}
	}

	text := m.text(m.total)
	if err := m.speaker.Speak(text, QueueFlush); err != nil {
		log.Warn("announcement failed", "text", text, "error", err)
	} else {
		m.lastSpeak = now
	}
	m.schedule(m.cooldown)
}

// Reset cancels the repeat timer and clears the total.
func (m *Aggregate) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *Aggregate) reset() {
	m.stopTimer()
	m.total = 0
	m.lastSpokenValue = ""
	m.lastSpeak = time.Time{}
}

// Close resets the machine. Later events and pending callbacks are ignored.
func (m *Aggregate) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.reset()
	m.closed = true
}

// Snapshot returns the current state.
func (m *Aggregate) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Total:           m.total,
		LastSpokenValue: m.lastSpokenValue,
		LastSpeak:       m.lastSpeak,
		TimerActive:     m.timer != nil,
		Closed:          m.closed,
	}
}
