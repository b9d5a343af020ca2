package feedback

import (
	"sync"

	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/perception"
)

// Directional guides the user toward a single target with audio cues.
type Directional struct {
	mu        sync.Mutex
	player    CuePlayer
	presenter Presenter
	haptics   Haptics

	searching     bool
	searchHandle  Handle
	lastPresence  bool
	lastDirection perception.Direction
	closed        bool
}

// NewDirectional creates a directional machine. presenter and haptics may be nil.
func NewDirectional(player CuePlayer, presenter Presenter, haptics Haptics) *Directional {
	if presenter == nil {
		presenter = NopPresenter{}
	}
	return &Directional{player: player, presenter: presenter, haptics: haptics}
}

// Handle applies one event.
func (m *Directional) Handle(ev perception.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	switch ev.Kind {
	case perception.KindEmpty:
		m.onEmpty()
	case perception.KindDirection:
		m.onDirection(ev.Direction)
	}
}

func (m *Directional) onEmpty() {
	if !m.searching {
		h, err := m.player.Play(CueSearching, true)
		if err != nil {
			log.Warn("searching cue failed", "error", err)
		} else {
			m.searching = true
			m.searchHandle = h
		}
	}
	if m.lastDirection != perception.None {
		m.presenter.ShowDirection(perception.None)
	}
	m.lastPresence = false
	m.lastDirection = perception.None
}

func (m *Directional) onDirection(d perception.Direction) {
	m.stopSearching()

	if !m.lastPresence {
		if _, err := m.player.Play(CueAcquired, false); err != nil {
			log.Warn("acquired cue failed", "error", err)
		} else {
			m.lastPresence = true
			m.pulse(PatternAcquired)
		}
	}

	if d == m.lastDirection {
		return
	}
	cue, pattern := directionCue(d)
	if _, err := m.player.Play(cue, false); err != nil {
		log.Warn("direction cue failed", "direction", d, "error", err)
		return
	}
	m.lastDirection = d
	m.pulse(pattern)
	m.presenter.ShowDirection(d)
}

func directionCue(d perception.Direction) (Cue, Pattern) {
	switch d {
	case perception.Left:
		return CueLeft, PatternLeft
	case perception.Right:
		return CueRight, PatternRight
	default:
		return CueAhead, PatternAhead
	}
}

func (m *Directional) pulse(p Pattern) {
	if m.haptics == nil {
		return
	}
	if err := m.haptics.Pulse(p); err != nil {
		log.Debug("haptic pulse failed", "pattern", p.Name, "error", err)
	}
}

func (m *Directional) stopSearching() {
	if !m.searching {
		return
	}
	if err := m.player.Stop(m.searchHandle); err != nil {
		log.Debug("stop searching cue", "error", err)
	}
	m.searching = false
	m.searchHandle = 0
}

// Reset silences the searching cue and forgets the last target.
func (m *Directional) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reset()
}

func (m *Directional) reset() {
	m.stopSearching()
	m.lastPresence = false
	m.lastDirection = perception.None
}

// Close resets the machine. Later events are ignored.
func (m *Directional) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.reset()
	m.closed = true
}

// Snapshot returns the current state.
func (m *Directional) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Searching:     m.searching,
		LastPresence:  m.lastPresence,
		LastDirection: m.lastDirection,
		Closed:        m.closed,
	}
}
