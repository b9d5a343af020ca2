package feedback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/perception"
)

type recordingPresenter struct {
	mu         sync.Mutex
	totals     []string
	directions []perception.Direction
}

func (p *recordingPresenter) ShowInferenceTime(time.Duration) {}
func (p *recordingPresenter) ShowBoxes([]detector.Box) {}

func (p *recordingPresenter) ShowTotal(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.totals = append(p.totals, text)
}

func (p *recordingPresenter) ShowDirection(d perception.Direction) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.directions = append(p.directions, d)
}

func (p *recordingPresenter) lastTotal() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.totals) == 0 {
		return ""
	}
	return p.totals[len(p.totals)-1]
}

type recordingHaptics struct {
	patterns []string
}

func (h *recordingHaptics) Pulse(p Pattern) error {
	h.patterns = append(h.patterns, p.Name)
	return nil
}

var (
	empty  = perception.Empty()
	left   = perception.SingleTargetDirection(perception.Left)
	center = perception.SingleTargetDirection(perception.Center)
	right  = perception.SingleTargetDirection(perception.Right)
)

func TestDirectional_DebounceLaw(t *testing.T) {
	player := NewMockPlayer()
	m := NewDirectional(player, nil, nil)

	m.Handle(center)
	m.Handle(center)

	if got := player.Count(CueAhead); got != 1 {
		t.Errorf("ahead cues = %d, want 1", got)
	}
}

func TestDirectional_OnsetLaw(t *testing.T) {
	player := NewMockPlayer()
	m := NewDirectional(player, nil, nil)

	m.Handle(empty)
	m.Handle(left)

	if got := player.Count(CueAcquired); got != 1 {
		t.Errorf("acquired cues after onset = %d, want 1", got)
	}
	if got := player.Count(CueLeft); got != 1 {
		t.Errorf("left cues after onset = %d, want 1", got)
	}
	if got := player.Looping(); got != 0 {
		t.Errorf("looping cues after onset = %d, want 0", got)
	}

	for range 5 {
		m.Handle(left)
	}
	if got := len(player.Plays()); got != 3 {
		t.Errorf("total plays while target stays = %d, want 3 (searching, acquired, left)", got)
	}

	m.Handle(empty)
	m.Handle(left)
	if got := player.Count(CueAcquired); got != 2 {
		t.Errorf("acquired cues after second onset = %d, want 2", got)
	}
	if got := player.Count(CueLeft); got != 2 {
		t.Errorf("left cues after second onset = %d, want 2", got)
	}
}

func TestDirectional_DirectionChanges(t *testing.T) {
	tests := []struct {
		name   string
		events []perception.Event
		want   []Cue
	}{
		{
			name:   "left then right",
			events: []perception.Event{left, right},
			want:   []Cue{CueAcquired, CueLeft, CueRight},
		},
		{
			name:   "center repeated then left",
			events: []perception.Event{center, center, center, left},
			want:   []Cue{CueAcquired, CueAhead, CueLeft},
		},
		{
			name:   "repeated empty starts one searching loop",
			events: []perception.Event{empty, empty, empty},
			want:   []Cue{CueSearching},
		},
		{
			name:   "aggregate events are ignored",
			events: []perception.Event{perception.AggregateValue(5)},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			player := NewMockPlayer()
			m := NewDirectional(player, nil, nil)
			for _, ev := range tt.events {
				m.Handle(ev)
			}

			plays := player.Plays()
			if len(plays) != len(tt.want) {
				t.Fatalf("plays = %v, want %v", plays, tt.want)
			}
			for i, c := range tt.want {
				if plays[i].Cue != c {
					t.Errorf("play[%d] = %v, want %v", i, plays[i].Cue, c)
				}
			}
		})
	}
}

func TestDirectional_SearchingLoop(t *testing.T) {
	player := NewMockPlayer()
	m := NewDirectional(player, nil, nil)

	m.Handle(empty)
	plays := player.Plays()
	if len(plays) != 1 || !plays[0].Loop {
		t.Fatalf("plays = %+v, want one looping searching cue", plays)
	}
	if !m.Snapshot().Searching {
		t.Error("Searching = false after Empty")
	}

	m.Handle(center)
	stops := player.Stops()
	if len(stops) != 1 || stops[0] != plays[0].Handle {
		t.Errorf("stops = %v, want [%d]", stops, plays[0].Handle)
	}
	if m.Snapshot().Searching {
		t.Error("Searching = true after detection")
	}
}

func TestDirectional_FailedCueKeepsState(t *testing.T) {
	player := NewMockPlayer()
	m := NewDirectional(player, nil, nil)
	player.SetFailure(CueAcquired, errors.New("sound not loaded"))
	player.SetFailure(CueAhead, errors.New("sound not loaded"))

	m.Handle(center)
	s := m.Snapshot()
	if s.LastPresence || s.LastDirection != perception.None {
		t.Fatalf("state = %+v, want unchanged after failed cues", s)
	}

	player.SetFailure(CueAcquired, nil)
	player.SetFailure(CueAhead, nil)
	m.Handle(center)
	if player.Count(CueAcquired) != 1 || player.Count(CueAhead) != 1 {
		t.Errorf("plays = %+v, want acquired and ahead retried once", player.Plays())
	}

	player.SetFailure(CueSearching, errors.New("sound not loaded"))
	m.Handle(empty)
	if m.Snapshot().Searching {
		t.Error("Searching = true although the cue failed")
	}
}

func TestDirectional_HapticsAndPresenter(t *testing.T) {
	player := NewMockPlayer()
	haptics := &recordingHaptics{}
	presenter := &recordingPresenter{}
	m := NewDirectional(player, presenter, haptics)

	m.Handle(left)
	m.Handle(left)
	m.Handle(right)
	m.Handle(empty)

	wantPatterns := []string{"acquired", "left", "right"}
	if len(haptics.patterns) != len(wantPatterns) {
		t.Fatalf("patterns = %v, want %v", haptics.patterns, wantPatterns)
	}
	for i, p := range wantPatterns {
		if haptics.patterns[i] != p {
			t.Errorf("pattern[%d] = %q, want %q", i, haptics.patterns[i], p)
		}
	}

	wantDirs := []perception.Direction{perception.Left, perception.Right, perception.None}
	if len(presenter.directions) != len(wantDirs) {
		t.Fatalf("directions = %v, want %v", presenter.directions, wantDirs)
	}
	for i, d := range wantDirs {
		if presenter.directions[i] != d {
			t.Errorf("direction[%d] = %v, want %v", i, presenter.directions[i], d)
		}
	}
}

func TestDirectional_Close(t *testing.T) {
	player := NewMockPlayer()
	m := NewDirectional(player, nil, nil)

	m.Handle(empty)
	m.Close()
	m.Close()

	if got := player.Looping(); got != 0 {
		t.Errorf("looping cues after Close = %d, want 0", got)
	}
	if got := len(player.Stops()); got != 1 {
		t.Errorf("stops = %d, want 1", got)
	}

	m.Handle(left)
	m.Handle(empty)
	if got := len(player.Plays()); got != 1 {
		t.Errorf("plays after Close = %d, want 1", got)
	}
	if !m.Snapshot().Closed {
		t.Error("Closed = false")
	}
}

func TestDirectional_Reset(t *testing.T) {
	player := NewMockPlayer()
	m := NewDirectional(player, nil, nil)

	m.Handle(left)
	m.Reset()
	m.Handle(left)

	if got := player.Count(CueAcquired); got != 2 {
		t.Errorf("acquired cues = %d, want 2 (reset forgets presence)", got)
	}
}
