// Package feedback turns perception events into audio cues, speech, haptic
// pulses and display updates. All feedback state lives inside a Machine.
package feedback

import (
	"time"

	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/perception"
)

// Cue identifies a short audio signal.
type Cue int

const (
	CueSearching Cue = iota
	CueAcquired
	CueLeft
	CueRight
	CueAhead
)

func (c Cue) String() string {
	switch c {
	case CueSearching:
		return "searching"
	case CueAcquired:
		return "acquired"
	case CueLeft:
		return "left"
	case CueRight:
		return "right"
	case CueAhead:
		return "ahead"
	default:
		return "unknown"
	}
}

// Handle identifies a playing cue.
type Handle uint64

// CuePlayer plays audio cues.
type CuePlayer interface {
	Play(cue Cue, loop bool) (Handle, error)
	Stop(h Handle) error
	Release() error
}

// QueueMode controls how a new utterance interacts with queued speech.
type QueueMode int

const (
	// QueueFlush drops anything currently spoken or queued.
	QueueFlush QueueMode = iota
	// QueueAdd appends after queued speech.
	QueueAdd
)

// Speaker synthesizes speech.
type Speaker interface {
	Speak(text string, mode QueueMode) error
	Stop() error
	Release() error
}

// Presenter receives fire-and-forget display updates.
type Presenter interface {
	ShowInferenceTime(d time.Duration)
	ShowBoxes(boxes []detector.Box)
	ShowTotal(text string)
	ShowDirection(d perception.Direction)
}

// Pattern is a haptic vibration sequence. Pulses alternate on and off
// durations in milliseconds, starting with on.
type Pattern struct {
	Name   string `json:"name"`
	Pulses []int  `json:"pulses_ms"`
}

var (
	PatternLeft     = Pattern{Name: "left", Pulses: []int{120}}
	PatternRight    = Pattern{Name: "right", Pulses: []int{60, 60, 60}}
	PatternAhead    = Pattern{Name: "ahead", Pulses: []int{300}}
	PatternAcquired = Pattern{Name: "acquired", Pulses: []int{40, 40, 40, 40, 40}}
)

// Haptics emits vibration patterns on a wearable.
type Haptics interface {
	Pulse(p Pattern) error
}

// Timer is a pending callback.
type Timer interface {
	// Stop cancels the callback. It reports false if the timer already fired
	// or was stopped.
	Stop() bool
}

// Clock schedules callbacks on the foreground context.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Machine consumes perception events on the foreground context.
type Machine interface {
	Handle(ev perception.Event)
	// Reset silences every cue, cancels timers and clears state.
	Reset()
	// Close resets the machine and ignores every later event.
	Close()
	Snapshot() State
}

// State is a point-in-time view of a machine.
type State struct {
	Searching       bool                 `json:"searching"`
	LastPresence    bool                 `json:"last_presence"`
	LastDirection   perception.Direction `json:"last_direction"`
	Total           float64              `json:"total"`
	LastSpokenValue string               `json:"last_spoken_value,omitempty"`
	LastSpeak       time.Time            `json:"last_speak,omitzero"`
	TimerActive     bool                 `json:"timer_active"`
	Closed          bool                 `json:"closed"`
}

// NopPresenter discards every update.
type NopPresenter struct{}

func (NopPresenter) ShowInferenceTime(time.Duration) {}
func (NopPresenter) ShowBoxes([]detector.Box) {}
func (NopPresenter) ShowTotal(string) {}
func (NopPresenter) ShowDirection(perception.Direction) {}
