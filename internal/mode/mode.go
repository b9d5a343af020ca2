// Package mode defines the operating modes and routes voice commands to them.
package mode

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownMode is returned by Parse for an unrecognized mode name.
	ErrUnknownMode = errors.New("unknown mode")
	// ErrUnknownCommand is returned by FromCommand when no mode matches.
	ErrUnknownCommand = errors.New("unknown command")
)

// Mode selects how detections are interpreted and announced.
type Mode string

const (
	// Door guides the user toward a single door with directional cues.
	Door Mode = "door"
	// Money counts visible banknotes and announces the total.
	Money Mode = "money"
)

// Parse returns the mode named s.
func Parse(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Door:
		return Door, nil
	case Money:
		return Money, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Torch reports whether the camera light should be on in this mode.
func (m Mode) Torch() bool {
	return m == Money
}

// Directional reports whether the mode guides toward a target rather than
// counting.
func (m Mode) Directional() bool {
	return m == Door
}

func (m Mode) String() string {
	return string(m)
}

var commands = map[string]Mode{
	"اين الباب":          Door,
	"أين الباب":          Door,
	"وين الباب":          Door,
	"where is the door":  Door,
	"find door":          Door,
	"find the door":      Door,
	"كم معي":             Money,
	"كم ترى من المال":    Money,
	"how much money":     Money,
	"count money":        Money,
	"how much do i have": Money,
}

// FromCommand maps a recognized voice command to a mode.
func FromCommand(text string) (Mode, error) {
	key := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	key = strings.TrimRight(key, "?؟!.")
	if m, ok := commands[key]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCommand, text)
}
