// Package perception interprets detection results into semantic events.
// Every interpreter is a pure function of the box list.
package perception

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ayusman/aisight/internal/detector"
)

// Direction is the horizontal zone of the selected target.
type Direction int

const (
	None Direction = iota
	Left
	Center
	Right
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Kind tags the variant carried by an Event.
type Kind int

const (
	KindEmpty Kind = iota
	KindDirection
	KindAggregate
)

func (k Kind) String() string {
	switch k {
	case KindDirection:
		return "direction"
	case KindAggregate:
		return "aggregate"
	default:
		return "empty"
	}
}

// Event is the normalized summary of one detection cycle.
type Event struct {
	Kind      Kind
	Direction Direction
	Total     float64
}

// Empty reports that nothing was detected.
func Empty() Event {
	return Event{Kind: KindEmpty}
}

// SingleTargetDirection reports the zone of the primary target.
func SingleTargetDirection(d Direction) Event {
	return Event{Kind: KindDirection, Direction: d}
}

// AggregateValue reports the summed value of all detections.
func AggregateValue(total float64) Event {
	return Event{Kind: KindAggregate, Total: total}
}

// Interpreter maps a box list to an Event.
type Interpreter interface {
	Interpret(boxes []detector.Box) Event
}

// FromResult interprets a detection result. A result flagged Empty by the
// detector yields Empty regardless of the interpreter.
func FromResult(interp Interpreter, result detector.Result) Event {
	if result.Empty {
		return Empty()
	}
	return interp.Interpret(result.Boxes)
}

// Directional locates a single target. The first box is the primary target;
// detectors order their output by descending confidence.
type Directional struct {
	// ViewWidth is the width boxes are scaled to before classification.
	// Zero means normalized coordinates (width 1).
	ViewWidth float64
}

// Interpret implements Interpreter.
func (d Directional) Interpret(boxes []detector.Box) Event {
	if len(boxes) == 0 {
		return Empty()
	}
	width := d.ViewWidth
	if width <= 0 {
		width = 1
	}
	return SingleTargetDirection(Classify(boxes[0].CenterX()*width, width))
}

// Classify bins a horizontal position into thirds of width. Positions exactly
// on either boundary are Center.
func Classify(centerX, width float64) Direction {
	switch {
	case centerX < width/3:
		return Left
	case centerX > 2*width/3:
		return Right
	default:
		return Center
	}
}

// Aggregate sums the numeric value encoded in each box label.
type Aggregate struct{}

// Interpret implements Interpreter. Labels that do not parse as numbers count as 0.
func (Aggregate) Interpret(boxes []detector.Box) Event {
	total := 0.0
	for _, b := range boxes {
		total += LabelValue(b.Label)
	}
	return AggregateValue(total)
}

// LabelValue parses a class label as a decimal number, returning 0 when it
// is not one. Digit separators and base prefixes are rejected.
func LabelValue(label string) float64 {
	label = strings.TrimSpace(label)
	if strings.ContainsRune(label, '_') || hasBasePrefix(label) {
		return 0
	}
	v, err := strconv.ParseFloat(label, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func hasBasePrefix(s string) bool {
	s = strings.TrimLeft(s, "+-")
	if len(s) < 2 || s[0] != '0' {
		return false
	}
	switch s[1] {
	case 'x', 'X', 'b', 'B', 'o', 'O':
		return true
	}
	return false
}

// FormatAmount renders a total for speech: integral values without decimals,
// fractional values with two decimal places. Rounding is half up on the
// shortest decimal form of total, so 2.675 reads "2.68".
func FormatAmount(total float64) string {
	if total == math.Trunc(total) {
		return strconv.FormatFloat(total, 'f', 0, 64)
	}

	sign := ""
	if total < 0 {
		sign, total = "-", -total
	}
	digits := strconv.FormatFloat(total, 'f', -1, 64)
	whole, frac, _ := strings.Cut(digits, ".")
	frac += "00"

	cents, err := strconv.ParseInt(whole+frac[:2], 10, 64)
	if err != nil {
		return sign + strconv.FormatFloat(total, 'f', 2, 64)
	}
	if frac[2] >= '5' {
		cents++
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ValueKey is the stringified total used to detect a change in reading.
func ValueKey(total float64) string {
	return strconv.FormatFloat(total, 'f', -1, 64)
}
