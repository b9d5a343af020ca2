package perception

import (
	"testing"

	"github.com/ayusman/aisight/internal/detector"
)

func box(x1, x2 float64, label string) detector.Box {
	return detector.Box{X1: x1, Y1: 0.1, X2: x2, Y2: 0.9, Label: label, Confidence: 0.9}
}

func TestDirectional_EmptyList(t *testing.T) {
	for _, boxes := range [][]detector.Box{nil, {}} {
		if got := (Directional{}).Interpret(boxes); got.Kind != KindEmpty {
			t.Errorf("Interpret(%v) = %+v, want Empty", boxes, got)
		}
	}
}

func TestClassify_Boundaries(t *testing.T) {
	const width = 900.0

	tests := []struct {
		name    string
		centerX float64
		want    Direction
	}{
		{name: "left edge", centerX: 0, want: Left},
		{name: "just left of first third", centerX: 299.999, want: Left},
		{name: "exactly first third", centerX: width / 3, want: Center},
		{name: "middle", centerX: 450, want: Center},
		{name: "exactly second third", centerX: 2 * width / 3, want: Center},
		{name: "just right of second third", centerX: 600.001, want: Right},
		{name: "right edge", centerX: width, want: Right},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.centerX, width); got != tt.want {
				t.Errorf("Classify(%v, %v) = %v, want %v", tt.centerX, width, got, tt.want)
			}
		})
	}
}

func TestDirectional_UsesFirstBox(t *testing.T) {
	interp := Directional{ViewWidth: 1}

	tests := []struct {
		name  string
		boxes []detector.Box
		want  Direction
	}{
		{name: "left", boxes: []detector.Box{box(0.0, 0.2, "door")}, want: Left},
		{name: "center", boxes: []detector.Box{box(0.4, 0.6, "door")}, want: Center},
		{name: "right", boxes: []detector.Box{box(0.8, 1.0, "door")}, want: Right},
		{
			name:  "first box wins over later boxes",
			boxes: []detector.Box{box(0.8, 1.0, "door"), box(0.0, 0.2, "door")},
			want:  Right,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interp.Interpret(tt.boxes)
			if got.Kind != KindDirection || got.Direction != tt.want {
				t.Errorf("Interpret() = %+v, want direction %v", got, tt.want)
			}
		})
	}
}

func TestDirectional_ScaleInvariant(t *testing.T) {
	boxes := []detector.Box{box(0.5, 0.5, "door")}
	for _, width := range []float64{0, 1, 480, 1280} {
		got := (Directional{ViewWidth: width}).Interpret(boxes)
		if got.Direction != Center {
			t.Errorf("width %v: direction = %v, want center", width, got.Direction)
		}
	}

	left := []detector.Box{{X1: 0.25, X2: 0.25}}
	for _, width := range []float64{1, 640} {
		if got := (Directional{ViewWidth: width}).Interpret(left); got.Direction != Left {
			t.Errorf("width %v: 0.25 = %v, want left", width, got.Direction)
		}
	}
}

func TestAggregate(t *testing.T) {
	tests := []struct {
		name  string
		boxes []detector.Box
		want  float64
	}{
		{name: "nil list", boxes: nil, want: 0},
		{name: "empty list", boxes: []detector.Box{}, want: 0},
		{name: "single note", boxes: []detector.Box{box(0, 1, "5")}, want: 5},
		{name: "mixed notes", boxes: []detector.Box{box(0, 1, "5"), box(0, 1, "0.5"), box(0, 1, "2")}, want: 7.5},
		{name: "non numeric labels count zero", boxes: []detector.Box{box(0, 1, "door"), box(0, 1, "10")}, want: 10},
		{name: "unparseable values", boxes: []detector.Box{box(0, 1, "NaN"), box(0, 1, "Inf"), box(0, 1, "")}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := (Aggregate{}).Interpret(tt.boxes)
			if got.Kind != KindAggregate {
				t.Fatalf("Kind = %v, want aggregate (never Empty)", got.Kind)
			}
			if got.Total != tt.want {
				t.Errorf("Total = %v, want %v", got.Total, tt.want)
			}
		})
	}
}

func TestFromResult(t *testing.T) {
	if got := FromResult(Aggregate{}, detector.Result{Empty: true}); got.Kind != KindEmpty {
		t.Errorf("aggregate over Empty result = %+v, want Empty", got)
	}
	if got := FromResult(Aggregate{}, detector.Result{Boxes: []detector.Box{}}); got.Kind != KindAggregate || got.Total != 0 {
		t.Errorf("aggregate over empty list = %+v, want AggregateValue(0)", got)
	}
	if got := FromResult(Directional{}, detector.Result{Boxes: []detector.Box{}}); got.Kind != KindEmpty {
		t.Errorf("directional over empty list = %+v, want Empty", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{5, "5"},
		{25, "25"},
		{7.5, "7.50"},
		{0.25, "0.25"},
		{10.125, "10.13"},
		{2.675, "2.68"},
		{1.005, "1.01"},
		{0.995, "1.00"},
		{12.344, "12.34"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.in); got != tt.want {
			t.Errorf("FormatAmount(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLabelValue(t *testing.T) {
	tests := []struct {
		label string
		want  float64
	}{
		{"5", 5},
		{" 2.50 ", 2.5},
		{"1e1", 10},
		{"-3", -3},
		{"5_0", 0},
		{"0x10", 0},
		{"0x1p3", 0},
		{"-0b1", 0},
		{"0o7", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"dinar", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := LabelValue(tt.label); got != tt.want {
			t.Errorf("LabelValue(%q) = %v, want %v", tt.label, got, tt.want)
		}
	}
}

func TestValueKey(t *testing.T) {
	if ValueKey(5) == ValueKey(7.5) {
		t.Error("distinct totals must have distinct keys")
	}
	if ValueKey(7.5) != "7.5" || ValueKey(0) != "0" {
		t.Errorf("ValueKey = %q/%q, want 7.5/0", ValueKey(7.5), ValueKey(0))
	}
}
