package detector

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/aisight/internal/capture"
)

func TestBox_CenterX(t *testing.T) {
	b := Box{X1: 0.2, X2: 0.4}
	if got := b.CenterX(); got < 0.2999 || got > 0.3001 {
		t.Errorf("CenterX() = %f, want 0.3", got)
	}
}

func TestSortByConfidence(t *testing.T) {
	boxes := []Box{
		{Label: "a", Confidence: 0.5},
		{Label: "b", Confidence: 0.9},
		{Label: "c", Confidence: 0.5},
		{Label: "d", Confidence: 0.7},
	}

	SortByConfidence(boxes)

	want := []string{"b", "d", "a", "c"}
	for i, label := range want {
		if boxes[i].Label != label {
			t.Errorf("boxes[%d] = %s, want %s", i, boxes[i].Label, label)
		}
	}
}

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	t.Run("skips blank lines", func(t *testing.T) {
		path := filepath.Join(dir, "labels.txt")
		if err := os.WriteFile(path, []byte("5\n\n10\n 20 \n"), 0o644); err != nil {
			t.Fatal(err)
		}

		labels, err := LoadLabels(path)
		if err != nil {
			t.Fatalf("LoadLabels() error = %v", err)
		}
		if len(labels) != 3 || labels[0] != "5" || labels[2] != "20" {
			t.Errorf("labels = %v, want [5 10 20]", labels)
		}
	})

	t.Run("empty file fails", func(t *testing.T) {
		path := filepath.Join(dir, "empty.txt")
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadLabels(path); err == nil {
			t.Error("expected error for empty labels file")
		}
	})

	t.Run("missing file fails", func(t *testing.T) {
		if _, err := LoadLabels(filepath.Join(dir, "missing.txt")); err == nil {
			t.Error("expected error for missing labels file")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	labels := []string{"door", "5", "10"}

	t.Run("null boxes is empty", func(t *testing.T) {
		r, err := decodeResponse([]byte(`{"boxes":null,"inference_ms":12}`), labels, 0)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if !r.Empty {
			t.Error("expected Empty result")
		}
		if r.InferenceTime != 12*time.Millisecond {
			t.Errorf("InferenceTime = %v, want 12ms", r.InferenceTime)
		}
	})

	t.Run("resolves class labels and sorts", func(t *testing.T) {
		line := `{"boxes":[
			{"x1":0.1,"y1":0.1,"x2":0.3,"y2":0.3,"class":1,"confidence":0.6},
			{"x1":0.5,"y1":0.1,"x2":1.2,"y2":0.3,"label":"10","confidence":0.8}
		]}`
		r, err := decodeResponse([]byte(line), labels, 0)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if r.Empty || len(r.Boxes) != 2 {
			t.Fatalf("got %+v, want two boxes", r)
		}
		if r.Boxes[0].Label != "10" || r.Boxes[1].Label != "5" {
			t.Errorf("labels = %s,%s, want 10,5", r.Boxes[0].Label, r.Boxes[1].Label)
		}
		if r.Boxes[0].X2 != 1 {
			t.Errorf("X2 = %f, want clamped to 1", r.Boxes[0].X2)
		}
	})

	t.Run("below threshold becomes empty", func(t *testing.T) {
		r, err := decodeResponse([]byte(`{"boxes":[{"label":"door","confidence":0.2}]}`), labels, 0.5)
		if err != nil {
			t.Fatalf("decodeResponse() error = %v", err)
		}
		if !r.Empty {
			t.Errorf("expected Empty result, got %+v", r)
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := decodeResponse([]byte(`{"boxes":`), labels, 0); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestServiceDetector_Setup(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "service.py")
	model := filepath.Join(dir, "door_model.tflite")
	labelsPath := filepath.Join(dir, "door_labels.txt")

	for _, p := range []string{script, model} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(labelsPath, []byte("door\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     ServiceConfig
		wantErr bool
	}{
		{
			name: "valid bundle",
			cfg:  ServiceConfig{Script: script, Bundle: Bundle{ModelPath: model, LabelsPath: labelsPath}},
		},
		{
			name:    "no script",
			cfg:     ServiceConfig{Bundle: Bundle{ModelPath: model, LabelsPath: labelsPath}},
			wantErr: true,
		},
		{
			name:    "missing model",
			cfg:     ServiceConfig{Script: script, Bundle: Bundle{ModelPath: filepath.Join(dir, "nope"), LabelsPath: labelsPath}},
			wantErr: true,
		},
		{
			name:    "missing labels",
			cfg:     ServiceConfig{Script: script, Bundle: Bundle{ModelPath: model, LabelsPath: filepath.Join(dir, "nope")}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewServiceDetector(tt.cfg)
			err := d.Setup()
			if tt.wantErr {
				if !errors.Is(err, ErrDetectorInit) {
					t.Errorf("Setup() error = %v, want ErrDetectorInit", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Setup() error = %v", err)
			}
			if err := d.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
			if err := d.Close(); err != nil {
				t.Errorf("second Close() error = %v", err)
			}
		})
	}
}

func TestServiceDetector_DetectRequiresSetup(t *testing.T) {
	d := NewServiceDetector(ServiceConfig{})
	if _, err := d.Detect(capture.Frame{}); !errors.Is(err, ErrDetectorInit) {
		t.Errorf("Detect() before Setup error = %v, want ErrDetectorInit", err)
	}
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty list by default", func(t *testing.T) {
		mock := NewMockDetector()

		r, err := mock.Detect(capture.Frame{})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if r.Empty || r.Boxes == nil || len(r.Boxes) != 0 {
			t.Errorf("got %+v, want non-empty result with zero boxes", r)
		}
	})

	t.Run("returns configured boxes", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetBoxes([]Box{DoorAt(0.5, 0.9)})

		r, _ := mock.Detect(capture.Frame{})
		if len(r.Boxes) != 1 || r.Boxes[0].Label != "door" {
			t.Errorf("got %+v, want one door box", r)
		}
	})

	t.Run("reports empty", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetEmpty()

		r, _ := mock.Detect(capture.Frame{})
		if !r.Empty {
			t.Error("expected Empty result")
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		wantErr := errors.New("inference failed")
		mock.SetError(wantErr)

		if _, err := mock.Detect(capture.Frame{}); !errors.Is(err, wantErr) {
			t.Errorf("error = %v, want %v", err, wantErr)
		}
	})

	t.Run("tracks concurrency", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetLatency(20 * time.Millisecond)

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				mock.Detect(capture.Frame{})
			}()
		}
		wg.Wait()

		if mock.Calls() != 3 {
			t.Errorf("Calls() = %d, want 3", mock.Calls())
		}
		if mock.MaxConcurrent() < 2 {
			t.Errorf("MaxConcurrent() = %d, want overlapping calls recorded", mock.MaxConcurrent())
		}
	})
}
