// Package detector defines the object detector contract used by the pipeline
// and the implementations that satisfy it.
package detector

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ayusman/aisight/internal/capture"
)

// ErrDetectorInit is returned when a detector cannot be set up.
var ErrDetectorInit = errors.New("detector init failed")

// Box is a single detection in normalized [0,1] image coordinates.
type Box struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// CenterX returns the horizontal center of the box.
func (b Box) CenterX() float64 {
	return (b.X1 + b.X2) / 2
}

// Result is the outcome of one detection cycle.
type Result struct {
	Boxes         []Box         `json:"boxes"`
	InferenceTime time.Duration `json:"inference_time"`
	// Empty is set when the detector reported that nothing was found,
	// as opposed to reporting a (possibly empty) list of boxes.
	Empty bool `json:"empty"`
}

// Detector defines the interface for object detection implementations.
//
// Detect is never called concurrently by the pipeline, but implementations
// must return boxes in confidence-descending order.
type Detector interface {
	// Setup loads the model bundle. Errors wrap ErrDetectorInit.
	Setup() error

	// Detect analyzes a frame and returns the detected boxes.
	Detect(frame capture.Frame) (Result, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Bundle locates the model and label resources of a detector.
type Bundle struct {
	ModelPath  string
	LabelsPath string
}

// LoadLabels reads one class label per line, skipping blank lines.
func LoadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()

	var labels []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s is empty", path)
	}
	return labels, nil
}

// SortByConfidence orders boxes by descending confidence, keeping the
// reported order for ties.
func SortByConfidence(boxes []Box) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Confidence > boxes[j].Confidence
	})
}
