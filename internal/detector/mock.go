package detector

import (
	"sync"
	"time"

	"github.com/ayusman/aisight/internal/capture"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results and observe how often,
// and how concurrently, it was called.
type MockDetector struct {
	mu       sync.Mutex
	boxes    []Box
	empty    bool
	err      error
	setupErr error
	latency  time.Duration

	calls         int
	inFlight      int
	maxConcurrent int
	setups        int
	closes        int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetBoxes sets the boxes that will be returned by Detect.
func (m *MockDetector) SetBoxes(boxes []Box) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = boxes
	m.empty = false
}

// SetEmpty makes Detect report that nothing was found.
func (m *MockDetector) SetEmpty() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.boxes = nil
	m.empty = true
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetSetupError sets the error that will be returned by Setup.
func (m *MockDetector) SetSetupError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setupErr = err
}

// SetLatency makes every Detect call take at least d.
func (m *MockDetector) SetLatency(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latency = d
}

// Setup returns the configured setup error.
func (m *MockDetector) Setup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setups++
	return m.setupErr
}

// Detect returns the pre-configured boxes or error.
func (m *MockDetector) Detect(frame capture.Frame) (Result, error) {
	m.mu.Lock()
	m.calls++
	m.inFlight++
	if m.inFlight > m.maxConcurrent {
		m.maxConcurrent = m.inFlight
	}
	latency := m.latency
	boxes := append([]Box(nil), m.boxes...)
	empty, err := m.empty, m.err
	m.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if err != nil {
		return Result{}, err
	}
	if empty {
		return Result{Empty: true, InferenceTime: latency}, nil
	}
	if boxes == nil {
		boxes = []Box{}
	}
	return Result{Boxes: boxes, InferenceTime: latency}, nil
}

// Close counts the call; the mock holds no resources.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

// Calls returns the number of Detect calls.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MaxConcurrent returns the highest number of overlapping Detect calls seen.
func (m *MockDetector) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrent
}

// Setups returns the number of Setup calls.
func (m *MockDetector) Setups() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setups
}

// Closes returns the number of Close calls.
func (m *MockDetector) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

// DoorAt returns a door box centered horizontally at centerX.
func DoorAt(centerX, confidence float64) Box {
	return Box{X1: centerX - 0.1, Y1: 0.1, X2: centerX + 0.1, Y2: 0.9, Label: "door", Confidence: confidence}
}

// Banknote returns a box labelled with a numeric denomination.
func Banknote(label string, confidence float64) Box {
	return Box{X1: 0.2, Y1: 0.3, X2: 0.6, Y2: 0.7, Label: label, Confidence: confidence}
}
