package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/aisight/internal/capture"
	"github.com/ayusman/aisight/internal/log"
)

const (
	// DefaultIdleTimeout is how long the inference process may stay unused before it is stopped.
	DefaultIdleTimeout = 30 * time.Second
	// DefaultResponseTimeout bounds one frame round trip to the inference process.
	DefaultResponseTimeout = 5 * time.Second
)

var (
	// ErrResponseTimeout is returned when the inference process does not
	// answer a frame in time. The process is killed and restarted on the
	// next frame.
	ErrResponseTimeout = errors.New("inference service response timeout")

	// errNoPixels is returned when a frame without pixel data reaches the service.
	errNoPixels = errors.New("frame has no pixel data")
)

// ServiceConfig holds configuration options for the inference service detector.
type ServiceConfig struct {
	// Command is the interpreter used to run Script (default: python3).
	Command string
	// Script is the inference service entry point.
	Script string
	// Bundle is passed to the service as --model and --labels.
	Bundle Bundle
	// MinConfidence drops boxes below this confidence (0.0-1.0).
	MinConfidence float64
	// IdleTimeout stops the process after this much inactivity (default: 30s).
	IdleTimeout time.Duration
	// ResponseTimeout bounds each frame round trip (default: 5s).
	ResponseTimeout time.Duration
}

// ServiceDetector implements Detector using an external inference process.
// Frames are sent as length-prefixed JPEG on stdin; the process answers
// with one JSON line per frame.
type ServiceDetector struct {
	config    ServiceConfig
	labels    []string
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	ready     bool
	started   bool
	idleTimer *time.Timer
}

// NewServiceDetector creates a new inference service detector.
// The process is started lazily on first detection.
func NewServiceDetector(config ServiceConfig) *ServiceDetector {
	if config.Command == "" {
		config.Command = "python3"
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}
	if config.ResponseTimeout <= 0 {
		config.ResponseTimeout = DefaultResponseTimeout
	}
	return &ServiceDetector{config: config}
}

// Setup validates the model bundle and loads the labels.
func (d *ServiceDetector) Setup() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.config.Script == "" {
		return fmt.Errorf("%w: no service script configured", ErrDetectorInit)
	}
	if _, err := os.Stat(d.config.Script); err != nil {
		return fmt.Errorf("%w: %v", ErrDetectorInit, err)
	}
	if _, err := os.Stat(d.config.Bundle.ModelPath); err != nil {
		return fmt.Errorf("%w: model: %v", ErrDetectorInit, err)
	}

	labels, err := LoadLabels(d.config.Bundle.LabelsPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDetectorInit, err)
	}

	d.labels = labels
	d.ready = true
	log.Info("detector ready", "model", filepath.Base(d.config.Bundle.ModelPath), "labels", len(labels))
	return nil
}

// Detect analyzes a frame and returns the detected boxes in confidence order.
func (d *ServiceDetector) Detect(frame capture.Frame) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.ready {
		return Result{}, fmt.Errorf("%w: Setup not called", ErrDetectorInit)
	}
	if frame.Mat == nil || frame.Mat.Empty() {
		return Result{}, errNoPixels
	}

	started := time.Now()

	buf, err := gocv.IMEncode(".jpg", *frame.Mat)
	if err != nil {
		return Result{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	return d.process(buf.GetBytes(), started)
}

// process sends one encoded frame to the service and decodes the answer.
// The caller holds d.mu.
func (d *ServiceDetector) process(data []byte, started time.Time) (Result, error) {
	if err := d.ensureStarted(); err != nil {
		return Result{}, err
	}

	line, err := d.exchange(data)
	if err != nil {
		return Result{}, err
	}

	result, err := decodeResponse(line, d.labels, d.config.MinConfidence)
	if err != nil {
		return Result{}, err
	}
	if result.InferenceTime == 0 {
		result.InferenceTime = time.Since(started)
	}

	d.resetIdleTimer()
	return result, nil
}

type reply struct {
	line []byte
	err  error
}

// exchange writes a length-prefixed frame and reads one response line. A
// service that does not answer within ResponseTimeout is killed.
func (d *ServiceDetector) exchange(data []byte) ([]byte, error) {
	stdin, stdout := d.stdin, d.stdout
	done := make(chan reply, 1)

	go func() {
		// Write length (4 bytes big-endian) + data
		length := make([]byte, 4)
		binary.BigEndian.PutUint32(length, uint32(len(data)))

		if _, err := stdin.Write(length); err != nil {
			done <- reply{err: fmt.Errorf("write length: %w", err)}
			return
		}
		if _, err := stdin.Write(data); err != nil {
			done <- reply{err: fmt.Errorf("write data: %w", err)}
			return
		}
		line, err := stdout.ReadBytes('\n')
		if err != nil {
			err = fmt.Errorf("read response: %w", err)
		}
		done <- reply{line: line, err: err}
	}()

	timer := time.NewTimer(d.config.ResponseTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			d.shutdown()
			return nil, r.err
		}
		return r.line, nil
	case <-timer.C:
		log.Warn("inference service stalled, restarting", "timeout", d.config.ResponseTimeout)
		d.kill()
		return nil, fmt.Errorf("%w after %s", ErrResponseTimeout, d.config.ResponseTimeout)
	}
}

// Close shuts down the inference process. Safe to call repeatedly.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ready = false
	return d.shutdown()
}

func (d *ServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	d.cmd = exec.Command(d.config.Command, d.config.Script,
		"--model", d.config.Bundle.ModelPath,
		"--labels", d.config.Bundle.LabelsPath,
	)

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	// Capture stderr for debugging
	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start inference service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	log.Debug("inference service started", "pid", d.cmd.Process.Pid)
	return nil
}

func (d *ServiceDetector) shutdown() error {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if !d.started {
		return nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	// A service ignoring EOF on stdin is killed once the response timeout passes.
	cmd := d.cmd
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()

	var err error
	select {
	case err = <-exited:
	case <-time.After(d.config.ResponseTimeout):
		cmd.Process.Kill()
		err = <-exited
	}
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

// kill stops an unresponsive process. Wait closes its pipes, which
// unblocks a pending exchange.
func (d *ServiceDetector) kill() {
	if d.started && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

func (d *ServiceDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

// jsonResponse is the JSON structure emitted by the inference service.
type jsonResponse struct {
	Boxes       []jsonBox `json:"boxes"`
	InferenceMs int64     `json:"inference_ms"`
}

type jsonBox struct {
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
	Class      *int    `json:"class,omitempty"`
	Label      string  `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
}

// decodeResponse converts one service response line into a Result.
// A null or missing box list means the service found nothing.
func decodeResponse(line []byte, labels []string, minConfidence float64) (Result, error) {
	var response jsonResponse
	if err := json.Unmarshal(line, &response); err != nil {
		return Result{}, fmt.Errorf("parse response: %w", err)
	}

	result := Result{InferenceTime: time.Duration(response.InferenceMs) * time.Millisecond}
	if response.Boxes == nil {
		result.Empty = true
		return result, nil
	}

	result.Boxes = make([]Box, 0, len(response.Boxes))
	for _, b := range response.Boxes {
		if b.Confidence < minConfidence {
			continue
		}
		label := b.Label
		if label == "" && b.Class != nil && *b.Class >= 0 && *b.Class < len(labels) {
			label = labels[*b.Class]
		}
		result.Boxes = append(result.Boxes, Box{
			X1: clamp01(b.X1), Y1: clamp01(b.Y1),
			X2: clamp01(b.X2), Y2: clamp01(b.Y2),
			Label:      label,
			Confidence: b.Confidence,
		})
	}

	if len(result.Boxes) == 0 {
		result.Boxes = nil
		result.Empty = true
		return result, nil
	}

	SortByConfidence(result.Boxes)
	return result, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
