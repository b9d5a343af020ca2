// Package capture provides the camera frame source using GoCV (OpenCV).
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/aisight/internal/log"
)

// Default camera settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 1280
	DefaultHeight = 960
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrAlreadyBound is returned when Bind is called on a source that already delivers frames.
	ErrAlreadyBound = errors.New("frame source already bound")
)

// Sink receives frames from a Source. It is called from the source's producer
// goroutine and must not block.
type Sink func(Frame)

// Source defines the interface for frame source implementations.
type Source interface {
	// Bind starts delivering frames to sink at sensor cadence.
	Bind(ctx context.Context, sink Sink) error
	// Unbind stops frame delivery and releases the device. Safe to call repeatedly.
	Unbind() error
	// IsBound reports whether frames are currently being delivered.
	IsBound() bool
}

// Torch is implemented by sources that can drive a flashlight.
type Torch interface {
	SetTorch(on bool) error
}

// CameraConfig holds the capture device settings.
type CameraConfig struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
	// Rotation is the clockwise correction in degrees reported with every frame.
	Rotation int
}

// cameraImpl manages video capture from a camera device using GoCV.
type cameraImpl struct {
	cfg     CameraConfig
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	seq     uint64
}

// NewCamera creates a new camera Source. Zero values in cfg fall back to the defaults.
func NewCamera(cfg CameraConfig) Source {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	return &cameraImpl{cfg: cfg}
}

// Bind opens the device and starts the producer goroutine.
func (c *cameraImpl) Bind(ctx context.Context, sink Sink) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrAlreadyBound
	}

	capture, err := gocv.OpenVideoCapture(c.cfg.DeviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.cfg.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.cfg.Height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.cfg.FPS))

	loopCtx, cancel := context.WithCancel(ctx)
	c.capture = capture
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	go c.produce(loopCtx, capture, sink, c.done)

	log.Info("camera bound", "device", c.cfg.DeviceID, "fps", c.cfg.FPS)
	return nil
}

// produce reads frames until ctx is cancelled. It owns capture reads; Unbind
// waits for it to exit before closing the device.
func (c *cameraImpl) produce(ctx context.Context, capture *gocv.VideoCapture, sink Sink, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		mat := gocv.NewMat()
		if ok := capture.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			log.Debug("camera read returned no frame", "device", c.cfg.DeviceID)
			continue
		}

		c.seq++
		sink(Frame{
			Seq:       c.seq,
			Mat:       &mat,
			Width:     mat.Cols(),
			Height:    mat.Rows(),
			Rotation:  c.cfg.Rotation,
			Timestamp: time.Now(),
		})
	}
}

// Unbind stops the producer and closes the device.
func (c *cameraImpl) Unbind() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	c.cancel()
	<-c.done

	err := c.capture.Close()
	c.capture = nil
	c.cancel = nil
	c.running = false

	log.Info("camera unbound", "device", c.cfg.DeviceID)
	return err
}

// IsBound returns true if the camera is currently delivering frames.
func (c *cameraImpl) IsBound() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
