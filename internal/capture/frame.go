package capture

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// ErrUnsupportedRotation is returned for rotations that are not a multiple of 90 degrees.
var ErrUnsupportedRotation = errors.New("unsupported rotation")

// Frame represents a captured video frame with metadata.
// The frame is owned by whoever currently holds it; the holder calls Close
// once the pixels are no longer needed.
type Frame struct {
	Seq    uint64
	Mat    *gocv.Mat
	Width  int
	Height int
	// Rotation is the clockwise correction in degrees to display the frame upright.
	Rotation  int
	Timestamp time.Time
}

// Close releases the pixel buffer. Closing a frame without pixels is a no-op.
func (f *Frame) Close() {
	if f.Mat != nil {
		f.Mat.Close()
		f.Mat = nil
	}
}

// normalizeDegrees maps any angle to [0, 360).
func normalizeDegrees(deg int) int {
	return ((deg % 360) + 360) % 360
}

// Normalize applies the rotation correction carried by the frame and returns
// an upright frame with Rotation set to 0. The input Mat is released when a
// rotated copy replaces it. Frames without pixels only get their metadata
// adjusted.
func Normalize(f Frame) (Frame, error) {
	deg := normalizeDegrees(f.Rotation)
	if deg == 0 {
		f.Rotation = 0
		return f, nil
	}

	var code gocv.RotateFlag
	switch deg {
	case 90:
		code = gocv.Rotate90Clockwise
	case 180:
		code = gocv.Rotate180Clockwise
	case 270:
		code = gocv.Rotate90CounterClockwise
	default:
		return f, fmt.Errorf("%w: %d", ErrUnsupportedRotation, f.Rotation)
	}

	if deg != 180 {
		f.Width, f.Height = f.Height, f.Width
	}
	f.Rotation = 0

	if f.Mat == nil || f.Mat.Empty() {
		return f, nil
	}

	rotated := gocv.NewMat()
	gocv.Rotate(*f.Mat, &rotated, code)
	f.Mat.Close()
	f.Mat = &rotated
	f.Width = rotated.Cols()
	f.Height = rotated.Rows()

	return f, nil
}
