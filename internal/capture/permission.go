package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrPermissionDenied is returned when capture permission has not been granted.
var ErrPermissionDenied = errors.New("camera permission denied")

// Permission confirms that capture is allowed before a source is bound.
type Permission interface {
	Check(ctx context.Context) error
}

// StaticPermission is a fixed grant, typically confirmed by the host beforehand.
type StaticPermission bool

// Check returns ErrPermissionDenied unless the permission is granted.
func (p StaticPermission) Check(ctx context.Context) error {
	if !p {
		return ErrPermissionDenied
	}
	return nil
}

// DevicePermission grants capture when the device node can be opened for reading.
type DevicePermission struct {
	Path string
}

// Check opens the device node and reports ErrPermissionDenied when it is not accessible.
func (p DevicePermission) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(p.Path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPermissionDenied, p.Path, err)
	}
	return f.Close()
}

// PermissionFunc adapts a function to the Permission interface.
type PermissionFunc func(ctx context.Context) error

// Check calls f(ctx).
func (f PermissionFunc) Check(ctx context.Context) error {
	return f(ctx)
}
