package capture

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// torchTimeout bounds one torch command.
const torchTimeout = 2 * time.Second

// ErrTorchUnsupported is returned when no command is configured for the
// requested torch state.
var ErrTorchUnsupported = errors.New("torch not supported")

// commandTorch drives a flashlight through external commands, for example
// "v4l2-ctl -d /dev/video0 -c led1_mode=1".
type commandTorch struct {
	Source
	on  []string
	off []string

	mu  sync.Mutex
	lit bool
}

// WithTorchCommands adds torch control to src. on and off are whitespace
// separated command lines. With both empty src is returned unchanged.
func WithTorchCommands(src Source, on, off string) Source {
	if strings.TrimSpace(on) == "" && strings.TrimSpace(off) == "" {
		return src
	}
	return &commandTorch{Source: src, on: strings.Fields(on), off: strings.Fields(off)}
}

// SetTorch runs the command for the requested state.
func (t *commandTorch) SetTorch(on bool) error {
	args := t.off
	if on {
		args = t.on
	}
	if len(args) == 0 {
		return ErrTorchUnsupported
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), torchTimeout)
	defer cancel()
	if out, err := exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("torch %s: %w: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	t.lit = on
	return nil
}

// TorchOn reports the last torch state set successfully.
func (t *commandTorch) TorchOn() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lit
}
