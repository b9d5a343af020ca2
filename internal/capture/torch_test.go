package capture

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var _ Torch = (*commandTorch)(nil)

func TestWithTorchCommands_Unconfigured(t *testing.T) {
	src := NewMockSource(nil, time.Millisecond, false)
	if got := WithTorchCommands(src, "", " "); got != Source(src) {
		t.Errorf("WithTorchCommands() = %T, want the source unchanged", got)
	}
}

func TestWithTorchCommands_RunsCommands(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "torch.log")
	script := filepath.Join(dir, "torch.sh")
	body := "#!/bin/sh\necho \"$1\" >> " + logPath + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}

	src := NewMockSource(nil, time.Millisecond, false)
	wrapped := WithTorchCommands(src, script+" on", script+" off")

	torch, ok := wrapped.(Torch)
	if !ok {
		t.Fatalf("%T does not implement Torch", wrapped)
	}
	if err := torch.SetTorch(true); err != nil {
		t.Fatalf("SetTorch(true) error = %v", err)
	}
	if !wrapped.(*commandTorch).TorchOn() {
		t.Error("TorchOn() = false after SetTorch(true)")
	}
	if err := torch.SetTorch(false); err != nil {
		t.Fatalf("SetTorch(false) error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if got := strings.Fields(string(data)); len(got) != 2 || got[0] != "on" || got[1] != "off" {
		t.Errorf("torch commands = %v, want [on off]", got)
	}

	// The wrapper still delivers frames from the underlying source.
	if wrapped.IsBound() {
		t.Error("wrapped source bound before Bind")
	}
}

func TestWithTorchCommands_Errors(t *testing.T) {
	src := NewMockSource(nil, time.Millisecond, false)

	onlyOn := WithTorchCommands(src, "true", "").(Torch)
	if err := onlyOn.SetTorch(false); !errors.Is(err, ErrTorchUnsupported) {
		t.Errorf("SetTorch(false) without off command error = %v, want ErrTorchUnsupported", err)
	}

	failing := WithTorchCommands(src, "false", "false")
	if err := failing.(Torch).SetTorch(true); err == nil {
		t.Error("SetTorch(true) error = nil for a failing command")
	}
	if failing.(*commandTorch).TorchOn() {
		t.Error("TorchOn() = true after a failed command")
	}
}
