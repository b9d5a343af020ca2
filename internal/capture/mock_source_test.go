package capture

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestMockSource_Playback(t *testing.T) {
	frames := []Frame{{Width: 640, Height: 480}, {Width: 640, Height: 480}}
	src := NewMockSource(frames, time.Millisecond, false)

	var count atomic.Int32
	if err := src.Bind(context.Background(), func(Frame) { count.Add(1) }); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for count.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := src.Unbind(); err != nil {
		t.Fatalf("Unbind() error = %v", err)
	}

	if got := count.Load(); got != 2 {
		t.Errorf("delivered %d frames, want 2 (no loop)", got)
	}
}

func TestMockSource_EmitRequiresBinding(t *testing.T) {
	src := NewMockSource(nil, 0, false)

	if src.Emit(Frame{}) {
		t.Error("Emit() should fail before Bind")
	}

	var last Frame
	if err := src.Bind(context.Background(), func(f Frame) { last = f }); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	if !src.Emit(Frame{Width: 10}) || !src.Emit(Frame{Width: 10}) {
		t.Fatal("Emit() should succeed while bound")
	}
	if last.Seq != 2 {
		t.Errorf("Seq = %d, want 2", last.Seq)
	}

	src.Unbind()
	src.Unbind()
	if src.Binds() != 1 || src.Unbinds() != 1 {
		t.Errorf("binds=%d unbinds=%d, want 1/1", src.Binds(), src.Unbinds())
	}
}
