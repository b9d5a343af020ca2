package api

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/aisight/internal/app"
	"github.com/ayusman/aisight/internal/capture"
	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/mode"
	"github.com/ayusman/aisight/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

// mockFactory builds sessions from mocks. deny and failSetup inject start
// failures; revoked denies permission checks made after start.
type mockFactory struct {
	store     *store.Store
	deny      bool
	failSetup bool
	revoked   atomic.Bool
	detectors []*detector.MockDetector
}

func (f *mockFactory) build(m mode.Mode) (app.Config, error) {
	det := detector.NewMockDetector()
	if f.failSetup {
		det.SetSetupError(errors.New("model missing"))
	}
	det.SetBoxes([]detector.Box{detector.DoorAt(0.5, 0.9)})
	f.detectors = append(f.detectors, det)

	cfg := app.Config{
		Mode:     m,
		Detector: det,
		Source:   capture.NewMockSource([]capture.Frame{{Width: 640, Height: 480}}, 10*time.Millisecond, true),
		Cues:     feedback.NewMockPlayer(),
		Speaker:  feedback.NewMockSpeaker(nil),
		Store:    f.store,
		Unit:     "dinars",
	}
	cfg.Permission = capture.PermissionFunc(func(context.Context) error {
		if f.deny || f.revoked.Load() {
			return capture.ErrPermissionDenied
		}
		return nil
	})
	return cfg, nil
}

func newTestController(t *testing.T, f *mockFactory) *app.Controller {
	t.Helper()
	c := app.NewController(f.build)
	t.Cleanup(c.Close)
	return c
}
