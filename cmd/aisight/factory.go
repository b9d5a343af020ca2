package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ayusman/aisight/internal/app"
	"github.com/ayusman/aisight/internal/audio"
	"github.com/ayusman/aisight/internal/capture"
	"github.com/ayusman/aisight/internal/config"
	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/haptics"
	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/mode"
	"github.com/ayusman/aisight/internal/perception"
	"github.com/ayusman/aisight/internal/store"
)

// sessionFactory builds fresh device collaborators for every session.
type sessionFactory struct {
	cfg       *config.Config
	store     *store.Store
	presenter feedback.Presenter
	haptics   feedback.Haptics
}

func (f *sessionFactory) build(m mode.Mode) (app.Config, error) {
	model := f.cfg.Detector.Door
	if m == mode.Money {
		model = f.cfg.Detector.Money
	}
	if model.Model == "" {
		return app.Config{}, fmt.Errorf("no model configured for %s", m)
	}

	det := detector.NewServiceDetector(detector.ServiceConfig{
		Command: f.cfg.Detector.Command,
		Script:  f.cfg.Detector.Script,
		Bundle: detector.Bundle{
			ModelPath:  model.Model,
			LabelsPath: model.Labels,
		},
		MinConfidence:   model.MinConfidence,
		IdleTimeout:     f.cfg.Detector.IdleTimeout,
		ResponseTimeout: f.cfg.Detector.ResponseTimeout,
	})

	var perm capture.Permission
	if f.cfg.Camera.PermissionDevice != "" {
		perm = capture.DevicePermission{Path: f.cfg.Camera.PermissionDevice}
	}

	camera := capture.NewCamera(capture.CameraConfig{
		DeviceID: f.cfg.Camera.Device,
		Width:    f.cfg.Camera.Width,
		Height:   f.cfg.Camera.Height,
		FPS:      f.cfg.Camera.FPS,
		Rotation: f.cfg.Camera.Rotation,
	})

	return app.Config{
		Mode:         m,
		Detector:     det,
		Source:       capture.WithTorchCommands(camera, f.cfg.Camera.TorchOn, f.cfg.Camera.TorchOff),
		Permission:   perm,
		Cues:         audio.NewExecPlayer(f.cfg.Audio.Player, audio.CueFiles(f.cfg.Audio.Cues)),
		Speaker:      audio.NewExecSpeaker(f.cfg.Audio.TTS, f.cfg.Audio.Voice),
		Presenter:    f.presenter,
		Haptics:      f.haptics,
		Store:        f.store,
		Cooldown:     f.cfg.Feedback.Cooldown,
		Unit:         f.cfg.Feedback.Unit,
		ViewWidth:    f.cfg.Feedback.ViewWidth,
		TapWindow:    f.cfg.Feedback.TapWindow,
		TapThreshold: f.cfg.Feedback.TapThreshold,
	}, nil
}

// connectHaptics returns a connected emitter, or nil when haptics are
// disabled or the broker is unreachable.
func connectHaptics(ctx context.Context, c config.HapticsConfig) *haptics.MQTTEmitter {
	if !c.Enabled {
		return nil
	}
	e := haptics.NewMQTTEmitter(haptics.Config{
		Broker:   c.Broker,
		Topic:    c.Topic,
		ClientID: c.ClientID,
	})
	if err := e.Connect(ctx); err != nil {
		log.Warn("haptics unavailable", "broker", c.Broker, "error", err)
		return nil
	}
	return e
}

// withHaptics sets e on f without storing a typed nil.
func (f *sessionFactory) withHaptics(e *haptics.MQTTEmitter) {
	if e != nil {
		f.haptics = e
	}
}

// consolePresenter prints totals and directions for headless runs.
type consolePresenter struct {
	w io.Writer
}

func (p consolePresenter) ShowInferenceTime(d time.Duration) {
	log.Debug("inference", "took", d)
}

func (p consolePresenter) ShowBoxes(boxes []detector.Box) {
	log.Debug("detections", "boxes", len(boxes))
}

func (p consolePresenter) ShowTotal(text string) {
	fmt.Fprintf(p.w, "total: %s\n", text)
}

func (p consolePresenter) ShowDirection(d perception.Direction) {
	fmt.Fprintf(p.w, "direction: %s\n", d)
}
