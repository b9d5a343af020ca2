// Package app runs a perception session: it binds the camera, gates frames
// into the detector, interprets results and drives feedback, and tears every
// resource down in a fixed order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/aisight/internal/capture"
	"github.com/ayusman/aisight/internal/detector"
	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/gate"
	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/loop"
	"github.com/ayusman/aisight/internal/mode"
	"github.com/ayusman/aisight/internal/perception"
	"github.com/ayusman/aisight/internal/store"
)

var (
	// ErrPermissionDenied is returned when capture permission is not granted.
	ErrPermissionDenied = capture.ErrPermissionDenied
	// ErrDetectorInit is returned when the detector cannot be set up.
	ErrDetectorInit = detector.ErrDetectorInit
	// ErrResourceBinding is returned when the camera cannot be bound.
	ErrResourceBinding = errors.New("camera binding failed")
	// ErrInvalidState is returned for a lifecycle call not allowed in the current state.
	ErrInvalidState = errors.New("invalid session state")
)

// State is the lifecycle state of a session.
type State int

const (
	Uninitialized State = iota
	Active
	Suspended
	TornDown
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Active:
		return "active"
	case Suspended:
		return "suspended"
	case TornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Teardown reasons recorded with a finished session.
const (
	ReasonPermissionDenied = "permission denied"
	ReasonDetectorInit     = "detector init failed"
	ReasonBindingFailed    = "camera binding failed"
	ReasonExitGesture      = "exit gesture"
	ReasonModeSwitch       = "mode switch"
	ReasonStopped          = "stopped"
)

// Config holds the collaborators and settings of a session. The session owns
// Detector, Source, Cues and Speaker and releases them on teardown. Store and
// Haptics are shared and left open.
type Config struct {
	Mode       mode.Mode
	Detector   detector.Detector
	Source     capture.Source
	Permission capture.Permission // nil means granted
	Cues       feedback.CuePlayer
	Speaker    feedback.Speaker
	Presenter  feedback.Presenter // optional
	Haptics    feedback.Haptics   // optional
	Store      *store.Store       // optional

	Cooldown     time.Duration
	Unit         string
	ViewWidth    float64
	TapWindow    time.Duration
	TapThreshold int
}

// Status is a point-in-time view of a session.
type Status struct {
	ID        string         `json:"id"`
	Mode      mode.Mode      `json:"mode"`
	State     string         `json:"state"`
	StartedAt time.Time      `json:"started_at,omitzero"`
	Frames    gate.Stats     `json:"frames"`
	Feedback  feedback.State `json:"feedback"`
}

// Session is one perception session in a single mode.
type Session struct {
	id     string
	cfg    Config
	interp perception.Interpreter
	logger *slog.Logger
	taps   *TapRecognizer

	mu        sync.Mutex
	state     State
	startedAt time.Time
	loop      *loop.Loop
	machine   feedback.Machine
	speaker   feedback.Speaker
	gate      *gate.Gate
	base      gate.Stats
	recorded  bool

	// alive gates every callback crossing into interpretation and feedback.
	alive atomic.Bool

	done     chan struct{}
	exit     chan struct{}
	exitOnce sync.Once
}

// NewSession creates an uninitialized session.
func NewSession(cfg Config) *Session {
	if cfg.Presenter == nil {
		cfg.Presenter = feedback.NopPresenter{}
	}

	var interp perception.Interpreter = perception.Aggregate{}
	if cfg.Mode.Directional() {
		interp = perception.Directional{ViewWidth: cfg.ViewWidth}
	}

	id := uuid.NewString()
	return &Session{
		id:     id,
		cfg:    cfg,
		interp: interp,
		logger: log.With("session", id, "mode", cfg.Mode),
		taps:   NewTapRecognizer(cfg.TapWindow, cfg.TapThreshold),
		state:  Uninitialized,
		done:   make(chan struct{}),
		exit:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the session mode.
func (s *Session) Mode() mode.Mode {
	return s.cfg.Mode
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Exit is closed when the user asks to leave with the exit gesture.
func (s *Session) Exit() <-chan struct{} {
	return s.exit
}

// Start moves the session from Uninitialized to Active. On any failure the
// session is torn down and the error wraps ErrPermissionDenied,
// ErrDetectorInit or ErrResourceBinding.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Uninitialized {
		return fmt.Errorf("%w: start from %s", ErrInvalidState, s.state)
	}
	s.startedAt = time.Now()
	s.record()

	if err := s.checkPermission(ctx); err != nil {
		s.teardownLocked(ReasonPermissionDenied)
		return err
	}

	if err := s.cfg.Detector.Setup(); err != nil {
		s.teardownLocked(ReasonDetectorInit)
		if !errors.Is(err, ErrDetectorInit) {
			err = fmt.Errorf("%w: %w", ErrDetectorInit, err)
		}
		return err
	}

	s.loop = loop.New()
	s.speaker = s.cfg.Speaker
	if s.cfg.Store != nil && s.recorded {
		s.speaker = store.NewSpeaker(s.cfg.Speaker, s.cfg.Store.Announcements(), s.id)
	}
	if s.cfg.Mode.Directional() {
		s.machine = feedback.NewDirectional(s.cfg.Cues, s.cfg.Presenter, s.cfg.Haptics)
	} else {
		s.machine = feedback.NewAggregate(s.loop, s.speaker, s.cfg.Presenter, feedback.AggregateConfig{
			Cooldown: s.cfg.Cooldown,
			Unit:     s.cfg.Unit,
		})
	}

	if err := s.attach(ctx); err != nil {
		s.teardownLocked(ReasonBindingFailed)
		return err
	}

	s.setState(Active)
	s.logger.Info("session started")
	return nil
}

func (s *Session) checkPermission(ctx context.Context) error {
	if s.cfg.Permission == nil {
		return nil
	}
	err := s.cfg.Permission.Check(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrPermissionDenied) {
		err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	s.logger.Warn("capture permission denied", "error", err)
	return err
}

// attach starts a fresh gate and binds the camera to it.
func (s *Session) attach(ctx context.Context) error {
	g := gate.New(s.cfg.Detector, s.onResult(s.loop, s.machine))
	g.Start()
	s.gate = g
	s.alive.Store(true)

	sink := func(f capture.Frame) { g.OnFrame(f) }
	if err := s.cfg.Source.Bind(ctx, sink); err != nil {
		s.detach()
		s.logger.Error("camera bind failed", "error", err)
		return fmt.Errorf("%w: %w", ErrResourceBinding, err)
	}

	s.setTorch(true)
	return nil
}

// detach stops the gate and folds its counters into the session totals.
func (s *Session) detach() {
	s.alive.Store(false)
	if s.gate == nil {
		return
	}
	s.gate.Stop()
	st := s.gate.Stats()
	s.base.Accepted += st.Accepted
	s.base.Dropped += st.Dropped
	s.base.Processed += st.Processed
	s.base.Failures += st.Failures
	s.base.Discarded += st.Discarded
	s.gate = nil
}

// setTorch switches the camera light in modes that use it.
func (s *Session) setTorch(on bool) {
	torch, ok := s.cfg.Source.(capture.Torch)
	if !ok || !s.cfg.Mode.Torch() {
		return
	}
	if err := torch.SetTorch(on); err != nil {
		s.logger.Warn("torch control failed", "on", on, "error", err)
	}
}

// Suspend moves an Active session to Suspended: frames stop, the camera is
// released, cues and timers are silenced and speech stops.
func (s *Session) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return fmt.Errorf("%w: suspend from %s", ErrInvalidState, s.state)
	}

	s.detach()
	s.setTorch(false)
	if err := s.cfg.Source.Unbind(); err != nil {
		s.logger.Warn("camera unbind failed", "error", err)
	}
	s.onLoop(s.machine.Reset)
	if err := s.speaker.Stop(); err != nil {
		s.logger.Debug("speech stop failed", "error", err)
	}

	s.setState(Suspended)
	s.logger.Info("session suspended")
	return nil
}

// Resume moves a Suspended session back to Active. Permission is checked
// again before the camera is rebound. On failure the session stays
// Suspended.
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Suspended {
		return fmt.Errorf("%w: resume from %s", ErrInvalidState, s.state)
	}
	if err := s.checkPermission(ctx); err != nil {
		return err
	}
	if err := s.attach(ctx); err != nil {
		return err
	}

	s.setState(Active)
	s.logger.Info("session resumed")
	return nil
}

// TearDown releases every resource. It is idempotent and never fails;
// release errors are logged.
func (s *Session) TearDown(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(reason)
}

func (s *Session) teardownLocked(reason string) {
	if s.state == TornDown {
		return
	}
	s.state = TornDown

	// Frames first: nothing new reaches the detector or the machine.
	s.detach()
	if s.cfg.Source.IsBound() {
		s.setTorch(false)
	}
	if err := s.cfg.Source.Unbind(); err != nil {
		s.logger.Warn("camera unbind failed", "error", err)
	}

	if s.loop != nil {
		s.onLoop(s.machine.Close)
		s.loop.Stop()
	}

	if err := s.cfg.Cues.Release(); err != nil {
		s.logger.Debug("cue release failed", "error", err)
	}
	if err := s.cfg.Speaker.Stop(); err != nil {
		s.logger.Debug("speech stop failed", "error", err)
	}
	if err := s.cfg.Speaker.Release(); err != nil {
		s.logger.Debug("speech release failed", "error", err)
	}

	if err := s.cfg.Detector.Close(); err != nil {
		s.logger.Debug("detector close failed", "error", err)
	}

	s.finish(reason)
	close(s.done)
	s.logger.Info("session torn down", "reason", reason,
		"accepted", s.base.Accepted, "dropped", s.base.Dropped, "processed", s.base.Processed)
}

// onLoop runs f on the foreground loop and waits for it. If the loop no
// longer accepts work f runs on the caller.
func (s *Session) onLoop(f func()) {
	done := make(chan struct{})
	if !s.loop.Post(func() { f(); close(done) }) {
		f()
		return
	}
	<-done
}

// Tap registers a tap of the exit gesture. Reaching the threshold tears the
// session down and closes Exit. It reports whether the gesture fired.
func (s *Session) Tap() bool {
	if s.State() == TornDown || !s.taps.Tap(time.Now()) {
		return false
	}
	s.logger.Info("exit gesture recognized")
	s.TearDown(ReasonExitGesture)
	s.exitOnce.Do(func() { close(s.exit) })
	return true
}

// Stats returns the frame counters accumulated over the session.
func (s *Session) Stats() gate.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statsLocked()
}

func (s *Session) statsLocked() gate.Stats {
	st := s.base
	if s.gate != nil {
		cur := s.gate.Stats()
		st.Accepted += cur.Accepted
		st.Dropped += cur.Dropped
		st.Processed += cur.Processed
		st.Failures += cur.Failures
		st.Discarded += cur.Discarded
		st.Busy = cur.Busy
	}
	return st
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		ID:        s.id,
		Mode:      s.cfg.Mode,
		State:     s.state.String(),
		StartedAt: s.startedAt,
		Frames:    s.statsLocked(),
	}
	if s.machine != nil {
		st.Feedback = s.machine.Snapshot()
	}
	return st
}

func (s *Session) setState(state State) {
	s.state = state
	if s.cfg.Store == nil || !s.recorded {
		return
	}
	if err := s.cfg.Store.Sessions().UpdateState(s.id, state.String()); err != nil {
		s.logger.Warn("failed to record session state", "error", err)
	}
}

func (s *Session) record() {
	if s.cfg.Store == nil {
		return
	}
	err := s.cfg.Store.Sessions().Create(&store.Session{
		ID:        s.id,
		Mode:      s.cfg.Mode.String(),
		State:     s.state.String(),
		StartedAt: s.startedAt,
	})
	if err != nil {
		s.logger.Warn("failed to record session", "error", err)
		return
	}
	s.recorded = true
}

func (s *Session) finish(reason string) {
	if s.cfg.Store == nil || !s.recorded {
		return
	}
	st := s.base
	err := s.cfg.Store.Sessions().Finish(s.id, TornDown.String(), reason, store.SessionStats{
		Accepted:  st.Accepted,
		Dropped:   st.Dropped,
		Processed: st.Processed,
		Failures:  st.Failures,
	})
	if err != nil {
		s.logger.Warn("failed to finish session record", "error", err)
	}
}
