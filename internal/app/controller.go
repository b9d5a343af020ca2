package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/mode"
)

var (
	// ErrNoSession is returned when an operation needs a live session.
	ErrNoSession = errors.New("no active session")
	// ErrControllerClosed is returned by Open after Close.
	ErrControllerClosed = errors.New("controller closed")
)

// Factory builds fresh collaborators for a session in mode m.
type Factory func(m mode.Mode) (Config, error)

// Controller keeps at most one live session. Opening a session in a new
// mode tears the previous one down first.
type Controller struct {
	factory Factory

	mu      sync.Mutex
	current *Session
	closed  bool
}

// NewController creates a controller that builds sessions with factory.
func NewController(factory Factory) *Controller {
	return &Controller{factory: factory}
}

// Open tears down the current session and starts a new one in mode m.
func (c *Controller) Open(ctx context.Context, m mode.Mode) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrControllerClosed
	}
	if c.current != nil {
		c.current.TearDown(ReasonModeSwitch)
		c.current = nil
	}

	cfg, err := c.factory(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s session: %w", m, err)
	}
	cfg.Mode = m

	s := NewSession(cfg)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	c.current = s
	go c.watch(s)

	log.Info("session opened", "session", s.ID(), "mode", m)
	return s, nil
}

// watch forgets s once it is torn down by any path.
func (c *Controller) watch(s *Session) {
	<-s.Done()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == s {
		c.current = nil
	}
}

// Current returns the live session or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Stop tears down the live session.
func (c *Controller) Stop(reason string) error {
	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s == nil {
		return ErrNoSession
	}
	s.TearDown(reason)
	return nil
}

// Suspend pauses the live session.
func (c *Controller) Suspend() (*Session, error) {
	s := c.Current()
	if s == nil {
		return nil, ErrNoSession
	}
	return s, s.Suspend()
}

// Resume restarts the paused live session.
func (c *Controller) Resume(ctx context.Context) (*Session, error) {
	s := c.Current()
	if s == nil {
		return nil, ErrNoSession
	}
	return s, s.Resume(ctx)
}

// Tap forwards an exit-gesture tap to the live session.
func (c *Controller) Tap() (bool, error) {
	s := c.Current()
	if s == nil {
		return false, ErrNoSession
	}
	return s.Tap(), nil
}

// Close tears down the live session and rejects further Open calls.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s != nil {
		s.TearDown(ReasonStopped)
	}
}
