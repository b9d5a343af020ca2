package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/ayusman/aisight/internal/app"
	"github.com/ayusman/aisight/internal/log"
)

// pauser is the part of the controller driven by host signals.
type pauser interface {
	Suspend() (*app.Session, error)
	Resume(ctx context.Context) (*app.Session, error)
}

// sessionSignals returns the host signals that pause and resume a session.
func sessionSignals() []os.Signal {
	var sigs []os.Signal
	for _, sig := range []os.Signal{suspendSignal, resumeSignal} {
		if sig != nil {
			sigs = append(sigs, sig)
		}
	}
	return sigs
}

// watchSignals pauses and resumes sessions on host signals until ctx ends.
func watchSignals(ctx context.Context, p pauser) {
	sigs := sessionSignals()
	if len(sigs) == 0 {
		return
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)
	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				handleSignal(ctx, p, sig)
			}
		}
	}()
}

// handleSignal applies one host signal. It reports whether sig was a
// session signal.
func handleSignal(ctx context.Context, p pauser, sig os.Signal) bool {
	var err error
	switch sig {
	case suspendSignal:
		_, err = p.Suspend()
	case resumeSignal:
		_, err = p.Resume(ctx)
	default:
		return false
	}
	if err != nil {
		log.Warn("session signal ignored", "signal", sig, "error", err)
	}
	return true
}
