// Package loop provides the single-threaded foreground context that owns
// feedback state and timers.
package loop

import (
	"sync"
	"time"

	"github.com/ayusman/aisight/internal/feedback"
)

// Loop runs posted functions one at a time on a single goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	timers  map[*timer]struct{}
	stopped bool

	notify chan struct{}
	quit   chan struct{}
	done   chan struct{}
}

// New starts a loop.
func New() *Loop {
	l := &Loop{
		timers: make(map[*timer]struct{}),
		notify: make(chan struct{}, 1),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Post schedules f on the loop. It reports false once the loop is stopped.
func (l *Loop) Post(f func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()

	select {
	case l.notify <- struct{}{}:
	default:
	}
	return true
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		select {
		case <-l.quit:
			return
		case <-l.notify:
		}

		for {
			l.mu.Lock()
			if l.stopped || len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			f := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			f()
		}
	}
}

// Now implements feedback.Clock.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// AfterFunc implements feedback.Clock. f runs on the loop after d unless the
// timer or the loop is stopped first.
func (l *Loop) AfterFunc(d time.Duration, f func()) feedback.Timer {
	t := &timer{loop: l}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return t
	}
	t.pending = true
	l.timers[t] = struct{}{}
	t.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if l.claim(t) {
				f()
			}
		})
	})
	return t
}

// claim marks t fired, reporting false if it was stopped in the meantime.
func (l *Loop) claim(t *timer) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !t.pending || l.stopped {
		return false
	}
	t.pending = false
	delete(l.timers, t)
	return true
}

// Stop cancels every pending timer, rejects further posts and waits for the
// running function to return. Queued functions are dropped. Stop must not be
// called from a function running on the loop.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		<-l.done
		return
	}
	l.stopped = true
	for t := range l.timers {
		t.pending = false
		t.t.Stop()
	}
	clear(l.timers)
	l.queue = nil
	l.mu.Unlock()

	close(l.quit)
	<-l.done
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

type timer struct {
	loop    *Loop
	t       *time.Timer
	pending bool
}

// Stop implements feedback.Timer. Stopping an inactive timer is a no-op.
func (t *timer) Stop() bool {
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if !t.pending {
		return false
	}
	t.pending = false
	t.t.Stop()
	delete(l.timers, t)
	return true
}
