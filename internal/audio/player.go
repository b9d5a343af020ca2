// Package audio plays feedback cues and speaks announcements through
// external commands.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/ayusman/aisight/internal/feedback"
	"github.com/ayusman/aisight/internal/log"
)

var (
	// ErrCueNotLoaded is returned when a cue has no playable sound file.
	ErrCueNotLoaded = errors.New("cue not loaded")
	// ErrReleased is returned when a released player or speaker is used.
	ErrReleased = errors.New("audio: released")
)

// loopGap is the pause between repetitions of a looping cue.
const loopGap = 150 * time.Millisecond

// ExecPlayer plays cue sound files with an external command such as paplay.
type ExecPlayer struct {
	command string
	files   map[feedback.Cue]string

	mu       sync.Mutex
	next     feedback.Handle
	playing  map[feedback.Handle]*playback
	released bool
}

type playback struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewExecPlayer creates a player. files maps each cue to a sound file.
func NewExecPlayer(command string, files map[feedback.Cue]string) *ExecPlayer {
	if command == "" {
		command = "paplay"
	}
	return &ExecPlayer{
		command: command,
		files:   files,
		playing: make(map[feedback.Handle]*playback),
	}
}

// CueFiles converts a name-keyed map of sound files into cue keys.
// Unknown names are ignored.
func CueFiles(byName map[string]string) map[feedback.Cue]string {
	all := []feedback.Cue{
		feedback.CueSearching, feedback.CueAcquired,
		feedback.CueLeft, feedback.CueRight, feedback.CueAhead,
	}
	files := make(map[feedback.Cue]string, len(byName))
	for _, c := range all {
		if path, ok := byName[c.String()]; ok {
			files[c] = path
		}
	}
	return files
}

// Play starts cue and returns immediately. A looping cue repeats until
// stopped.
func (p *ExecPlayer) Play(cue feedback.Cue, loop bool) (feedback.Handle, error) {
	path, ok := p.files[cue]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrCueNotLoaded, cue)
	}
	if _, err := os.Stat(path); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrCueNotLoaded, cue, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return 0, ErrReleased
	}

	p.next++
	h := p.next
	ctx, cancel := context.WithCancel(context.Background())
	pb := &playback{cancel: cancel, done: make(chan struct{})}
	p.playing[h] = pb

	go p.run(ctx, h, pb, path, loop)
	return h, nil
}

func (p *ExecPlayer) run(ctx context.Context, h feedback.Handle, pb *playback, path string, loop bool) {
	defer func() {
		p.mu.Lock()
		if p.playing[h] == pb {
			delete(p.playing, h)
		}
		p.mu.Unlock()
		pb.cancel()
		close(pb.done)
	}()

	for {
		err := exec.CommandContext(ctx, p.command, path).Run()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Debug("cue playback failed", "file", path, "error", err)
		}
		if !loop {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(loopGap):
		}
	}
}

// Stop ends a playing cue. Unknown or finished handles are ignored.
func (p *ExecPlayer) Stop(h feedback.Handle) error {
	p.mu.Lock()
	pb := p.playing[h]
	delete(p.playing, h)
	p.mu.Unlock()

	if pb == nil {
		return nil
	}
	pb.cancel()
	<-pb.done
	return nil
}

// Playing returns the number of cues still running.
func (p *ExecPlayer) Playing() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.playing)
}

// Release stops every cue. Later Play calls fail with ErrReleased.
func (p *ExecPlayer) Release() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	pending := make([]*playback, 0, len(p.playing))
	for h, pb := range p.playing {
		pending = append(pending, pb)
		delete(p.playing, h)
	}
	p.mu.Unlock()

	for _, pb := range pending {
		pb.cancel()
		<-pb.done
	}
	return nil
}
