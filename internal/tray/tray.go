// Package tray provides a desktop system tray for starting and stopping
// AISight sessions.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/aisight/internal/mode"
)

const idleStatus = "Idle"

// Tray represents the system tray application.
type Tray struct {
	onMode func(m mode.Mode)
	onStop   func()
	onPause  func()
	onResume func()
	onQuit   func()
	quit     func()
	status   string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuStatus *systray.MenuItem
}

// New creates a new Tray showing the idle status.
func New() *Tray {
	return &Tray{
		status: idleStatus,
		quit:   systray.Quit,
	}
}

// OnMode sets the callback called when a mode menu item is clicked.
func (t *Tray) OnMode(fn func(m mode.Mode)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMode = fn
}

// OnStop sets the callback called when the stop menu item is clicked.
func (t *Tray) OnStop(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onStop = fn
}

// OnPause sets the callback called when the pause menu item is clicked.
func (t *Tray) OnPause(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onPause = fn
}

// OnResume sets the callback called when the resume menu item is clicked.
func (t *Tray) OnResume(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onResume = fn
}

// OnQuit sets the callback called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is clicked or systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// onReady sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("AISight")
	systray.SetTooltip("AISight assistive camera")

	t.mu.Lock()
	t.menuStatus = systray.AddMenuItem(t.status, "Current session")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuDoor := systray.AddMenuItem("Find door", "Guide toward a door")
	menuMoney := systray.AddMenuItem("Count money", "Count visible banknotes")
	menuPause := systray.AddMenuItem("Pause", "Pause the current session")
	menuResume := systray.AddMenuItem("Resume", "Resume the paused session")
	menuStop := systray.AddMenuItem("Stop", "Stop the current session")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit AISight")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-menuDoor.ClickedCh:
				t.handleMode(mode.Door)
			case <-menuMoney.ClickedCh:
				t.handleMode(mode.Money)
			case <-menuPause.ClickedCh:
				t.handlePause()
			case <-menuResume.ClickedCh:
				t.handleResume()
			case <-menuStop.ClickedCh:
				t.handleStop()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleMode(m mode.Mode) {
	t.mu.RLock()
	callback := t.onMode
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(m)
	}
}

func (t *Tray) handleStop() {
	t.mu.RLock()
	callback := t.onStop
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handlePause() {
	t.mu.RLock()
	callback := t.onPause
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleResume() {
	t.mu.RLock()
	callback := t.onResume
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	quit := t.quit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
	quit()
}

// SetStatus updates the status line. An empty text shows the idle status.
func (t *Tray) SetStatus(text string) {
	if text == "" {
		text = idleStatus
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.status = text
	if t.menuStatus != nil {
		t.menuStatus.SetTitle(text)
	}
}

// Status returns the current status line.
func (t *Tray) Status() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// Quit stops the tray loop and makes Run return.
func (t *Tray) Quit() {
	t.mu.RLock()
	quit := t.quit
	t.mu.RUnlock()
	quit()
}
