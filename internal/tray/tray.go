// Package tray provides a system tray menu showing what is held and a
// processing toggle.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/pinchgrab/internal/render"
)

// Controller owns the processing switch. The tray reads and flips it and
// keeps no copy of its own.
type Controller interface {
	SetEnabled(enabled bool)
	IsEnabled() bool
}

// Tray represents the system tray application. It is also a renderer: every
// frame updates the "Holding:" line and the toggle label.
type Tray struct {
	ctrl       Controller
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	shown      bool // enabled state the toggle label currently shows
	holder     string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuHolder *systray.MenuItem
}

// New creates a Tray. Attach must be called before the toggle does anything.
func New() *Tray {
	return &Tray{shown: true}
}

// Attach binds the tray to the processing switch it displays and flips.
func (t *Tray) Attach(ctrl Controller) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctrl = ctrl
	t.setShownLocked(ctrl.IsEnabled())
}

// OnToggle sets the callback function to be called after the tray has
// flipped the enabled state.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop started by Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Pinchgrab")
	systray.SetTooltip("Pinch to grab")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.shown), "Toggle pinch tracking")
	systray.AddSeparator()

	t.menuHolder = systray.AddMenuItem(holderLabel(t.holder), "Object currently held")
	t.menuHolder.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Scene...", "Open the scene in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Pinchgrab")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func holderLabel(id string) string {
	if id == "" {
		return "Holding: nothing"
	}
	return "Holding: " + id
}

// Toggle flips the controller's current state, as clicking the menu item
// does, and notifies the callback.
func (t *Tray) Toggle() {
	t.mu.RLock()
	ctrl, callback := t.ctrl, t.onToggle
	t.mu.RUnlock()
	if ctrl == nil {
		return
	}

	enabled := !ctrl.IsEnabled()
	ctrl.SetEnabled(enabled)

	t.mu.Lock()
	t.setShownLocked(enabled)
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Render updates the held-object line and the toggle label. The menu is only
// touched when either changes.
func (t *Tray) Render(f render.Frame) {
	t.SetHolder(f.Holder())

	t.mu.Lock()
	t.setShownLocked(f.Enabled)
	t.mu.Unlock()
}

func (t *Tray) setShownLocked(enabled bool) {
	if enabled == t.shown {
		return
	}
	t.shown = enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
}

// SetHolder updates the held-object display.
func (t *Tray) SetHolder(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id == t.holder {
		return
	}
	t.holder = id
	if t.menuHolder != nil {
		t.menuHolder.SetTitle(holderLabel(id))
	}
}

// Holder returns the id shown as held, or "".
func (t *Tray) Holder() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.holder
}

// IsEnabled returns the controller's enabled state, or false if unattached.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.ctrl == nil {
		return false
	}
	return t.ctrl.IsEnabled()
}

// Shown returns the enabled state the toggle label displays.
func (t *Tray) Shown() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.shown
}
