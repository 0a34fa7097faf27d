// Package tray provides the system tray menu for airchord.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/airchord/internal/app"
)

// Tray represents the system tray application.
type Tray struct {
	onEnableAudio func() error
	onRecord      func(start bool) error
	onOpen        func()
	onQuit        func()
	status        app.Status
	mu            sync.RWMutex

	// Menu items stored for later updates
	menuAudio  *systray.MenuItem
	menuRecord *systray.MenuItem
	menuStatus *systray.MenuItem
}

// New creates a new Tray.
func New() *Tray {
	return &Tray{status: app.Status{Recording: "idle"}}
}

// OnEnableAudio sets the callback for the "Enable Audio" item.
func (t *Tray) OnEnableAudio(fn func() error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onEnableAudio = fn
}

// OnRecord sets the callback for the recording toggle. start is true when
// the user asked to start.
func (t *Tray) OnRecord(fn func(start bool) error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRecord = fn
}

// OnOpen sets the callback for the "Open Preview" item.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
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

// Quit closes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("airchord")
	systray.SetTooltip("airchord: play chords with your fingers")

	t.mu.Lock()
	st := t.status
	t.menuAudio = systray.AddMenuItem(audioTitle(st.AudioEnabled), "Let raised fingers play chords")
	t.menuRecord = systray.AddMenuItem(recordTitle(st.Recording), "Record camera and audio")
	systray.AddSeparator()
	t.menuStatus = systray.AddMenuItem(StatusLine(st), "Session status")
	t.menuStatus.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Preview...", "Open the preview in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit airchord")

	go func() {
		for {
			select {
			case <-t.menuAudio.ClickedCh:
				t.handleEnableAudio()
			case <-t.menuRecord.ClickedCh:
				t.handleRecord()
			case <-menuOpen.ClickedCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleEnableAudio() {
	t.mu.RLock()
	callback := t.onEnableAudio
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	if err := callback(); err != nil {
		t.setMessage(app.StatusMessage(err))
	}
}

func (t *Tray) handleRecord() {
	t.mu.RLock()
	callback := t.onRecord
	start := t.status.Recording == "idle" || t.status.Recording == ""
	t.mu.RUnlock()

	if callback == nil {
		return
	}
	if err := callback(start); err != nil {
		t.setMessage(app.StatusMessage(err))
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetStatus refreshes the menu from a session snapshot.
func (t *Tray) SetStatus(st app.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status = st
	if t.menuAudio == nil {
		return
	}
	t.menuAudio.SetTitle(audioTitle(st.AudioEnabled))
	if st.AudioEnabled {
		t.menuAudio.Disable()
	}
	t.menuRecord.SetTitle(recordTitle(st.Recording))
	switch st.Recording {
	case "finalizing", "disabled":
		t.menuRecord.Disable()
	default:
		t.menuRecord.Enable()
	}
	t.menuStatus.SetTitle(StatusLine(st))
}

func (t *Tray) setMessage(msg string) {
	t.mu.Lock()
	st := t.status
	t.mu.Unlock()
	st.Message = msg
	t.SetStatus(st)
}

func audioTitle(enabled bool) string {
	if enabled {
		return "● Audio Enabled"
	}
	return "Enable Audio"
}

func recordTitle(status string) string {
	switch status {
	case "recording":
		return "■ Stop Recording"
	case "finalizing":
		return "Saving Recording..."
	case "disabled":
		return "Recording Unavailable"
	default:
		return "● Start Recording"
	}
}

// StatusLine renders a session snapshot as one menu line.
func StatusLine(st app.Status) string {
	switch {
	case st.Message != "":
		return st.Message
	case !st.Ready:
		return "Starting camera..."
	case !st.Tracking:
		return "Hand tracking unavailable"
	case st.Hands == 0:
		return "No hands detected"
	}
	return fmt.Sprintf("Hands: %d  Pitch: %+d  Voices: %d", st.Hands, st.PitchOffset, len(st.Voices))
}
