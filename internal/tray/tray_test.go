package tray

import (
	"testing"

	"github.com/ayusman/airchord/internal/app"
	"github.com/ayusman/airchord/internal/voice"
)

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name string
		st   app.Status
		want string
	}{
		{name: "message wins", st: app.Status{Ready: true, Tracking: true, Message: "Error loading video stream."}, want: "Error loading video stream."},
		{name: "starting", st: app.Status{}, want: "Starting camera..."},
		{name: "no tracking", st: app.Status{Ready: true}, want: "Hand tracking unavailable"},
		{name: "no hands", st: app.Status{Ready: true, Tracking: true}, want: "No hands detected"},
		{
			name: "playing",
			st:   app.Status{Ready: true, Tracking: true, Hands: 2, PitchOffset: 3, Voices: make([]voice.Voice, 2)},
			want: "Hands: 2  Pitch: +3  Voices: 2",
		},
		{
			name: "negative pitch",
			st:   app.Status{Ready: true, Tracking: true, Hands: 1, PitchOffset: -12},
			want: "Hands: 1  Pitch: -12  Voices: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusLine(tt.st); got != tt.want {
				t.Errorf("StatusLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMenuTitles(t *testing.T) {
	if audioTitle(false) != "Enable Audio" || audioTitle(true) != "● Audio Enabled" {
		t.Error("unexpected audio titles")
	}

	tests := map[string]string{
		"idle":       "● Start Recording",
		"":           "● Start Recording",
		"recording":  "■ Stop Recording",
		"finalizing": "Saving Recording...",
		"disabled":   "Recording Unavailable",
	}
	for status, want := range tests {
		if got := recordTitle(status); got != want {
			t.Errorf("recordTitle(%q) = %q, want %q", status, got, want)
		}
	}
}

func TestTray_CallbacksWithoutMenu(t *testing.T) {
	tr := New()

	var started []bool
	tr.OnRecord(func(start bool) error {
		started = append(started, start)
		return nil
	})
	tr.handleRecord()

	tr.SetStatus(app.Status{Recording: "recording"})
	tr.handleRecord()

	if len(started) != 2 || !started[0] || started[1] {
		t.Errorf("record toggles = %v, want [true false]", started)
	}

	audio := 0
	tr.OnEnableAudio(func() error { audio++; return app.ErrAudio })
	tr.handleEnableAudio()
	if audio != 1 {
		t.Errorf("enable audio calls = %d, want 1", audio)
	}
	tr.mu.RLock()
	msg := tr.status.Message
	tr.mu.RUnlock()
	if msg != app.StatusMessage(app.ErrAudio) {
		t.Errorf("message = %q", msg)
	}
}
