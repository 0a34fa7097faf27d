package app

import (
	"errors"

	"github.com/ayusman/airchord/internal/capture"
	"github.com/ayusman/airchord/internal/media"
	"github.com/ayusman/airchord/internal/recording"
	"github.com/ayusman/airchord/internal/voice"
)

// Session failures that are not acquisition errors.
var (
	ErrTracking        = errors.New("hand tracking unavailable")
	ErrAudio           = errors.New("audio unavailable")
	ErrVideoStream     = errors.New("video stream failed")
	ErrRecordingFailed = errors.New("recording failed")
)

// Status is a snapshot of the session.
type Status struct {
	Ready        bool   `json:"ready"`
	Tracking     bool   `json:"tracking"`
	AudioEnabled bool   `json:"audio_enabled"`
	Message      string `json:"message,omitempty"`
	PitchOffset  int    `json:"pitch_offset"`
	Hands        int    `json:"hands"`

	Voices []voice.Voice `json:"voices"`

	Composite       bool   `json:"composite"`
	CompositeReason string `json:"composite_reason,omitempty"`

	Recording      string              `json:"recording"`
	RecordingError string              `json:"recording_error,omitempty"`
	Artifact       *recording.Artifact `json:"artifact,omitempty"`
}

// Status returns the current session snapshot.
func (s *Session) Status() Status {
	s.mu.Lock()
	st := Status{
		Ready:        s.ready,
		Tracking:     s.det != nil,
		AudioEnabled: s.audioEnabled,
		Message:      s.message,
		PitchOffset:  s.offset,
		Hands:        s.hands,
	}
	s.mu.Unlock()

	st.Voices = []voice.Voice{}
	if s.voices != nil {
		st.Voices = s.voices.Active()
	}

	st.Composite = s.composer.Composite() != nil
	st.CompositeReason = string(s.composer.Reason())

	st.Recording = "disabled"
	if s.recorder != nil {
		st.Recording = string(s.recorder.Status())
		if err := s.recorder.Err(); err != nil {
			st.RecordingError = StatusMessage(ErrRecordingFailed)
		}
		st.Artifact = s.recorder.Artifact()
	}
	return st
}

// StatusMessage maps err to the short string shown to the user. Raw errors
// are only logged.
func StatusMessage(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrTracking):
		return "Failed to initialize hand tracking. Please try again."
	case errors.Is(err, ErrVideoStream):
		return "Error loading video stream."
	case errors.Is(err, ErrAudio):
		return "Could not enable audio. Check the synthesizer output and try again."
	case errors.Is(err, ErrRecordingFailed):
		return "Recording stopped because of an error."
	}

	var ce *capture.Error
	if errors.As(err, &ce) {
		if ce.Device == "microphone" {
			switch ce.Kind {
			case capture.KindPermissionDenied:
				return "Microphone permission denied. Recording will use synth audio only."
			default:
				return "Could not access microphone. Recording will use synth audio only."
			}
		}
		switch ce.Kind {
		case capture.KindPermissionDenied:
			return "Camera permission denied. Please allow camera access and refresh."
		case capture.KindUnavailable:
			return "Webcam access is not supported on this system."
		default:
			return "Could not access webcam. Ensure it's connected and not in use."
		}
	}

	switch {
	case errors.Is(err, recording.ErrAlreadyRecording):
		return "A recording is already in progress."
	case errors.Is(err, recording.ErrNoSource):
		return "Nothing to record: video and audio must both be available."
	case errors.Is(err, recording.ErrUnsupported):
		return "Recording is not supported on this system."
	case errors.Is(err, recording.ErrNotRecording):
		return "Not recording."
	case errors.Is(err, media.ErrComposition):
		return "Could not combine audio sources."
	}
	return "Something went wrong. Please try again."
}
