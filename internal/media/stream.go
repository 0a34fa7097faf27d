// Package media models capture streams and composes the camera, synthesizer
// and microphone sources into one recordable stream.
package media

import (
	"sync"

	"github.com/google/uuid"
)

// Kind is the media type of a track.
type Kind string

// Track kinds.
const (
	Audio Kind = "audio"
	Video Kind = "video"
)

// Input locates a device-backed track for an external encoder, e.g.
// Format "pulse" with Device "default".
type Input struct {
	Format string `json:"format"`
	Device string `json:"device"`
}

// FrameSource delivers encoded frames (JPEG) for a frame-backed video track.
// Subscribe returns a channel of frames and a function that ends the
// subscription.
type FrameSource interface {
	Subscribe() (<-chan []byte, func())
}

// Track is one stoppable media track. A track is backed by exactly one of
// an Input device, a FrameSource, or a set of Sources mixed together.
type Track struct {
	ID      string
	Kind    Kind
	Label   string
	Input   Input
	Frames  FrameSource
	Sources []*Track

	mu     sync.Mutex
	ended  bool
	onStop func()
}

// NewDeviceTrack creates a track read from a device. onStop may be nil.
func NewDeviceTrack(kind Kind, label string, in Input, onStop func()) *Track {
	return &Track{
		ID:     uuid.New().String(),
		Kind:   kind,
		Label:  label,
		Input:  in,
		onStop: onStop,
	}
}

// NewFrameTrack creates a video track fed by frames. onStop may be nil.
func NewFrameTrack(label string, frames FrameSource, onStop func()) *Track {
	return &Track{
		ID:     uuid.New().String(),
		Kind:   Video,
		Label:  label,
		Frames: frames,
		onStop: onStop,
	}
}

// Stop ends the track. Repeated calls are no-ops.
func (t *Track) Stop() {
	t.mu.Lock()
	if t.ended {
		t.mu.Unlock()
		return
	}
	t.ended = true
	onStop := t.onStop
	t.mu.Unlock()

	if onStop != nil {
		onStop()
	}
}

// Live reports whether the track has not been stopped. A mixed track is live
// while all of its sources are.
func (t *Track) Live() bool {
	t.mu.Lock()
	ended := t.ended
	t.mu.Unlock()
	if ended {
		return false
	}
	for _, s := range t.Sources {
		if !s.Live() {
			return false
		}
	}
	return true
}

// Addressable reports whether an encoder can read the track.
func (t *Track) Addressable() bool {
	switch {
	case len(t.Sources) > 0:
		for _, s := range t.Sources {
			if !s.Addressable() {
				return false
			}
		}
		return true
	case t.Frames != nil:
		return true
	default:
		return t.Input.Device != ""
	}
}

// Stream is a set of tracks acquired or composed together.
type Stream struct {
	ID     string
	tracks []*Track
}

// NewStream groups tracks into a stream.
func NewStream(tracks ...*Track) *Stream {
	return &Stream{
		ID:     uuid.New().String(),
		tracks: tracks,
	}
}

// Tracks returns every track, live or not.
func (s *Stream) Tracks() []*Track {
	if s == nil {
		return nil
	}
	return append([]*Track(nil), s.tracks...)
}

// AudioTracks returns the live audio tracks.
func (s *Stream) AudioTracks() []*Track {
	return s.live(Audio)
}

// VideoTracks returns the live video tracks.
func (s *Stream) VideoTracks() []*Track {
	return s.live(Video)
}

func (s *Stream) live(kind Kind) []*Track {
	if s == nil {
		return nil
	}
	var out []*Track
	for _, t := range s.tracks {
		if t.Kind == kind && t.Live() {
			out = append(out, t)
		}
	}
	return out
}

// Stop stops every track in the stream.
func (s *Stream) Stop() {
	if s == nil {
		return
	}
	for _, t := range s.tracks {
		t.Stop()
	}
}
