package gesture

import (
	"sort"

	"github.com/ayusman/airchord/internal/detector"
)

// EventType classifies a tracker event.
type EventType int

const (
	// EventTrigger is a rising edge: the finger went up.
	EventTrigger EventType = iota
	// EventRelease is a falling edge: the finger's voice should be released
	// after the sustain delay.
	EventRelease
	// EventStopAll means tracking was lost; every voice stops immediately.
	EventStopAll
)

// String returns the event type name used in logs and the event stream.
func (t EventType) String() string {
	switch t {
	case EventTrigger:
		return "trigger"
	case EventRelease:
		return "release"
	case EventStopAll:
		return "stop_all"
	default:
		return "unknown"
	}
}

// Event is one edge detected by the Tracker.
type Event struct {
	Type        EventType
	Key         Key
	Chord       Chord // base chord, set on EventTrigger
	PitchOffset int   // offset captured when the edge was classified
}

// Tracker holds the previous frame's finger states per gesture key and
// converts successive frames into edge events. It is not safe for concurrent
// use; the frame loop owns it.
type Tracker struct {
	chords Chords
	pitch  PitchControl
	states map[Key]bool
	offset int
}

// NewTracker creates a Tracker with the given chord table and pitch band.
func NewTracker(chords Chords, pitch PitchControl) *Tracker {
	return &Tracker{
		chords: chords,
		pitch:  pitch,
		states: make(map[Key]bool),
	}
}

// Process classifies one frame's hands and returns the resulting edges.
//
// With no hands it clears every finger state, resets the pitch offset to 0
// and, if anything was being tracked, emits a single EventStopAll. Keys of
// hand slots absent from this frame are dropped; those that were up emit
// EventRelease, so a returning hand starts from "down".
func (t *Tracker) Process(hands []detector.HandLandmarks) []Event {
	if len(hands) == 0 {
		t.offset = 0
		if len(t.states) == 0 {
			return nil
		}
		t.states = make(map[Key]bool)
		return []Event{{Type: EventStopAll}}
	}

	t.offset = t.pitch.Offset(hands[0].Points)

	var events []Event
	for hand, h := range hands {
		label := h.Label()
		for _, f := range Fingers {
			key := Key{Hand: hand, Finger: f}
			up := IsFingerUp(h.Points, f, label)
			prev := t.states[key]

			switch {
			case up && !prev:
				events = append(events, Event{
					Type:        EventTrigger,
					Key:         key,
					Chord:       t.chords[f],
					PitchOffset: t.offset,
				})
			case !up && prev:
				events = append(events, Event{Type: EventRelease, Key: key})
			}
			t.states[key] = up
		}
	}

	var gone []Key
	for key := range t.states {
		if key.Hand >= len(hands) {
			gone = append(gone, key)
		}
	}
	sort.Slice(gone, func(i, j int) bool {
		if gone[i].Hand != gone[j].Hand {
			return gone[i].Hand < gone[j].Hand
		}
		return gone[i].Finger < gone[j].Finger
	})
	for _, key := range gone {
		if t.states[key] {
			events = append(events, Event{Type: EventRelease, Key: key})
		}
		delete(t.states, key)
	}

	return events
}

// PitchOffset returns the offset computed for the most recent frame.
func (t *Tracker) PitchOffset() int {
	return t.offset
}

// Up reports whether the finger for key was up in the most recent frame.
func (t *Tracker) Up(key Key) bool {
	return t.states[key]
}

// Reset clears all finger states and the pitch offset.
func (t *Tracker) Reset() {
	t.states = make(map[Key]bool)
	t.offset = 0
}
