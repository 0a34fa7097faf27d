// Package gesture turns per-frame hand landmarks into chord trigger and
// release events.
package gesture

import (
	"fmt"

	"github.com/ayusman/airchord/internal/detector"
)

// Finger identifies one digit of a hand.
type Finger int

// Finger identities, thumb first.
const (
	Thumb Finger = iota
	Index
	Middle
	Ring
	Pinky
	NumFingers
)

// Fingers lists every finger identity in classification order.
var Fingers = [NumFingers]Finger{Thumb, Index, Middle, Ring, Pinky}

var fingerNames = [NumFingers]string{"thumb", "index", "middle", "ring", "pinky"}

// String returns the lower-case finger name.
func (f Finger) String() string {
	if f < 0 || f >= NumFingers {
		return fmt.Sprintf("finger(%d)", int(f))
	}
	return fingerNames[f]
}

// ParseFinger maps a finger name to its identity.
func ParseFinger(name string) (Finger, error) {
	for i, n := range fingerNames {
		if n == name {
			return Finger(i), nil
		}
	}
	return 0, fmt.Errorf("unknown finger %q", name)
}

// joints holds the landmark indices the classifier reads for a finger.
type joints struct {
	tip, pip, mcp int
}

var fingerJoints = [NumFingers]joints{
	Thumb:  {tip: detector.ThumbTip, pip: detector.ThumbIP, mcp: detector.ThumbMCP},
	Index:  {tip: detector.IndexTip, pip: detector.IndexPIP, mcp: detector.IndexMCP},
	Middle: {tip: detector.MiddleTip, pip: detector.MiddlePIP, mcp: detector.MiddleMCP},
	Ring:   {tip: detector.RingTip, pip: detector.RingPIP, mcp: detector.RingMCP},
	Pinky:  {tip: detector.PinkyTip, pip: detector.PinkyPIP, mcp: detector.PinkyMCP},
}

// Chord is a three-note base chord in MIDI note numbers.
type Chord [3]int

// Notes returns the chord as a slice.
func (c Chord) Notes() []int {
	return []int{c[0], c[1], c[2]}
}

// Chords maps every finger to its base chord.
type Chords [NumFingers]Chord

// DefaultChords returns the built-in finger chords (D major family).
func DefaultChords() Chords {
	return Chords{
		Thumb:  {62, 66, 69},
		Index:  {64, 67, 71},
		Middle: {66, 69, 73},
		Ring:   {67, 71, 74},
		Pinky:  {69, 73, 76},
	}
}

// ChordsFromMap builds Chords from a finger-name keyed map, as found in the
// configuration file. Every finger must be present with exactly three notes.
func ChordsFromMap(m map[string][]int) (Chords, error) {
	var chords Chords
	for _, f := range Fingers {
		notes, ok := m[f.String()]
		if !ok {
			return chords, fmt.Errorf("no chord for %s", f)
		}
		if len(notes) != 3 {
			return chords, fmt.Errorf("chord for %s has %d notes, want 3", f, len(notes))
		}
		chords[f] = Chord{notes[0], notes[1], notes[2]}
	}
	return chords, nil
}

// Key identifies one tracked digit: the hand's detection slot plus the finger.
// Hands are identified by slot only, never by handedness label, so a label
// flip between frames cannot orphan a sustained voice.
type Key struct {
	Hand   int
	Finger Finger
}

// String renders the key as "<hand>_<finger>".
func (k Key) String() string {
	return fmt.Sprintf("%d_%s", k.Hand, k.Finger)
}
