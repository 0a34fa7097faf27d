// Package detector provides hand detection interfaces and types for gesture recognition.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels reported by the detector.
const (
	Left    = "Left"
	Right   = "Right"
	Unknown = "Unknown"
)

// Point3D represents a normalized landmark position. X and Y are in image
// space (0..1, Y grows downward); Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// LandmarkSet is the ordered landmark sequence of one detected hand. A
// complete set has NumLandmarks points; detectors may report fewer.
type LandmarkSet []Point3D

// At returns the landmark at index i and whether it is present.
func (s LandmarkSet) At(i int) (Point3D, bool) {
	if i < 0 || i >= len(s) {
		return Point3D{}, false
	}
	return s[i], true
}

// Complete reports whether every landmark index is present.
func (s LandmarkSet) Complete() bool {
	return len(s) == NumLandmarks
}

// HandLandmarks is one hand observation from a single frame. Its position in
// the slice returned by Detect is the hand's detection slot.
type HandLandmarks struct {
	Points     LandmarkSet `json:"points"`
	Handedness string      `json:"handedness"` // "Left", "Right" or "Unknown"
	Score      float64     `json:"score"`
}

// Label returns the handedness label, mapping an empty label to Unknown.
func (h HandLandmarks) Label() string {
	if h.Handedness == "" {
		return Unknown
	}
	return h.Handedness
}
