package gesture

import (
	"math"

	"github.com/ayusman/airchord/internal/detector"
)

// IsFingerUp reports whether finger f is raised in the landmark set.
//
// Non-thumb fingers are up when the tip is above the PIP joint (smaller Y).
// The thumb is up when its tip is left of its MCP joint for a "Right" hand
// and right of it for any other label, matching the mirrored selfie view.
// Missing landmarks yield false.
func IsFingerUp(lm detector.LandmarkSet, f Finger, handedness string) bool {
	if f < 0 || f >= NumFingers {
		return false
	}
	j := fingerJoints[f]

	tip, ok := lm.At(j.tip)
	if !ok {
		return false
	}

	if f == Thumb {
		mcp, ok := lm.At(j.mcp)
		if !ok {
			return false
		}
		if _, ok := lm.At(detector.Wrist); !ok {
			return false
		}
		if handedness == detector.Right {
			return tip.X < mcp.X
		}
		return tip.X > mcp.X
	}

	pip, ok := lm.At(j.pip)
	if !ok {
		return false
	}
	return tip.Y < pip.Y
}

// PitchControl is the vertical band of the frame mapped onto pitch offsets.
type PitchControl struct {
	Top       float64 // normalized Y of +MaxOffset
	Bottom    float64 // normalized Y of -MaxOffset
	MaxOffset int
}

// DefaultPitchControl returns the 0.2..0.8 band with a ±12 semitone range.
func DefaultPitchControl() PitchControl {
	return PitchControl{Top: 0.2, Bottom: 0.8, MaxOffset: 12}
}

// Offset returns the semitone offset implied by the wrist height.
func (p PitchControl) Offset(lm detector.LandmarkSet) int {
	return PitchOffset(lm, p.Top, p.Bottom, p.MaxOffset)
}

// PitchOffset maps the wrist's vertical position onto [-maxOffset, +maxOffset].
// The wrist is clamped to [top, bottom]; the top of the band gives +maxOffset
// and the bottom -maxOffset. Halves round up. It returns 0 for an empty set,
// a missing wrist, or a band of non-positive height.
func PitchOffset(lm detector.LandmarkSet, top, bottom float64, maxOffset int) int {
	if len(lm) == 0 {
		return 0
	}
	wrist, ok := lm.At(detector.Wrist)
	if !ok {
		return 0
	}

	height := bottom - top
	if height <= 0 {
		return 0
	}

	y := math.Max(top, math.Min(bottom, wrist.Y))
	normalized := (y - top) / height
	span := float64(maxOffset)

	return int(math.Floor((1-normalized)*2*span - span + 0.5))
}
