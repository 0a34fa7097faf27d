package gesture

import (
	"testing"

	"github.com/ayusman/airchord/internal/detector"
)

func TestIsFingerUp_NonThumb(t *testing.T) {
	tests := []struct {
		name  string
		tipY  float64
		pipY  float64
		want  bool
		label string
	}{
		{name: "tip above pip", tipY: 0.30, pipY: 0.40, want: true, label: detector.Right},
		{name: "tip below pip", tipY: 0.50, pipY: 0.40, want: false, label: detector.Right},
		{name: "tip level with pip", tipY: 0.40, pipY: 0.40, want: false, label: detector.Right},
		{name: "label does not matter", tipY: 0.30, pipY: 0.40, want: true, label: detector.Left},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, f := range []Finger{Index, Middle, Ring, Pinky} {
				lm := detector.FistLandmarks().Points
				j := fingerJoints[f]
				lm[j.tip].Y = tt.tipY
				lm[j.pip].Y = tt.pipY

				if got := IsFingerUp(lm, f, tt.label); got != tt.want {
					t.Errorf("IsFingerUp(%s) = %v, want %v", f, got, tt.want)
				}
			}
		})
	}
}

func TestIsFingerUp_Thumb(t *testing.T) {
	tests := []struct {
		name  string
		label string
		tipX  float64
		mcpX  float64
		want  bool
	}{
		{name: "right hand tip left of mcp", label: detector.Right, tipX: 0.4, mcpX: 0.5, want: true},
		{name: "right hand tip right of mcp", label: detector.Right, tipX: 0.6, mcpX: 0.5, want: false},
		{name: "left hand tip right of mcp", label: detector.Left, tipX: 0.6, mcpX: 0.5, want: true},
		{name: "left hand tip left of mcp", label: detector.Left, tipX: 0.4, mcpX: 0.5, want: false},
		{name: "unknown label behaves like left", label: detector.Unknown, tipX: 0.6, mcpX: 0.5, want: true},
		{name: "equal x is down for right", label: detector.Right, tipX: 0.5, mcpX: 0.5, want: false},
		{name: "equal x is down for left", label: detector.Left, tipX: 0.5, mcpX: 0.5, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lm := detector.FistLandmarks().Points
			lm[detector.ThumbTip].X = tt.tipX
			lm[detector.ThumbMCP].X = tt.mcpX

			if got := IsFingerUp(lm, Thumb, tt.label); got != tt.want {
				t.Errorf("IsFingerUp(thumb) = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsFingerUp_MissingLandmarks(t *testing.T) {
	full := detector.OpenPalmLandmarks().Points

	tests := []struct {
		name   string
		set    detector.LandmarkSet
		finger Finger
	}{
		{name: "empty set", set: nil, finger: Index},
		{name: "pinky tip missing", set: full[:detector.PinkyTip], finger: Pinky},
		{name: "thumb only wrist", set: full[:1], finger: Thumb},
		{name: "invalid finger", set: full, finger: Finger(9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsFingerUp(tt.set, tt.finger, detector.Right) {
				t.Error("expected false for incomplete landmarks")
			}
		})
	}
}

func TestIsFingerUp_Poses(t *testing.T) {
	palm := detector.OpenPalmLandmarks()
	fist := detector.FistLandmarks()
	for _, f := range Fingers {
		if !IsFingerUp(palm.Points, f, palm.Handedness) {
			t.Errorf("open palm: %s should be up", f)
		}
		if IsFingerUp(fist.Points, f, fist.Handedness) {
			t.Errorf("fist: %s should be down", f)
		}
	}

	left := detector.Pose(detector.Left, 0.5, detector.FingerPose{Thumb: true, Ring: true})
	want := map[Finger]bool{Thumb: true, Ring: true}
	for _, f := range Fingers {
		if got := IsFingerUp(left.Points, f, left.Handedness); got != want[f] {
			t.Errorf("left pose: %s up = %v, want %v", f, got, want[f])
		}
	}
}

func wristAt(y float64) detector.LandmarkSet {
	return detector.Pose(detector.Right, y, detector.FingerPose{}).Points
}

func TestPitchOffset(t *testing.T) {
	tests := []struct {
		name   string
		wristY float64
		want   int
	}{
		{name: "top of band", wristY: 0.2, want: 12},
		{name: "bottom of band", wristY: 0.8, want: -12},
		{name: "midpoint", wristY: 0.5, want: 0},
		{name: "above band clamps", wristY: 0.05, want: 12},
		{name: "below band clamps", wristY: 0.95, want: -12},
		{name: "quarter from top", wristY: 0.35, want: 6},
		{name: "quarter from bottom", wristY: 0.65, want: -6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PitchOffset(wristAt(tt.wristY), 0.2, 0.8, 12); got != tt.want {
				t.Errorf("PitchOffset(wrist=%f) = %d, want %d", tt.wristY, got, tt.want)
			}
		})
	}
}

func TestPitchOffset_Degenerate(t *testing.T) {
	if got := PitchOffset(nil, 0.2, 0.8, 12); got != 0 {
		t.Errorf("empty set: got %d, want 0", got)
	}
	if got := PitchOffset(wristAt(0.2), 0.8, 0.2, 12); got != 0 {
		t.Errorf("inverted band: got %d, want 0", got)
	}
	if got := PitchOffset(wristAt(0.2), 0.5, 0.5, 12); got != 0 {
		t.Errorf("zero-height band: got %d, want 0", got)
	}
}

func TestPitchOffset_Range(t *testing.T) {
	prev := 13
	for i := 0; i <= 100; i++ {
		y := float64(i) / 100
		got := PitchOffset(wristAt(y), 0.2, 0.8, 12)
		if got < -12 || got > 12 {
			t.Fatalf("PitchOffset(wrist=%f) = %d, outside ±12", y, got)
		}
		if got > prev {
			t.Fatalf("PitchOffset(wrist=%f) = %d rose above %d while moving down", y, got, prev)
		}
		prev = got
	}
}

func TestPitchControl_Offset(t *testing.T) {
	p := DefaultPitchControl()
	if got := p.Offset(wristAt(0.2)); got != p.MaxOffset {
		t.Errorf("Offset(top) = %d, want %d", got, p.MaxOffset)
	}
}
