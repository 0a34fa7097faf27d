package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu     sync.Mutex
	hands  []HandLandmarks
	script [][]HandLandmarks
	err    error
	calls  int
	closed bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetScript queues per-frame results. Each Detect call consumes one entry;
// once the script is exhausted the hands set by SetHands are returned.
func (m *MockDetector) SetScript(frames [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the next scripted frame, the pre-configured hands, or the error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.script) > 0 {
		next := m.script[0]
		m.script = m.script[1:]
		return next, nil
	}
	return m.hands, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// FingerPose selects which fingers are raised in a generated hand.
type FingerPose struct {
	Thumb  bool
	Index  bool
	Middle bool
	Ring   bool
	Pinky  bool
}

// Pose builds a complete hand with the wrist at height wristY and the given
// fingers raised. Non-thumb fingers are raised by placing the tip above the
// PIP joint; the thumb is raised by moving its tip across the MCP joint
// (toward smaller X for a Right hand, larger X otherwise). Left hands are
// mirrored around X=0.5.
func Pose(handedness string, wristY float64, p FingerPose) HandLandmarks {
	h := HandLandmarks{
		Points:     make(LandmarkSet, NumLandmarks),
		Handedness: handedness,
		Score:      0.95,
	}

	mirror := handedness != Right
	at := func(x, y float64) Point3D {
		if mirror {
			x = 1 - x
		}
		return Point3D{X: x, Y: y}
	}

	h.Points[Wrist] = at(0.5, wristY)

	// Thumb: up means tip.x < mcp.x for a Right hand; the mirror flips it.
	thumbTipX := 0.66
	if p.Thumb {
		thumbTipX = 0.50
	}
	h.Points[ThumbCMC] = at(0.56, wristY-0.04)
	h.Points[ThumbMCP] = at(0.60, wristY-0.08)
	h.Points[ThumbIP] = at((0.60+thumbTipX)/2, wristY-0.11)
	h.Points[ThumbTip] = at(thumbTipX, wristY-0.14)

	fingers := []struct {
		mcp, pip, dip, tip int
		x                  float64
		up                 bool
	}{
		{IndexMCP, IndexPIP, IndexDIP, IndexTip, 0.55, p.Index},
		{MiddleMCP, MiddlePIP, MiddleDIP, MiddleTip, 0.50, p.Middle},
		{RingMCP, RingPIP, RingDIP, RingTip, 0.45, p.Ring},
		{PinkyMCP, PinkyPIP, PinkyDIP, PinkyTip, 0.40, p.Pinky},
	}
	for _, f := range fingers {
		h.Points[f.mcp] = at(f.x, wristY-0.12)
		h.Points[f.pip] = at(f.x, wristY-0.20)
		if f.up {
			h.Points[f.dip] = at(f.x, wristY-0.26)
			h.Points[f.tip] = at(f.x, wristY-0.32)
		} else {
			// Curled back toward the palm, tip below the PIP joint.
			h.Points[f.dip] = at(f.x-0.02, wristY-0.17)
			h.Points[f.tip] = at(f.x-0.03, wristY-0.14)
		}
	}

	return h
}

// ThumbsUpLandmarks returns a right hand with only the thumb raised.
func ThumbsUpLandmarks() HandLandmarks {
	return Pose(Right, 0.8, FingerPose{Thumb: true})
}

// OpenPalmLandmarks returns a right hand with every finger raised.
func OpenPalmLandmarks() HandLandmarks {
	return Pose(Right, 0.8, FingerPose{Thumb: true, Index: true, Middle: true, Ring: true, Pinky: true})
}

// FistLandmarks returns a right hand with every finger lowered.
func FistLandmarks() HandLandmarks {
	return Pose(Right, 0.8, FingerPose{})
}
