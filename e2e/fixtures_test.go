package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayusman/airchord/internal/detector"
)

// handsDir holds scripted hand sequences as JSON.
var handsDir = filepath.Join("..", "testdata", "hands")

type fixtureHand struct {
	Handedness string   `json:"handedness"`
	WristY     float64  `json:"wrist_y"`
	Fingers    []string `json:"fingers"`
}

type fixture struct {
	Frames [][]fixtureHand `json:"frames"`
}

// loadSequence loads a named hand sequence. Each element is one frame's
// detector output in slot order; an empty frame means no hands were seen.
func loadSequence(name string) ([][]detector.HandLandmarks, error) {
	data, err := os.ReadFile(filepath.Join(handsDir, name+".json"))
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", name, err)
	}

	var f fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode sequence %s: %w", name, err)
	}

	frames := make([][]detector.HandLandmarks, len(f.Frames))
	for i, hands := range f.Frames {
		frames[i] = make([]detector.HandLandmarks, 0, len(hands))
		for _, h := range hands {
			pose, err := fingerPose(h.Fingers)
			if err != nil {
				return nil, fmt.Errorf("sequence %s frame %d: %w", name, i, err)
			}
			frames[i] = append(frames[i], detector.Pose(h.Handedness, h.WristY, pose))
		}
	}
	return frames, nil
}

func fingerPose(fingers []string) (detector.FingerPose, error) {
	var p detector.FingerPose
	for _, f := range fingers {
		switch f {
		case "thumb":
			p.Thumb = true
		case "index":
			p.Index = true
		case "middle":
			p.Middle = true
		case "ring":
			p.Ring = true
		case "pinky":
			p.Pinky = true
		default:
			return p, fmt.Errorf("unknown finger %q", f)
		}
	}
	return p, nil
}
