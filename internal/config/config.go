// Package config loads the airchord configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable that overrides the config file location.
const EnvPath = "AIRCHORD_CONFIG"

// FingerNames lists the finger identities accepted in the chords section, thumb first.
var FingerNames = []string{"thumb", "index", "middle", "ring", "pinky"}

// Pitch configures the wrist-height pitch control band.
type Pitch struct {
	MaxOffset  int     `yaml:"max_offset"`
	BandTop    float64 `yaml:"band_top"`
	BandBottom float64 `yaml:"band_bottom"`
}

// Detector configures the hand landmark detector.
type Detector struct {
	MaxHands      int     `yaml:"max_hands"`
	MinConfidence float64 `yaml:"min_confidence"`
	MinTracking   float64 `yaml:"min_tracking"`
}

// Camera configures video acquisition.
type Camera struct {
	Device int `yaml:"device"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Microphone configures the optional microphone source. Format and Device are
// ffmpeg input parameters (for example "pulse" and "default").
type Microphone struct {
	Enabled bool   `yaml:"enabled"`
	Format  string `yaml:"format"`
	Device  string `yaml:"device"`
}

// Synth configures the MIDI synthesis backend.
type Synth struct {
	MIDIPort      string `yaml:"midi_port"`
	Channel       uint8  `yaml:"channel"`
	Velocity      uint8  `yaml:"velocity"`
	MonitorFormat string `yaml:"monitor_format"`
	MonitorDevice string `yaml:"monitor_device"`
}

// Recording configures the capture layer.
type Recording struct {
	Enabled          bool   `yaml:"enabled"`
	MimeType         string `yaml:"mime_type"`
	FallbackMimeType string `yaml:"fallback_mime_type"`
	OutputDir        string `yaml:"output_dir"`
	FFmpeg           string `yaml:"ffmpeg"`
}

// Server configures the local HTTP surface.
type Server struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// Store configures the artifact database.
type Store struct {
	Path string `yaml:"path"`
}

// Config is the root of the configuration file.
type Config struct {
	LogLevel       string           `yaml:"log_level"`
	FrameRate      int              `yaml:"frame_rate"`
	SustainSeconds float64          `yaml:"sustain_seconds"`
	Pitch          Pitch            `yaml:"pitch"`
	Chords         map[string][]int `yaml:"chords"`
	Detector       Detector         `yaml:"detector"`
	Camera         Camera           `yaml:"camera"`
	Microphone     Microphone       `yaml:"microphone"`
	Synth          Synth            `yaml:"synth"`
	Recording      Recording        `yaml:"recording"`
	Server         Server           `yaml:"server"`
	Store          Store            `yaml:"store"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:       "info",
		FrameRate:      30,
		SustainSeconds: 0.8,
		Pitch: Pitch{
			MaxOffset:  12,
			BandTop:    0.2,
			BandBottom: 0.8,
		},
		Chords: map[string][]int{
			"thumb":  {62, 66, 69},
			"index":  {64, 67, 71},
			"middle": {66, 69, 73},
			"ring":   {67, 71, 74},
			"pinky":  {69, 73, 76},
		},
		Detector: Detector{
			MaxHands:      2,
			MinConfidence: 0.7,
			MinTracking:   0.6,
		},
		Camera: Camera{
			Device: 0,
			Width:  640,
			Height: 480,
		},
		Microphone: Microphone{
			Enabled: true,
			Format:  "pulse",
			Device:  "default",
		},
		Synth: Synth{
			Channel:       0,
			Velocity:      100,
			MonitorFormat: "pulse",
		},
		Recording: Recording{
			Enabled:          true,
			MimeType:         "video/webm;codecs=vp9,opus",
			FallbackMimeType: "video/webm",
			FFmpeg:           "ffmpeg",
		},
		Server: Server{
			Addr: ":8080",
		},
	}
}

// Load reads the configuration from path. An empty path resolves to
// $AIRCHORD_CONFIG and then ~/.airchord/config.yaml. A missing file yields
// the defaults; a malformed or invalid one is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = resolvePath()
	}
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

func resolvePath() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".airchord", "config.yaml")
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.FrameRate <= 0 {
		return fmt.Errorf("frame_rate must be positive, got %d", c.FrameRate)
	}
	if c.SustainSeconds < 0 {
		return fmt.Errorf("sustain_seconds must not be negative, got %f", c.SustainSeconds)
	}
	if c.Pitch.MaxOffset < 0 || c.Pitch.MaxOffset > 24 {
		return fmt.Errorf("pitch.max_offset must be within 0..24, got %d", c.Pitch.MaxOffset)
	}
	if c.Pitch.BandTop >= c.Pitch.BandBottom {
		return fmt.Errorf("pitch.band_top (%f) must be above pitch.band_bottom (%f)", c.Pitch.BandTop, c.Pitch.BandBottom)
	}
	for _, name := range FingerNames {
		notes, ok := c.Chords[name]
		if !ok {
			return fmt.Errorf("chords.%s is missing", name)
		}
		if len(notes) != 3 {
			return fmt.Errorf("chords.%s must have 3 notes, got %d", name, len(notes))
		}
	}
	if len(c.Chords) != len(FingerNames) {
		return fmt.Errorf("chords has unknown finger names")
	}
	if c.Detector.MaxHands < 1 {
		return fmt.Errorf("detector.max_hands must be at least 1, got %d", c.Detector.MaxHands)
	}
	return nil
}

// Sustain returns the release delay as a duration.
func (c Config) Sustain() time.Duration {
	return time.Duration(c.SustainSeconds * float64(time.Second))
}

// FrameInterval returns the frame loop cadence.
func (c Config) FrameInterval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.FrameRate)
}
