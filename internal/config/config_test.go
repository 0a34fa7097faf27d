package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}

	if cfg.Pitch.MaxOffset != 12 {
		t.Errorf("MaxOffset = %d, want 12", cfg.Pitch.MaxOffset)
	}
	if cfg.Sustain() != 800*time.Millisecond {
		t.Errorf("Sustain() = %v, want 800ms", cfg.Sustain())
	}
	if got := cfg.FrameInterval(); got != time.Second/30 {
		t.Errorf("FrameInterval() = %v, want %v", got, time.Second/30)
	}
	if got := cfg.Chords["index"]; len(got) != 3 || got[0] != 64 || got[1] != 67 || got[2] != 71 {
		t.Errorf("index chord = %v, want [64 67 71]", got)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FrameRate != 30 {
		t.Errorf("FrameRate = %d, want 30", cfg.FrameRate)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
frame_rate: 24
sustain_seconds: 1.5
pitch:
  max_offset: 7
chords:
  thumb: [60, 64, 67]
server:
  addr: "127.0.0.1:9000"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.FrameRate != 24 {
		t.Errorf("FrameRate = %d, want 24", cfg.FrameRate)
	}
	if cfg.Pitch.MaxOffset != 7 {
		t.Errorf("MaxOffset = %d, want 7", cfg.Pitch.MaxOffset)
	}
	// Unset fields in a section keep their defaults.
	if cfg.Pitch.BandTop != 0.2 || cfg.Pitch.BandBottom != 0.8 {
		t.Errorf("band = %f..%f, want 0.2..0.8", cfg.Pitch.BandTop, cfg.Pitch.BandBottom)
	}
	if got := cfg.Chords["thumb"]; got[0] != 60 {
		t.Errorf("thumb chord = %v, want [60 64 67]", got)
	}
	if got := cfg.Chords["pinky"]; got[0] != 69 {
		t.Errorf("pinky chord = %v, want default [69 73 76]", got)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_EnvPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env.yaml")
	if err := os.WriteFile(path, []byte("frame_rate: 15\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(EnvPath, path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.FrameRate != 15 {
		t.Errorf("FrameRate = %d, want 15", cfg.FrameRate)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed yaml", content: "frame_rate: [1,"},
		{name: "zero frame rate", content: "frame_rate: 0"},
		{name: "inverted band", content: "pitch:\n  band_top: 0.9\n  band_bottom: 0.1"},
		{name: "short chord", content: "chords:\n  index: [64, 67]"},
		{name: "unknown finger", content: "chords:\n  toe: [1, 2, 3]"},
		{name: "offset too large", content: "pitch:\n  max_offset: 30"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}
