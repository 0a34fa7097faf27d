package capture

import (
	"context"
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/media"
)

// MicrophoneConfig describes the optional microphone input.
type MicrophoneConfig struct {
	Enabled bool
	Format  string // ffmpeg input format, e.g. "pulse" or "alsa"
	Device  string
}

// AcquirerConfig holds Acquirer dependencies.
type AcquirerConfig struct {
	Camera     Camera
	Tap        *FrameTap
	Microphone MicrophoneConfig
	// Encoder is the executable that reads device-backed tracks.
	Encoder string
	// LookPath resolves Encoder; defaults to exec.LookPath.
	LookPath func(string) (string, error)
	Logger   *zap.Logger
}

// Acquirer turns devices into media streams.
type Acquirer struct {
	cfg    AcquirerConfig
	logger *zap.Logger
}

// NewAcquirer creates an Acquirer.
func NewAcquirer(cfg AcquirerConfig) *Acquirer {
	if cfg.Tap == nil {
		cfg.Tap = NewFrameTap()
	}
	if cfg.Encoder == "" {
		cfg.Encoder = "ffmpeg"
	}
	if cfg.LookPath == nil {
		cfg.LookPath = exec.LookPath
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Acquirer{cfg: cfg, logger: cfg.Logger}
}

// Tap returns the frame tap that feeds the camera's video track.
func (a *Acquirer) Tap() *FrameTap {
	return a.cfg.Tap
}

// Camera opens the camera and returns a stream with one video track fed by
// the frame tap. Stopping the track closes the camera.
func (a *Acquirer) Camera(ctx context.Context) (*media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if a.cfg.Camera == nil {
		return nil, &Error{Kind: KindUnavailable, Device: "camera", Err: fmt.Errorf("no camera configured")}
	}

	if err := a.cfg.Camera.Open(); err != nil {
		if _, ok := KindOf(err); !ok {
			err = &Error{Kind: KindTransientDevice, Device: "camera", Err: err}
		}
		return nil, err
	}
	a.logger.Info("camera opened", zap.Int("fps", a.cfg.Camera.FPS()))

	cam := a.cfg.Camera
	track := media.NewFrameTrack("camera", a.cfg.Tap, func() {
		if err := cam.Close(); err != nil {
			a.logger.Warn("camera close failed", zap.Error(err))
		}
	})
	return media.NewStream(track), nil
}

// Microphone returns a stream with one device-backed audio track. It fails
// with ErrMicrophoneDisabled when turned off and with KindUnavailable when
// the encoder that would read the device is not installed.
func (a *Acquirer) Microphone(ctx context.Context) (*media.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mic := a.cfg.Microphone
	if !mic.Enabled {
		return nil, ErrMicrophoneDisabled
	}
	if mic.Device == "" {
		return nil, &Error{Kind: KindTransientDevice, Device: "microphone", Err: fmt.Errorf("no device configured")}
	}
	if _, err := a.cfg.LookPath(a.cfg.Encoder); err != nil {
		return nil, &Error{Kind: KindUnavailable, Device: "microphone", Err: err}
	}

	track := media.NewDeviceTrack(media.Audio, "microphone", media.Input{
		Format: mic.Format,
		Device: mic.Device,
	}, nil)
	a.logger.Info("microphone ready", zap.String("format", mic.Format), zap.String("device", mic.Device))
	return media.NewStream(track), nil
}
