package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
)

// Kind classifies acquisition failures.
type Kind int

const (
	// KindUnavailable means the capture capability is missing entirely
	// (no encoder, unsupported platform). The feature is disabled.
	KindUnavailable Kind = iota + 1
	// KindPermissionDenied means the user must grant device access.
	KindPermissionDenied
	// KindTransientDevice means the device is busy or disconnected.
	KindTransientDevice
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindPermissionDenied:
		return "permission denied"
	case KindTransientDevice:
		return "device unavailable"
	default:
		return "unknown"
	}
}

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrMicrophoneDisabled is returned when the microphone is turned off in config.
	ErrMicrophoneDisabled = errors.New("microphone disabled")
)

// Error is an acquisition failure with its classification.
type Error struct {
	Kind   Kind
	Device string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Device, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind, true
	}
	return 0, false
}

// classifyOpen turns a camera open failure into an *Error by probing the
// device node.
func classifyOpen(device int, err error) *Error {
	name := fmt.Sprintf("camera %d", device)
	if runtime.GOOS != "linux" {
		return &Error{Kind: KindTransientDevice, Device: name, Err: err}
	}

	path := fmt.Sprintf("/dev/video%d", device)
	f, probeErr := os.OpenFile(path, os.O_RDONLY, 0)
	if probeErr == nil {
		f.Close()
		return &Error{Kind: KindTransientDevice, Device: path, Err: err}
	}
	if errors.Is(probeErr, fs.ErrPermission) {
		return &Error{Kind: KindPermissionDenied, Device: path, Err: probeErr}
	}
	return &Error{Kind: KindTransientDevice, Device: path, Err: fmt.Errorf("%w (%v)", err, probeErr)}
}
