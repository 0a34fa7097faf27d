// Package recording captures the composite stream into a single artifact.
package recording

import (
	"errors"

	"github.com/ayusman/airchord/internal/media"
)

var (
	// ErrAlreadyRecording is returned by Start while a session is active.
	ErrAlreadyRecording = errors.New("already recording")
	// ErrNoSource is returned by Start without a composite stream.
	ErrNoSource = errors.New("no recordable source")
	// ErrUnsupported is returned when no capture primitive can be built.
	ErrUnsupported = errors.New("recording not supported")
	// ErrNotRecording is returned by Stop when idle.
	ErrNotRecording = errors.New("not recording")
)

// Options configures a capture primitive.
type Options struct {
	// MimeType is the requested container and codecs. Empty lets the
	// primitive choose.
	MimeType string
}

// Events are the callbacks a primitive invokes. They may be called from any
// goroutine; OnStop and OnError are each called at most once and never both.
type Events struct {
	OnData  func(chunk []byte)
	OnStop  func()
	OnError func(err error)
}

// Primitive is one capture in progress.
type Primitive interface {
	Start() error
	// Stop asks the primitive to finalize. OnStop follows once every chunk
	// has been delivered.
	Stop() error
	// MimeType is the negotiated media type.
	MimeType() string
}

// Factory builds capture primitives.
type Factory interface {
	IsTypeSupported(mimeType string) bool
	New(stream *media.Stream, opts Options, events Events) (Primitive, error)
}
