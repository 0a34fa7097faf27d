package recording

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/media"
)

// Status is the recording session state.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRecording  Status = "recording"
	StatusFinalizing Status = "finalizing"
)

// Default media types.
const (
	DefaultMimeType  = "video/webm;codecs=vp9,opus"
	FallbackMimeType = "video/webm"
)

// Artifact is an assembled recording.
type Artifact struct {
	ID        string    `json:"id"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// ControllerConfig holds Controller dependencies.
type ControllerConfig struct {
	Factory          Factory
	MimeType         string // preferred; defaults to DefaultMimeType
	FallbackMimeType string // defaults to FallbackMimeType
	// OnArtifact is called after a successful stop.
	OnArtifact func(*Artifact)
	// OnError is called when a recording aborts.
	OnError func(error)
	Now     func() time.Time
	Logger  *zap.Logger
}

// Controller runs at most one recording session at a time.
type Controller struct {
	mu       sync.Mutex
	cfg      ControllerConfig
	logger   *zap.Logger
	status   Status
	session  uint64
	prim     Primitive
	mimeType string
	chunks   [][]byte
	artifact *Artifact
	err      error
}

// NewController creates an idle Controller.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.MimeType == "" {
		cfg.MimeType = DefaultMimeType
	}
	if cfg.FallbackMimeType == "" {
		cfg.FallbackMimeType = FallbackMimeType
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Controller{cfg: cfg, logger: cfg.Logger, status: StatusIdle}
}

// Start begins recording stream. It fails with ErrAlreadyRecording unless
// idle, ErrNoSource when stream has no tracks, and ErrUnsupported when no
// primitive can be built and started even with default options. A failed
// Start leaves the previous artifact in place.
func (c *Controller) Start(stream *media.Stream) error {
	c.mu.Lock()

	if c.status != StatusIdle {
		c.mu.Unlock()
		return ErrAlreadyRecording
	}
	if stream == nil || len(stream.Tracks()) == 0 {
		c.mu.Unlock()
		return ErrNoSource
	}
	if c.cfg.Factory == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: no capture factory", ErrUnsupported)
	}

	c.session++
	session := c.session
	events := Events{
		OnData:  func(chunk []byte) { c.onData(session, chunk) },
		OnStop:  func() { c.onStop(session) },
		OnError: func(err error) { c.onError(session, err) },
	}
	// The previous artifact is kept until the new capture is running.
	previous := c.artifact
	c.chunks = nil
	c.status = StatusRecording
	c.mu.Unlock()

	mimeType := c.cfg.MimeType
	if !c.cfg.Factory.IsTypeSupported(mimeType) {
		mimeType = c.cfg.FallbackMimeType
	}

	prim, err := c.begin(session, stream, Options{MimeType: mimeType}, events)
	if err != nil {
		c.logger.Warn("capture with requested type failed, retrying with defaults",
			zap.String("mime_type", mimeType), zap.Error(err))
		prim, err = c.begin(session, stream, Options{}, events)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != session {
		// Aborted while starting.
		return nil
	}
	if err != nil {
		c.status = StatusIdle
		c.prim = nil
		c.chunks = nil
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if c.artifact == previous {
		c.artifact = nil
	}
	c.err = nil

	c.logger.Info("recording started", zap.String("mime_type", prim.MimeType()))
	return nil
}

// begin builds a primitive with opts and starts it. The primitive is
// published before Start so Stop and Abort can reach it.
func (c *Controller) begin(session uint64, stream *media.Stream, opts Options, events Events) (Primitive, error) {
	prim, err := c.cfg.Factory.New(stream, opts, events)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session == session {
		c.prim = prim
		c.mimeType = prim.MimeType()
	}
	c.mu.Unlock()

	if err := prim.Start(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}
	return prim, nil
}

// Stop finalizes the recording. It returns ErrNotRecording unless a session
// is recording; the stored artifact is left untouched in that case.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.status != StatusRecording {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.status = StatusFinalizing
	prim := c.prim
	c.mu.Unlock()

	c.logger.Info("recording finalizing")
	if err := prim.Stop(); err != nil {
		c.mu.Lock()
		session := c.session
		c.mu.Unlock()
		c.onError(session, fmt.Errorf("stop capture: %w", err))
		return err
	}
	return nil
}

func (c *Controller) onData(session uint64, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if session != c.session || c.status == StatusIdle {
		return
	}
	c.chunks = append(c.chunks, chunk)
}

func (c *Controller) onStop(session uint64) {
	c.mu.Lock()
	if session != c.session || c.status == StatusIdle {
		c.mu.Unlock()
		return
	}

	data := bytes.Join(c.chunks, nil)
	artifact := &Artifact{
		ID:        uuid.New().String(),
		MimeType:  c.mimeType,
		Data:      data,
		Size:      len(data),
		CreatedAt: c.cfg.Now(),
	}
	c.artifact = artifact
	c.chunks = nil
	c.prim = nil
	c.status = StatusIdle
	onArtifact := c.cfg.OnArtifact
	c.mu.Unlock()

	c.logger.Info("recording stopped", zap.Int("bytes", artifact.Size))
	if onArtifact != nil {
		onArtifact(artifact)
	}
}

func (c *Controller) onError(session uint64, err error) {
	c.mu.Lock()
	if session != c.session || c.status == StatusIdle {
		c.mu.Unlock()
		return
	}
	c.chunks = nil
	c.prim = nil
	c.err = err
	c.status = StatusIdle
	onError := c.cfg.OnError
	c.mu.Unlock()

	c.logger.Error("recording failed", zap.Error(err))
	if onError != nil {
		onError(err)
	}
}

// Status returns the current state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Artifact returns the last completed recording, or nil.
func (c *Controller) Artifact() *Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// Err returns the error that aborted the last recording, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Abort ends an active recording without producing an artifact. It is used
// on teardown.
func (c *Controller) Abort() {
	c.mu.Lock()
	if c.status == StatusIdle {
		c.mu.Unlock()
		return
	}
	prim := c.prim
	c.session++
	c.chunks = nil
	c.prim = nil
	c.status = StatusIdle
	c.mu.Unlock()

	if prim != nil {
		if err := prim.Stop(); err != nil {
			c.logger.Warn("abort capture", zap.Error(err))
		}
	}
	c.logger.Info("recording aborted")
}
