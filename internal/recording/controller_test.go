package recording

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/airchord/internal/media"
)

type fakePrimitive struct {
	mimeType string
	events   Events
	startErr error
	started  bool
	stopped  bool
}

func (p *fakePrimitive) Start() error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	return nil
}

func (p *fakePrimitive) Stop() error {
	p.stopped = true
	return nil
}

func (p *fakePrimitive) MimeType() string { return p.mimeType }

type fakeFactory struct {
	mu        sync.Mutex
	supported map[string]bool
	failFirst bool
	failAll   bool
	// startFailures primitives fail to start before one succeeds.
	startFailures int
	requests      []Options
	last      *fakePrimitive
}

func (f *fakeFactory) IsTypeSupported(mimeType string) bool {
	return f.supported[mimeType]
}

func (f *fakeFactory) New(stream *media.Stream, opts Options, events Events) (Primitive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, opts)
	if f.failAll || (f.failFirst && len(f.requests) == 1) {
		return nil, errors.New("cannot construct")
	}
	mimeType := opts.MimeType
	if mimeType == "" {
		mimeType = "video/webm"
	}
	f.last = &fakePrimitive{mimeType: mimeType, events: events}
	if f.startFailures > 0 {
		f.startFailures--
		f.last.startErr = errors.New("exec failed")
	}
	return f.last, nil
}

func testStream() *media.Stream {
	return media.NewStream(
		media.NewDeviceTrack(media.Video, "camera", media.Input{Device: "/dev/video0"}, nil),
		media.NewDeviceTrack(media.Audio, "synth", media.Input{Device: "monitor"}, nil),
	)
}

func newTestController(f *fakeFactory) (*Controller, *[]*Artifact) {
	var artifacts []*Artifact
	c := NewController(ControllerConfig{
		Factory:    f,
		OnArtifact: func(a *Artifact) { artifacts = append(artifacts, a) },
		Now:        func() time.Time { return time.Date(2026, 10, 19, 14, 3, 5, 0, time.UTC) },
	})
	return c, &artifacts
}

func TestController_RecordAndStop(t *testing.T) {
	f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}}
	c, artifacts := newTestController(f)

	if err := c.Start(testStream()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if c.Status() != StatusRecording {
		t.Fatalf("Status() = %s, want recording", c.Status())
	}
	if !f.last.started {
		t.Error("primitive not started")
	}

	f.last.events.OnData([]byte("ab"))
	f.last.events.OnData(nil)
	f.last.events.OnData([]byte("cd"))

	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if c.Status() != StatusFinalizing {
		t.Errorf("Status() = %s, want finalizing", c.Status())
	}
	if c.Artifact() != nil {
		t.Error("artifact should not exist before finalization")
	}

	f.last.events.OnData([]byte("ef"))
	f.last.events.OnStop()

	a := c.Artifact()
	if a == nil {
		t.Fatal("expected artifact after stop")
	}
	if string(a.Data) != "abcdef" {
		t.Errorf("Data = %q, want abcdef", a.Data)
	}
	if a.MimeType != DefaultMimeType {
		t.Errorf("MimeType = %q, want %q", a.MimeType, DefaultMimeType)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %s, want idle", c.Status())
	}
	if len(*artifacts) != 1 {
		t.Errorf("OnArtifact called %d times, want 1", len(*artifacts))
	}
}

func TestController_StartRejections(t *testing.T) {
	t.Run("already recording", func(t *testing.T) {
		f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}}
		c, _ := newTestController(f)
		_ = c.Start(testStream())

		if err := c.Start(testStream()); !errors.Is(err, ErrAlreadyRecording) {
			t.Errorf("second Start() error = %v, want ErrAlreadyRecording", err)
		}
		if len(f.requests) != 1 {
			t.Errorf("second start must not build a primitive")
		}
	})

	t.Run("no source", func(t *testing.T) {
		c, _ := newTestController(&fakeFactory{})
		if err := c.Start(nil); !errors.Is(err, ErrNoSource) {
			t.Errorf("Start(nil) error = %v, want ErrNoSource", err)
		}
		if err := c.Start(media.NewStream()); !errors.Is(err, ErrNoSource) {
			t.Errorf("Start(empty) error = %v, want ErrNoSource", err)
		}
	})

	t.Run("unsupported after fallback", func(t *testing.T) {
		f := &fakeFactory{failAll: true}
		c, _ := newTestController(f)
		if err := c.Start(testStream()); !errors.Is(err, ErrUnsupported) {
			t.Errorf("Start() error = %v, want ErrUnsupported", err)
		}
		if len(f.requests) != 2 {
			t.Errorf("expected exactly one fallback attempt, got %d requests", len(f.requests))
		}
		if c.Status() != StatusIdle {
			t.Errorf("Status() = %s, want idle", c.Status())
		}
	})
}

func TestController_MimeNegotiation(t *testing.T) {
	t.Run("preferred unsupported uses fallback type", func(t *testing.T) {
		f := &fakeFactory{supported: map[string]bool{}}
		c, _ := newTestController(f)
		_ = c.Start(testStream())

		if f.requests[0].MimeType != FallbackMimeType {
			t.Errorf("requested %q, want %q", f.requests[0].MimeType, FallbackMimeType)
		}
	})

	t.Run("construction failure retries with empty options", func(t *testing.T) {
		f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}, failFirst: true}
		c, _ := newTestController(f)
		if err := c.Start(testStream()); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if len(f.requests) != 2 || f.requests[1].MimeType != "" {
			t.Errorf("expected retry with empty options, got %+v", f.requests)
		}

		f.last.events.OnStop()
		_ = c.Stop()
	})
}

func TestController_StopWhenIdleKeepsArtifact(t *testing.T) {
	f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}}
	c, _ := newTestController(f)

	if err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop() error = %v, want ErrNotRecording", err)
	}

	_ = c.Start(testStream())
	f.last.events.OnData([]byte("x"))
	_ = c.Stop()
	f.last.events.OnStop()
	before := c.Artifact()

	if err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop() error = %v, want ErrNotRecording", err)
	}
	if c.Artifact() != before {
		t.Error("idle Stop must not alter the artifact")
	}
}

func TestController_RuntimeError(t *testing.T) {
	f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}}
	var reported error
	c := NewController(ControllerConfig{Factory: f, OnError: func(err error) { reported = err }})

	_ = c.Start(testStream())
	f.last.events.OnData([]byte("partial"))
	f.last.events.OnError(errors.New("encoder crashed"))

	if c.Status() != StatusIdle {
		t.Errorf("Status() = %s, want idle", c.Status())
	}
	if c.Artifact() != nil {
		t.Error("no partial artifact should be produced")
	}
	if c.Err() == nil || reported == nil {
		t.Error("error should be surfaced")
	}

	// A late stop from the dead session is ignored.
	f.last.events.OnStop()
	if c.Artifact() != nil {
		t.Error("stale OnStop must not create an artifact")
	}
}

func TestController_NewSessionClearsPrevious(t *testing.T) {
	f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}}
	c, _ := newTestController(f)

	_ = c.Start(testStream())
	first := f.last
	first.events.OnData([]byte("old"))
	_ = c.Stop()
	first.events.OnStop()

	if err := c.Start(testStream()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if c.Artifact() != nil {
		t.Error("start should clear the previous artifact")
	}

	first.events.OnData([]byte("stale"))
	f.last.events.OnData([]byte("new"))
	_ = c.Stop()
	f.last.events.OnStop()

	if got := string(c.Artifact().Data); got != "new" {
		t.Errorf("Data = %q, want only the new session's chunks", got)
	}
}

func TestController_Abort(t *testing.T) {
	f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}}
	c, artifacts := newTestController(f)

	c.Abort()

	_ = c.Start(testStream())
	f.last.events.OnData([]byte("x"))
	c.Abort()

	if !f.last.stopped {
		t.Error("Abort should stop the primitive")
	}
	f.last.events.OnStop()
	if c.Artifact() != nil || len(*artifacts) != 0 {
		t.Error("aborted recording must not produce an artifact")
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %s, want idle", c.Status())
	}
}

func TestController_StartFailure(t *testing.T) {
	c, _ := newTestController(nil)
	c.cfg.Factory = failingStartFactory{}

	if err := c.Start(testStream()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("Start() error = %v, want ErrUnsupported", err)
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %s, want idle", c.Status())
	}
}

type failingStartFactory struct{}

func (failingStartFactory) IsTypeSupported(string) bool { return true }

func (failingStartFactory) New(stream *media.Stream, opts Options, events Events) (Primitive, error) {
	return &fakePrimitive{mimeType: opts.MimeType, startErr: errors.New("exec failed")}, nil
}

func TestController_StartFailureKeepsArtifact(t *testing.T) {
	f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}}
	c, _ := newTestController(f)

	_ = c.Start(testStream())
	f.last.events.OnData([]byte("take one"))
	_ = c.Stop()
	f.last.events.OnStop()
	before := c.Artifact()
	if before == nil {
		t.Fatal("expected artifact after stop")
	}

	f.startFailures = 2
	if err := c.Start(testStream()); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Start() error = %v, want ErrUnsupported", err)
	}
	if len(f.requests) != 3 || f.requests[2].MimeType != "" {
		t.Errorf("expected one retry with empty options, got %+v", f.requests)
	}
	if c.Artifact() != before {
		t.Error("failed start must keep the previous artifact")
	}
	if c.Status() != StatusIdle {
		t.Errorf("Status() = %s, want idle", c.Status())
	}
}

func TestController_StartFailureRetries(t *testing.T) {
	f := &fakeFactory{supported: map[string]bool{DefaultMimeType: true}, startFailures: 1}
	c, _ := newTestController(f)

	if err := c.Start(testStream()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(f.requests) != 2 || f.requests[1].MimeType != "" {
		t.Errorf("expected retry with empty options, got %+v", f.requests)
	}
	if !f.last.started || c.Status() != StatusRecording {
		t.Errorf("retry should be recording, status %s", c.Status())
	}

	f.last.events.OnData([]byte("x"))
	_ = c.Stop()
	f.last.events.OnStop()
	if a := c.Artifact(); a == nil || a.MimeType != "video/webm" {
		t.Errorf("Artifact() = %+v, want the retried primitive's type", a)
	}
}
