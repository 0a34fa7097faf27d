// Package app runs an airchord session: it acquires the camera, drives the
// hand detector at a fixed cadence, turns finger edges into chords and
// composes the sources that a recording captures.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/capture"
	"github.com/ayusman/airchord/internal/config"
	"github.com/ayusman/airchord/internal/detector"
	"github.com/ayusman/airchord/internal/gesture"
	"github.com/ayusman/airchord/internal/media"
	"github.com/ayusman/airchord/internal/recording"
	"github.com/ayusman/airchord/internal/store"
	"github.com/ayusman/airchord/internal/voice"
)

// Synth is the synthesis backend a session plays through. Stream exposes
// its output as a capturable source; it may fail when the output cannot be
// captured.
type Synth interface {
	voice.Synth
	Stream() (*media.Stream, error)
}

// Config holds configuration options for the session.
type Config struct {
	Settings config.Config
	Camera   capture.Camera
	// NewDetector builds the hand detector on each Setup.
	NewDetector func() (detector.Detector, error)
	Synth       Synth
	// Recorder builds capture primitives. Nil disables recording.
	Recorder recording.Factory
	// Store keeps the latest artifact across restarts. Optional.
	Store    *store.Store
	Clock    voice.Clock
	LookPath func(string) (string, error)
	Logger   *zap.Logger
}

// Session is one camera-to-chord tracking session.
type Session struct {
	cfg      Config
	logger   *zap.Logger
	sustain  time.Duration
	acquirer *capture.Acquirer
	composer *media.Composer
	voices   *voice.Manager
	tracker  *gesture.Tracker
	recorder *recording.Controller

	// frameMu serializes frame processing against teardown.
	frameMu sync.Mutex

	mu           sync.Mutex
	det          detector.Detector
	video        *media.Stream
	streams      []*media.Stream
	ready        bool
	audioEnabled bool
	message      string
	offset       int
	hands        int
	readErrs     int
	cancel       context.CancelFunc
	done         chan struct{}

	subMu sync.Mutex
	subs  map[chan Event]struct{}
}

// New creates a Session. Nothing is acquired until Setup.
func New(cfg Config) (*Session, error) {
	if cfg.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = voice.SystemClock()
	}

	chords, err := gesture.ChordsFromMap(cfg.Settings.Chords)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	pitch := gesture.PitchControl{
		Top:       cfg.Settings.Pitch.BandTop,
		Bottom:    cfg.Settings.Pitch.BandBottom,
		MaxOffset: cfg.Settings.Pitch.MaxOffset,
	}

	s := &Session{
		cfg:     cfg,
		logger:  cfg.Logger,
		sustain: cfg.Settings.Sustain(),
		acquirer: capture.NewAcquirer(capture.AcquirerConfig{
			Camera: cfg.Camera,
			Microphone: capture.MicrophoneConfig{
				Enabled: cfg.Settings.Microphone.Enabled,
				Format:  cfg.Settings.Microphone.Format,
				Device:  cfg.Settings.Microphone.Device,
			},
			Encoder:  cfg.Settings.Recording.FFmpeg,
			LookPath: cfg.LookPath,
			Logger:   cfg.Logger.Named("capture"),
		}),
		composer: media.NewComposer(media.ComposerConfig{Logger: cfg.Logger.Named("composer")}),
		tracker:  gesture.NewTracker(chords, pitch),
		subs:     make(map[chan Event]struct{}),
	}
	if cfg.Synth != nil {
		s.voices = voice.NewManager(voice.Config{
			Synth:  cfg.Synth,
			Clock:  cfg.Clock,
			Logger: cfg.Logger.Named("voice"),
		})
	}
	if cfg.Recorder != nil && cfg.Settings.Recording.Enabled {
		s.recorder = recording.NewController(recording.ControllerConfig{
			Factory:          cfg.Recorder,
			MimeType:         cfg.Settings.Recording.MimeType,
			FallbackMimeType: cfg.Settings.Recording.FallbackMimeType,
			OnArtifact:       s.onArtifact,
			OnError:          s.onRecordingError,
			Logger:           cfg.Logger.Named("recording"),
		})
	}

	s.composer.Subscribe(func(composite *media.Stream, reason media.Reason) {
		s.publish(Event{Type: EventComposite, Composite: composite != nil, Reason: string(reason)})
	})

	return s, nil
}

// Tap returns the frame tap carrying encoded camera frames.
func (s *Session) Tap() *capture.FrameTap {
	return s.acquirer.Tap()
}

// Setup acquires the detector, camera, synthesizer output and microphone and
// starts the frame loop. A detector failure disables tracking but keeps the
// preview and recording; a camera failure is returned. Setup on a running
// session is a no-op.
func (s *Session) Setup(ctx context.Context) error {
	s.mu.Lock()
	if s.ready {
		s.mu.Unlock()
		return nil
	}
	s.message = ""
	s.mu.Unlock()

	s.logger.Info("session setup")

	if s.cfg.NewDetector != nil {
		det, err := s.cfg.NewDetector()
		if err != nil {
			s.logger.Warn("hand tracking unavailable", zap.Error(err))
			s.setMessage(fmt.Errorf("%w: %v", ErrTracking, err))
		} else {
			s.mu.Lock()
			s.det = det
			s.mu.Unlock()
		}
	}

	video, err := s.acquirer.Camera(ctx)
	if err != nil {
		s.logger.Error("camera unavailable", zap.Error(err))
		s.setMessage(err)
		return fmt.Errorf("acquire camera: %w", err)
	}
	s.addStream(video)
	s.mu.Lock()
	s.video = video
	s.mu.Unlock()
	s.composer.SetVideo(video)

	if s.cfg.Synth != nil {
		out, err := s.cfg.Synth.Stream()
		if err != nil {
			s.logger.Info("synth output not capturable", zap.Error(err))
		} else {
			s.addStream(out)
			s.composer.SetSynth(out)
		}
	}

	mic, err := s.acquirer.Microphone(ctx)
	switch {
	case errors.Is(err, capture.ErrMicrophoneDisabled):
	case err != nil:
		s.logger.Warn("microphone unavailable", zap.Error(err))
		s.setMessage(err)
	default:
		s.addStream(mic)
		s.composer.SetMicrophone(mic)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.ready = true
	s.readErrs = 0
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.Run(loopCtx)
	}()

	s.logger.Info("session ready", zap.Duration("frame_interval", s.cfg.Settings.FrameInterval()))
	s.publishStatus()
	return nil
}

// Teardown stops the frame loop, closes the detector, silences every voice,
// aborts a recording in progress, stops all acquired tracks and resets the
// session state. It is idempotent and safe after a partial Setup.
func (s *Session) Teardown() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	s.mu.Lock()
	det := s.det
	streams := s.streams
	s.det = nil
	s.video = nil
	s.streams = nil
	s.mu.Unlock()

	if det != nil {
		if err := det.Close(); err != nil {
			s.logger.Warn("detector close failed", zap.Error(err))
		}
	}
	if s.voices != nil {
		s.voices.StopAll()
	}
	if s.recorder != nil {
		s.recorder.Abort()
	}
	for _, st := range streams {
		st.Stop()
	}
	s.composer.Reset()
	s.tracker.Reset()

	s.mu.Lock()
	wasReady := s.ready
	s.ready = false
	s.offset = 0
	s.hands = 0
	s.readErrs = 0
	s.mu.Unlock()

	if wasReady {
		s.logger.Info("session torn down")
		s.publishStatus()
	}
}

// EnableAudio opens the gate that lets finger triggers reach the
// synthesizer. Edges seen before it is called only update finger state.
func (s *Session) EnableAudio() error {
	if s.voices == nil {
		err := fmt.Errorf("%w: no synthesizer configured", ErrAudio)
		s.setMessage(err)
		return err
	}

	s.mu.Lock()
	already := s.audioEnabled
	s.audioEnabled = true
	s.mu.Unlock()

	if !already {
		s.logger.Info("audio enabled")
		s.clearMessage()
		s.publishStatus()
	}
	return nil
}

// StartRecording records the current composite source.
func (s *Session) StartRecording() error {
	if s.recorder == nil {
		return fmt.Errorf("%w: recording disabled", recording.ErrUnsupported)
	}
	composite := s.composer.Composite()
	if composite == nil {
		s.logger.Warn("nothing to record", zap.String("reason", string(s.composer.Reason())))
	}
	if err := s.recorder.Start(composite); err != nil {
		s.setMessage(err)
		return err
	}
	// A degraded composite records synth audio only.
	if err := s.composer.Err(); err != nil {
		s.setMessage(err)
	} else {
		s.clearMessage()
	}
	s.publish(Event{Type: EventRecording, Recording: string(s.recorder.Status())})
	return nil
}

// StopRecording finalizes the current recording. The artifact becomes
// available once the capture primitive has flushed.
func (s *Session) StopRecording() error {
	if s.recorder == nil {
		return recording.ErrNotRecording
	}
	if err := s.recorder.Stop(); err != nil {
		return err
	}
	s.publish(Event{Type: EventRecording, Recording: string(s.recorder.Status())})
	return nil
}

// Artifact returns the latest recording. It falls back to the store when
// this process has not produced one.
func (s *Session) Artifact() (*recording.Artifact, error) {
	if s.recorder != nil {
		if a := s.recorder.Artifact(); a != nil {
			return a, nil
		}
	}
	if s.cfg.Store == nil {
		return nil, store.ErrNotFound
	}
	a, err := s.cfg.Store.Artifacts().Latest()
	if err != nil {
		return nil, err
	}
	return &recording.Artifact{
		ID:        a.ID,
		MimeType:  a.MimeType,
		Data:      a.Data,
		Size:      len(a.Data),
		CreatedAt: a.CreatedAt,
	}, nil
}

func (s *Session) onArtifact(a *recording.Artifact) {
	if s.cfg.Store != nil {
		err := s.cfg.Store.Artifacts().Save(&store.Artifact{
			ID:        a.ID,
			MimeType:  a.MimeType,
			Data:      a.Data,
			CreatedAt: a.CreatedAt,
		})
		if err != nil {
			s.logger.Error("save artifact", zap.Error(err))
		}
	}
	s.publish(Event{Type: EventRecording, Recording: string(recording.StatusIdle), Artifact: a.ID})
}

func (s *Session) onRecordingError(err error) {
	s.setMessage(fmt.Errorf("%w: %v", ErrRecordingFailed, err))
	s.publish(Event{Type: EventRecording, Recording: string(recording.StatusIdle), Message: StatusMessage(ErrRecordingFailed)})
}

func (s *Session) addStream(st *media.Stream) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, st)
}

func (s *Session) currentDetector() detector.Detector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.det
}

func (s *Session) setMessage(err error) {
	msg := StatusMessage(err)
	s.mu.Lock()
	changed := s.message != msg
	s.message = msg
	s.mu.Unlock()
	if changed {
		s.publish(Event{Type: EventStatus, Message: msg})
	}
}

func (s *Session) clearMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = ""
}
