package media

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrComposition is returned when sources cannot be combined.
var ErrComposition = errors.New("stream composition failed")

// Mixer combines the audio tracks of two streams into one stream.
type Mixer interface {
	Mix(a, b *Stream) (*Stream, error)
}

// FilterMixer mixes by describing a mixed track whose sources an encoder
// combines with an audio filter. Every source must be addressable.
type FilterMixer struct{}

// Mix returns a stream holding one audio track mixed from the live audio
// tracks of a and b.
func (FilterMixer) Mix(a, b *Stream) (*Stream, error) {
	sources := append(a.AudioTracks(), b.AudioTracks()...)
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no audio tracks", ErrComposition)
	}
	for _, t := range sources {
		if !t.Addressable() {
			return nil, fmt.Errorf("%w: track %q has no readable input", ErrComposition, t.Label)
		}
	}
	mixed := &Track{
		ID:      uuid.New().String(),
		Kind:    Audio,
		Label:   "mix",
		Sources: sources,
	}
	return NewStream(mixed), nil
}

// Reason explains why the composite is absent or degraded.
type Reason string

// Composition reasons. ReasonNone means the composite holds every source.
const (
	ReasonNone         Reason = ""
	ReasonMissingVideo Reason = "missing video"
	ReasonMissingAudio Reason = "missing audio"
	ReasonCombination  Reason = "combination error"
)

// ComposerConfig holds Composer dependencies.
type ComposerConfig struct {
	Mixer  Mixer // defaults to FilterMixer
	Logger *zap.Logger
}

// Composer holds the video, synthesizer and microphone source slots and
// recomputes the combined audio and composite stream whenever one changes.
type Composer struct {
	mu     sync.Mutex
	mixer  Mixer
	logger *zap.Logger

	video *Stream
	synth *Stream
	mic   *Stream

	composite *Stream
	reason    Reason
	err       error

	subscribers []func(*Stream, Reason)
}

// NewComposer creates a Composer with every slot empty.
func NewComposer(cfg ComposerConfig) *Composer {
	if cfg.Mixer == nil {
		cfg.Mixer = FilterMixer{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &Composer{mixer: cfg.Mixer, logger: cfg.Logger}
	c.recompute()
	return c
}

// SetVideo replaces the video source. nil clears the slot.
func (c *Composer) SetVideo(s *Stream) {
	c.update(func() { c.video = s })
}

// SetSynth replaces the synthesized audio source. nil clears the slot.
func (c *Composer) SetSynth(s *Stream) {
	c.update(func() { c.synth = s })
}

// SetMicrophone replaces the microphone source. nil clears the slot.
func (c *Composer) SetMicrophone(s *Stream) {
	c.update(func() { c.mic = s })
}

// Refresh recomputes after a track in a held stream ended.
func (c *Composer) Refresh() {
	c.update(func() {})
}

func (c *Composer) update(set func()) {
	c.mu.Lock()
	set()
	c.recompute()
	composite, reason := c.composite, c.reason
	subs := append([]func(*Stream, Reason){}, c.subscribers...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(composite, reason)
	}
}

// recompute rebuilds the combined audio and composite from the slots. It
// must be called with mu held.
func (c *Composer) recompute() {
	c.err = nil

	synthOK := len(c.synth.AudioTracks()) > 0
	micOK := len(c.mic.AudioTracks()) > 0

	var audio *Stream
	switch {
	case synthOK && micOK:
		mixed, err := c.mixer.Mix(c.synth, c.mic)
		if err != nil {
			c.err = err
			c.logger.Warn("audio mix failed, using synthesizer only", zap.Error(err))
			audio = c.synth
		} else {
			audio = mixed
		}
	case synthOK:
		audio = c.synth
	case micOK:
		audio = c.mic
	}

	videoTracks := c.video.VideoTracks()
	audioTracks := audio.AudioTracks()

	switch {
	case len(videoTracks) == 0:
		c.composite = nil
		c.reason = ReasonMissingVideo
	case len(audioTracks) == 0:
		c.composite = nil
		c.reason = ReasonMissingAudio
	default:
		tracks := append([]*Track{videoTracks[0]}, audioTracks...)
		c.composite = NewStream(tracks...)
		c.reason = ReasonNone
		if c.err != nil {
			c.reason = ReasonCombination
		}
	}

	c.logger.Debug("composition updated",
		zap.Bool("composite", c.composite != nil),
		zap.String("reason", string(c.reason)),
	)
}

// Composite returns the recordable stream, or nil when video or audio is
// missing.
func (c *Composer) Composite() *Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composite
}

// Reason returns why the composite is absent (missing video or audio) or
// degraded (combination error). It is ReasonNone for a full composite.
func (c *Composer) Reason() Reason {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

// Err returns the last mixing error, if any.
func (c *Composer) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Subscribe registers fn to be called after every recomputation.
func (c *Composer) Subscribe(fn func(composite *Stream, reason Reason)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}

// Reset empties every slot without stopping the held streams.
func (c *Composer) Reset() {
	c.update(func() {
		c.video, c.synth, c.mic = nil, nil, nil
	})
}
