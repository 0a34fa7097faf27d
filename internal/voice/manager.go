// Package voice owns the currently-sounding chords and drives attack and
// release on the synthesizer.
package voice

import (
	"math"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/gesture"
)

// Audible band; frequencies outside (MinFrequency, MaxFrequency) are dropped.
const (
	MinFrequency = 0.0
	MaxFrequency = 20000.0
)

// Synth is the synthesis capability. Attack starts every frequency at once;
// Release stops them.
type Synth interface {
	Attack(freqs []float64) error
	Release(freqs []float64) error
}

// MIDIToFrequency converts a MIDI note number to Hz using equal temperament
// with A4 (69) at 440 Hz.
func MIDIToFrequency(note int) float64 {
	return 440 * math.Pow(2, float64(note-69)/12)
}

// Frequencies pitches notes by offset semitones and drops anything outside
// the audible band.
func Frequencies(notes []int, offset int) []float64 {
	freqs := make([]float64, 0, len(notes))
	for _, n := range notes {
		f := MIDIToFrequency(n + offset)
		if f > MinFrequency && f < MaxFrequency {
			freqs = append(freqs, f)
		}
	}
	return freqs
}

type voice struct {
	freqs []float64
	gen   uint64
	timer Timer
}

// Voice is a snapshot of one sounding chord.
type Voice struct {
	Key         gesture.Key `json:"key"`
	Frequencies []float64   `json:"frequencies"`
	Releasing   bool        `json:"releasing"`
}

// Config holds Manager dependencies.
type Config struct {
	Synth  Synth
	Clock  Clock       // defaults to SystemClock
	Logger *zap.Logger // defaults to a no-op logger
}

// Manager keeps at most one voice per gesture key. All methods are safe for
// concurrent use; release timers fire on their own goroutines.
type Manager struct {
	mu     sync.Mutex
	synth  Synth
	clock  Clock
	logger *zap.Logger
	voices map[gesture.Key]*voice
	gen    uint64
}

// NewManager creates a Manager.
func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Manager{
		synth:  cfg.Synth,
		clock:  cfg.Clock,
		logger: cfg.Logger,
		voices: make(map[gesture.Key]*voice),
	}
}

// Trigger sounds notes shifted by offset for key and returns the frequencies
// attacked. A pending release for key is cancelled first. If key already
// sounds, its old frequencies are released before the new attack. When no
// frequency survives the audible-band filter nothing is attacked and any
// existing voice for key is released.
func (m *Manager) Trigger(key gesture.Key, notes []int, offset int) []float64 {
	freqs := Frequencies(notes, offset)

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.voices[key]; ok {
		if v.timer != nil {
			v.timer.Stop()
			v.timer = nil
		}
		m.release(key, v.freqs)
		delete(m.voices, key)
	}

	if len(freqs) == 0 {
		m.logger.Debug("no audible frequencies", zap.Stringer("key", key), zap.Int("offset", offset))
		return nil
	}

	if err := m.synth.Attack(freqs); err != nil {
		m.logger.Warn("attack failed", zap.Stringer("key", key), zap.Error(err))
		return nil
	}

	m.gen++
	m.voices[key] = &voice{freqs: freqs, gen: m.gen}
	m.logger.Debug("attack",
		zap.Stringer("key", key),
		zap.Int("offset", offset),
		zap.Float64s("frequencies", freqs),
	)
	return freqs
}

// ScheduleRelease releases key's voice after sustain. It is a no-op when key
// has no voice or a release is already pending.
func (m *Manager) ScheduleRelease(key gesture.Key, sustain time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.voices[key]
	if !ok || v.timer != nil {
		return
	}

	gen := v.gen
	v.timer = m.clock.AfterFunc(sustain, func() {
		m.expire(key, gen)
	})
}

// expire runs on the timer goroutine. The generation check drops a timer
// whose voice was replaced after it was scheduled.
func (m *Manager) expire(key gesture.Key, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.voices[key]
	if !ok || v.gen != gen {
		return
	}
	m.release(key, v.freqs)
	delete(m.voices, key)
}

// StopAll cancels every pending release and releases every voice now.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, v := range m.voices {
		if v.timer != nil {
			v.timer.Stop()
		}
		m.release(key, v.freqs)
	}
	if len(m.voices) > 0 {
		m.logger.Debug("stopped all voices", zap.Int("count", len(m.voices)))
	}
	m.voices = make(map[gesture.Key]*voice)
}

// Active returns the sounding voices ordered by key.
func (m *Manager) Active() []Voice {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Voice, 0, len(m.voices))
	for key, v := range m.voices {
		out = append(out, Voice{
			Key:         key,
			Frequencies: append([]float64(nil), v.freqs...),
			Releasing:   v.timer != nil,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Hand != out[j].Key.Hand {
			return out[i].Key.Hand < out[j].Key.Hand
		}
		return out[i].Key.Finger < out[j].Key.Finger
	})
	return out
}

// Len returns the number of sounding voices.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.voices)
}

// release must be called with mu held.
func (m *Manager) release(key gesture.Key, freqs []float64) {
	if err := m.synth.Release(freqs); err != nil {
		m.logger.Warn("release failed", zap.Stringer("key", key), zap.Error(err))
		return
	}
	m.logger.Debug("release", zap.Stringer("key", key))
}
