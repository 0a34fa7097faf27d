// Package synth provides synthesizer backends for chord playback.
package synth

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/media"
)

var (
	// ErrPortNotFound is returned when no MIDI output matches the requested name.
	ErrPortNotFound = errors.New("midi output port not found")
	// ErrNoMonitor is returned by Stream when no monitor device is configured.
	ErrNoMonitor = errors.New("synth output is not capturable")
)

// FrequencyToNote returns the MIDI note nearest to freq, clamped to 0..127.
func FrequencyToNote(freq float64) uint8 {
	if freq <= 0 {
		return 0
	}
	n := math.Floor(69 + 12*math.Log2(freq/440) + 0.5)
	return uint8(math.Max(0, math.Min(127, n)))
}

// MIDIConfig configures a MIDI synthesizer.
type MIDIConfig struct {
	Channel  uint8 // 0-based
	Velocity uint8
	// Monitor names the device an encoder reads to capture the synthesizer's
	// audio output, e.g. a PulseAudio monitor source.
	Monitor media.Input
	Logger  *zap.Logger
}

// MIDI plays chords on a MIDI output port. Notes shared by several chords
// are reference counted so releasing one chord does not cut another.
type MIDI struct {
	mu      sync.Mutex
	out     drivers.Out
	channel uint8
	vel     uint8
	monitor media.Input
	logger  *zap.Logger
	refs    map[uint8]int
	closed  bool
}

// NewMIDI opens out and returns a synthesizer sending to it.
func NewMIDI(out drivers.Out, cfg MIDIConfig) (*MIDI, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Velocity == 0 {
		cfg.Velocity = 100
	}
	if !out.IsOpen() {
		if err := out.Open(); err != nil {
			return nil, fmt.Errorf("open midi port %q: %w", out.String(), err)
		}
	}
	cfg.Logger.Info("midi output opened", zap.String("port", out.String()))
	return &MIDI{
		out:     out,
		channel: cfg.Channel,
		vel:     cfg.Velocity,
		monitor: cfg.Monitor,
		logger:  cfg.Logger,
		refs:    make(map[uint8]int),
	}, nil
}

// Attack starts every frequency as a note-on. It is all or nothing: when a
// note-on fails, the notes this call acquired are released again.
func (m *MIDI) Attack(freqs []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("midi synth closed")
	}

	acquired := make([]uint8, 0, len(freqs))
	for _, f := range freqs {
		note := FrequencyToNote(f)
		if m.refs[note] == 0 {
			if err := m.out.Send(midi.NoteOn(m.channel, note, m.vel)); err != nil {
				m.unwind(acquired)
				return fmt.Errorf("note on %d: %w", note, err)
			}
		}
		m.refs[note]++
		acquired = append(acquired, note)
	}
	return nil
}

// unwind drops one reference per note, silencing notes nothing else holds.
// It must be called with mu held.
func (m *MIDI) unwind(notes []uint8) {
	for _, note := range notes {
		m.refs[note]--
		if m.refs[note] > 0 {
			continue
		}
		delete(m.refs, note)
		if err := m.out.Send(midi.NoteOff(m.channel, note)); err != nil {
			m.logger.Warn("note off after failed attack", zap.Uint8("note", note), zap.Error(err))
		}
	}
}

// Release sends note-off for frequencies no other chord still holds.
func (m *MIDI) Release(freqs []float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}

	for _, f := range freqs {
		note := FrequencyToNote(f)
		if m.refs[note] == 0 {
			continue
		}
		m.refs[note]--
		if m.refs[note] > 0 {
			continue
		}
		delete(m.refs, note)
		if err := m.out.Send(midi.NoteOff(m.channel, note)); err != nil {
			return fmt.Errorf("note off %d: %w", note, err)
		}
	}
	return nil
}

// Sounding returns how many distinct notes are on.
func (m *MIDI) Sounding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refs)
}

// Stream exposes the synthesizer output as a capturable audio stream read
// from the configured monitor device.
func (m *MIDI) Stream() (*media.Stream, error) {
	return monitorStream(m.monitor)
}

// Close silences every sounding note and closes the port.
func (m *MIDI) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	for note := range m.refs {
		_ = m.out.Send(midi.NoteOff(m.channel, note))
	}
	m.refs = nil
	return m.out.Close()
}

// SelectPort picks the output whose name contains name (case-insensitive),
// or the first output when name is empty.
func SelectPort(outs []drivers.Out, name string) (drivers.Out, error) {
	if len(outs) == 0 {
		return nil, ErrPortNotFound
	}
	if name == "" {
		return outs[0], nil
	}
	want := strings.ToLower(name)
	for _, out := range outs {
		if strings.Contains(strings.ToLower(out.String()), want) {
			return out, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

// PortNames lists output port names.
func PortNames(outs []drivers.Out) []string {
	names := make([]string, 0, len(outs))
	for _, out := range outs {
		names = append(names, out.String())
	}
	return names
}

func monitorStream(in media.Input) (*media.Stream, error) {
	if in.Device == "" {
		return nil, ErrNoMonitor
	}
	return media.NewStream(media.NewDeviceTrack(media.Audio, "synth", in, nil)), nil
}
