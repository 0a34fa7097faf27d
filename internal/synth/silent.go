package synth

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ayusman/airchord/internal/media"
)

// Silent is a synthesizer without an output device. It logs attacks and
// releases and keeps the gesture pipeline running when no MIDI port exists.
type Silent struct {
	mu       sync.Mutex
	logger   *zap.Logger
	monitor  media.Input
	sounding map[float64]int
}

// NewSilent creates a Silent synth. monitor may name a device carrying audio
// from an external synthesizer; leave it empty for none.
func NewSilent(monitor media.Input, logger *zap.Logger) *Silent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Silent{
		logger:   logger,
		monitor:  monitor,
		sounding: make(map[float64]int),
	}
}

func (s *Silent) Attack(freqs []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range freqs {
		s.sounding[f]++
	}
	s.logger.Debug("silent attack", zap.Float64s("frequencies", freqs))
	return nil
}

func (s *Silent) Release(freqs []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range freqs {
		if s.sounding[f] <= 1 {
			delete(s.sounding, f)
			continue
		}
		s.sounding[f]--
	}
	s.logger.Debug("silent release", zap.Float64s("frequencies", freqs))
	return nil
}

// Sounding returns how many distinct frequencies are held.
func (s *Silent) Sounding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sounding)
}

func (s *Silent) Stream() (*media.Stream, error) {
	return monitorStream(s.monitor)
}

func (s *Silent) Close() error {
	return nil
}
