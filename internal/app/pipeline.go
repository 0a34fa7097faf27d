package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/ayusman/airchord/internal/detector"
	"github.com/ayusman/airchord/internal/gesture"
)

// Run is the frame loop. On every tick it reads the newest camera frame,
// publishes it to the frame tap when anyone listens, runs the detector and
// routes the hands into ProcessHands. Frames that arrive between ticks are
// never queued; the camera is simply read again on the next tick. Run
// returns when ctx is done.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Settings.FrameInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step()
		}
	}
}

func (s *Session) step() {
	frame, err := s.cfg.Camera.ReadFrame()
	if err != nil {
		s.readFailed(err)
		return
	}
	defer frame.Close()
	s.readSucceeded()

	tap := s.acquirer.Tap()
	if tap.HasSubscribers() {
		buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
		if err != nil {
			s.logger.Debug("encode frame", zap.Error(err))
		} else {
			// The native buffer is released below; subscribers get a copy.
			data := append([]byte(nil), buf.GetBytes()...)
			buf.Close()
			tap.Publish(data)
		}
	}

	det := s.currentDetector()
	if det == nil {
		return
	}
	hands, err := det.Detect(frame)
	if err != nil {
		s.logger.Warn("detect hands", zap.Error(err))
		return
	}
	s.ProcessHands(hands)
}

// readFailed treats about a second of failed reads as a lost camera: the
// video track is ended, which drops the composite, and a status message is
// surfaced. A new Setup reacquires the camera.
func (s *Session) readFailed(err error) {
	s.mu.Lock()
	s.readErrs++
	n := s.readErrs
	video := s.video
	if n == s.cfg.Settings.FrameRate {
		s.video = nil
	}
	s.mu.Unlock()

	s.logger.Debug("read frame", zap.Error(err))
	if n != s.cfg.Settings.FrameRate {
		return
	}
	s.logger.Warn("camera stopped delivering frames", zap.Error(err))
	if video != nil {
		video.Stop()
		s.composer.Refresh()
	}
	s.setMessage(errors.Join(ErrVideoStream, err))
}

func (s *Session) readSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErrs = 0
}

// ProcessHands runs one frame's hand observations through the tracker and
// applies the resulting edges to the voice manager. Triggers only sound
// once audio is enabled; finger state is tracked either way.
func (s *Session) ProcessHands(hands []detector.HandLandmarks) {
	s.frameMu.Lock()
	defer s.frameMu.Unlock()

	events := s.tracker.Process(hands)
	offset := s.tracker.PitchOffset()

	s.mu.Lock()
	enabled := s.audioEnabled
	changed := s.offset != offset || s.hands != len(hands)
	s.offset = offset
	s.hands = len(hands)
	s.mu.Unlock()

	for _, ev := range events {
		out := Event{Type: ev.Type.String(), Key: ev.Key.String(), PitchOffset: offset}

		switch ev.Type {
		case gesture.EventTrigger:
			out.PitchOffset = ev.PitchOffset
			if !enabled || s.voices == nil {
				s.logger.Debug("finger up, audio not enabled", zap.Stringer("key", ev.Key))
				continue
			}
			out.Frequencies = s.voices.Trigger(ev.Key, ev.Chord.Notes(), ev.PitchOffset)
		case gesture.EventRelease:
			if s.voices != nil {
				s.voices.ScheduleRelease(ev.Key, s.sustain)
			}
		case gesture.EventStopAll:
			out.Key = ""
			if s.voices != nil {
				s.voices.StopAll()
			}
		}
		s.publish(out)
	}

	if changed {
		s.publish(Event{Type: EventPitch, PitchOffset: offset, Hands: len(hands)})
	}
}
