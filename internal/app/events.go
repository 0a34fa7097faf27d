package app

// Event types beyond the tracker's trigger, release and stop_all.
const (
	EventPitch     = "pitch"
	EventStatus    = "status"
	EventComposite = "composite"
	EventRecording = "recording"
)

// Event is one session notification, broadcast to subscribers such as the
// WebSocket event stream.
type Event struct {
	Type        string    `json:"type"`
	Key         string    `json:"key,omitempty"`
	Frequencies []float64 `json:"frequencies,omitempty"`
	PitchOffset int       `json:"pitch_offset"`
	Hands       int       `json:"hands,omitempty"`
	Composite   bool      `json:"composite,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Recording   string    `json:"recording,omitempty"`
	Artifact    string    `json:"artifact,omitempty"`
	Message     string    `json:"message,omitempty"`
}

const subscriberBuffer = 64

// Subscribe returns a channel of session events and a cancel function that
// closes it. A subscriber that falls behind loses events.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	s.subMu.Lock()
	s.subs[ch] = struct{}{}
	s.subMu.Unlock()

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Session) publishStatus() {
	st := s.Status()
	s.publish(Event{Type: EventStatus, PitchOffset: st.PitchOffset, Hands: st.Hands, Message: st.Message})
}
