package capture

import "sync"

// FrameTap fans encoded frames out to subscribers. Each subscriber holds at
// most one pending frame; a slow reader sees only the newest.
type FrameTap struct {
	mu   sync.Mutex
	subs map[chan []byte]struct{}
}

// NewFrameTap creates an empty FrameTap.
func NewFrameTap() *FrameTap {
	return &FrameTap{subs: make(map[chan []byte]struct{})}
}

// Subscribe returns a frame channel and a cancel function that closes it.
func (t *FrameTap) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
	}
}

// Publish delivers frame to every subscriber, replacing any frame a
// subscriber has not read yet.
func (t *FrameTap) Publish(frame []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for ch := range t.subs {
		select {
		case ch <- frame:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// HasSubscribers reports whether anyone is listening, so callers can skip
// encoding.
func (t *FrameTap) HasSubscribers() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs) > 0
}

// Close ends every subscription.
func (t *FrameTap) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ch := range t.subs {
		delete(t.subs, ch)
		close(ch)
	}
}
