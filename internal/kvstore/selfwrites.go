package kvstore

import (
	"crypto/sha256"
	"sync"
	"time"
)

// DefaultEchoWindow is how long a context's own write is remembered for echo
// suppression.
const DefaultEchoWindow = 5 * time.Second

// SelfWrites remembers the last value this context wrote under each key, so
// backends that observe every write (file watches, database feeds) can drop
// the echo of their own writes.
//
// A write from another context carrying byte-identical content inside the
// window is indistinguishable from the echo and is dropped as well.
type SelfWrites struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]selfWrite
	now     func() time.Time
}

type selfWrite struct {
	sum     [sha256.Size]byte
	removed bool
	at      time.Time
}

// NewSelfWrites creates a tracker. A non-positive window uses DefaultEchoWindow.
func NewSelfWrites(window time.Duration) *SelfWrites {
	if window <= 0 {
		window = DefaultEchoWindow
	}
	return &SelfWrites{
		window:  window,
		entries: make(map[string]selfWrite),
		now:     time.Now,
	}
}

// Record notes that this context wrote value (or removed the key).
func (s *SelfWrites) Record(key string, value []byte, removed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = selfWrite{sum: sha256.Sum256(value), removed: removed, at: s.now()}
}

// IsEcho reports whether an observed change matches this context's last write.
func (s *SelfWrites) IsEcho(key string, value []byte, removed bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.entries[key]
	if !ok {
		return false
	}
	if s.now().Sub(w.at) > s.window {
		delete(s.entries, key)
		return false
	}
	if w.removed || removed {
		return w.removed == removed
	}
	return w.sum == sha256.Sum256(value)
}
