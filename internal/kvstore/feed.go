package kvstore

import (
	"context"
	"sync"
)

// Feed fans changes out to watchers without ever blocking the writer.
// Each subscriber owns an unbounded queue drained by its own goroutine, so a
// slow watcher delays only itself.
type Feed struct {
	mu     sync.Mutex
	subs   map[*feedSub]struct{}
	closed bool
}

type feedSub struct {
	origin string
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []Change
	wake    chan struct{}
	out     chan Change
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[*feedSub]struct{})}
}

// Subscribe returns a channel receiving every published change whose Origin
// differs from origin. An empty origin receives everything.
// The channel is closed when ctx is done or the feed is closed.
func (f *Feed) Subscribe(ctx context.Context, origin string) (<-chan Change, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &feedSub{
		origin: origin,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
		out:    make(chan Change),
	}
	f.subs[s] = struct{}{}

	go f.pump(ctx, s)
	return s.out, nil
}

// Publish queues c for every subscriber of a different origin.
func (f *Feed) Publish(c Change) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for s := range f.subs {
		if s.origin != "" && s.origin == c.Origin {
			continue
		}
		s.mu.Lock()
		s.pending = append(s.pending, c)
		s.mu.Unlock()

		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of live subscribers.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Close ends every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true
	for s := range f.subs {
		s.cancel()
	}
}

func (f *Feed) pump(ctx context.Context, s *feedSub) {
	defer func() {
		f.mu.Lock()
		delete(f.subs, s)
		f.mu.Unlock()
		close(s.out)
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
				continue
			}
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-ctx.Done():
			return
		}
	}
}
