// Package memory provides an in-process key-value backend shared by several
// execution contexts, the way browser tabs share one origin's storage.
package memory

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
)

// Hub is the shared storage. Contexts obtained from it see each other's writes
// through Watch.
type Hub struct {
	mu   sync.RWMutex
	data map[string][]byte

	maxValueBytes int
	readErr       error
	writeErr      error

	feed *kvstore.Feed
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxValueBytes limits the size of a single value.
func WithMaxValueBytes(n int) Option {
	return func(h *Hub) { h.maxValueBytes = n }
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		data: make(map[string][]byte),
		feed: kvstore.NewFeed(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Context returns a new execution context bound to the hub.
func (h *Hub) Context() *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{hub: h, origin: kvstore.NewOrigin(), ctx: ctx, cancel: cancel}
}

// FailReads makes every subsequent Get return err. Nil restores normal reads.
func (h *Hub) FailReads(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readErr = err
}

// FailWrites makes every subsequent Set, Delete and Clear return err.
// Nil restores normal writes.
func (h *Hub) FailWrites(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.writeErr = err
}

// Close ends every watch on the hub.
func (h *Hub) Close() {
	h.feed.Close()
}

// Store is one execution context on a Hub.
type Store struct {
	hub    *Hub
	origin string
	closed atomic.Bool

	// ctx ends every watch opened through this context on Close.
	ctx    context.Context
	cancel context.CancelFunc
}

var _ kvstore.Store = (*Store)(nil)

// Origin returns the context ID.
func (s *Store) Origin() string {
	return s.origin
}

// Get returns the value stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()

	if s.hub.readErr != nil {
		return nil, s.hub.readErr
	}
	v, ok := s.hub.data[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return slices.Clone(v), nil
}

// Set stores value under key and notifies the other contexts.
func (s *Store) Set(key string, value []byte) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}

	s.hub.mu.Lock()
	if s.hub.writeErr != nil {
		err := s.hub.writeErr
		s.hub.mu.Unlock()
		return err
	}
	if err := kvstore.CheckQuota(s.hub.maxValueBytes, key, value); err != nil {
		s.hub.mu.Unlock()
		return err
	}
	s.hub.data[key] = slices.Clone(value)
	s.hub.mu.Unlock()

	s.hub.feed.Publish(kvstore.Change{
		Key:    key,
		Value:  slices.Clone(value),
		Origin: s.origin,
		At:     time.Now(),
	})
	return nil
}

// Delete removes key and notifies the other contexts when it existed.
func (s *Store) Delete(key string) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}

	s.hub.mu.Lock()
	if s.hub.writeErr != nil {
		err := s.hub.writeErr
		s.hub.mu.Unlock()
		return err
	}
	_, existed := s.hub.data[key]
	delete(s.hub.data, key)
	s.hub.mu.Unlock()

	if existed {
		s.hub.feed.Publish(kvstore.Change{
			Key:     key,
			Removed: true,
			Origin:  s.origin,
			At:      time.Now(),
		})
	}
	return nil
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	s.hub.mu.RLock()
	defer s.hub.mu.RUnlock()

	if s.hub.readErr != nil {
		return nil, s.hub.readErr
	}
	keys := make([]string, 0, len(s.hub.data))
	for k := range s.hub.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// Clear removes every key and notifies the other contexts.
func (s *Store) Clear() error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}

	s.hub.mu.Lock()
	if s.hub.writeErr != nil {
		err := s.hub.writeErr
		s.hub.mu.Unlock()
		return err
	}
	s.hub.data = make(map[string][]byte)
	s.hub.mu.Unlock()

	s.hub.feed.Publish(kvstore.Change{Cleared: true, Origin: s.origin, At: time.Now()})
	return nil
}

// Watch streams writes made by the hub's other contexts.
func (s *Store) Watch(ctx context.Context) (<-chan kvstore.Change, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(s.ctx, cancel)
	return s.hub.feed.Subscribe(ctx, s.origin)
}

// Close marks the context closed. The hub and its data stay usable by others.
func (s *Store) Close() error {
	s.closed.Store(true)
	s.cancel()
	return nil
}
