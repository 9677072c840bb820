// Package kvstore defines the shared key-value store guarded by the watchdog.
//
// A Store is one execution context's handle on a backend. Several contexts can
// share the same backend (in one process or across processes). Each context
// learns about writes made by the others through Watch, and never about its own.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get when the key is not present.
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrQuotaExceeded is returned by Set when the value is larger than the
	// backend accepts.
	ErrQuotaExceeded = errors.New("kvstore: quota exceeded")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("kvstore: store closed")

	// ErrInvalidKey is returned for keys the backends cannot address.
	ErrInvalidKey = errors.New("kvstore: invalid key")
)

// Store is a persistent, unscoped key-value store shared by execution contexts.
// Writes are unconditional overwrites; there is no compare-and-swap.
type Store interface {
	// Get returns the raw value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any existing value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Keys lists the keys currently present, sorted.
	Keys() ([]string, error)

	// Clear removes every key.
	Clear() error

	// Watch streams changes made by other execution contexts.
	// The channel is closed when ctx is done or the store is closed.
	Watch(ctx context.Context) (<-chan Change, error)

	// Origin identifies this execution context.
	Origin() string

	// Close releases the handle. It does not touch stored data.
	Close() error
}

// Change describes a write observed from another execution context.
type Change struct {
	// Key is the changed key. Empty when Cleared is set.
	Key string

	// Value is the new raw value. Nil when Removed or Cleared is set.
	Value []byte

	// Removed reports that Key was deleted.
	Removed bool

	// Cleared reports that the whole store was cleared.
	Cleared bool

	// Origin is the writer's context ID when the backend knows it.
	Origin string

	// At is when the change was observed.
	At time.Time
}

// String renders the change for logs.
func (c Change) String() string {
	switch {
	case c.Cleared:
		return "clear"
	case c.Removed:
		return fmt.Sprintf("remove %s", c.Key)
	default:
		return fmt.Sprintf("set %s (%d bytes)", c.Key, len(c.Value))
	}
}

// NewOrigin returns a fresh execution-context ID.
func NewOrigin() string {
	return uuid.NewString()
}

// ValidateKey rejects keys that no backend can store.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.ContainsRune(key, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidKey, key)
	}
	return nil
}

// CheckQuota returns ErrQuotaExceeded when limit is positive and value is larger.
func CheckQuota(limit int, key string, value []byte) error {
	if limit > 0 && len(value) > limit {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrQuotaExceeded, key, len(value), limit)
	}
	return nil
}
