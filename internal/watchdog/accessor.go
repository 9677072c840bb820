package watchdog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
)

var (
	// ErrAbsent means the key is not in the store.
	ErrAbsent = errors.New("absent")

	// ErrMalformed means the stored value is not valid JSON.
	ErrMalformed = errors.New("malformed")

	// ErrUnavailable means the store could not be read.
	ErrUnavailable = errors.New("store unavailable")

	// ErrWriteFailure means the store rejected a write.
	ErrWriteFailure = errors.New("write failed")
)

// ReadError describes why a record could not be read.
type ReadError struct {
	Key    string
	Reason error // ErrAbsent, ErrMalformed or ErrUnavailable
	Err    error
}

func (e *ReadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("read %s: %v", e.Key, e.Reason)
	}
	return fmt.Sprintf("read %s: %v: %v", e.Key, e.Reason, e.Err)
}

func (e *ReadError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Detail returns the underlying cause text, or "" when there is none.
func (e *ReadError) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// WriteError describes a rejected write.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrWriteFailure, e.Err}
}

// Accessor reads and writes JSON records, turning every failure into a
// typed error instead of a panic.
type Accessor struct {
	store kvstore.Store
}

// NewAccessor wraps store.
func NewAccessor(store kvstore.Store) *Accessor {
	return &Accessor{store: store}
}

// Read returns the decoded value under key. Errors are always *ReadError.
func (a *Accessor) Read(key string) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			value, err = nil, &ReadError{Key: key, Reason: ErrUnavailable, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	raw, err := a.store.Get(key)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, &ReadError{Key: key, Reason: ErrAbsent}
		}
		return nil, &ReadError{Key: key, Reason: ErrUnavailable, Err: err}
	}

	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, &ReadError{Key: key, Reason: ErrMalformed, Err: err}
	}
	return value, nil
}

// Write stores value as JSON, unconditionally replacing what is there.
// Errors are always *WriteError.
func (a *Accessor) Write(key string, value any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &WriteError{Key: key, Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	data, err := json.Marshal(value)
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	if err := a.store.Set(key, data); err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}
