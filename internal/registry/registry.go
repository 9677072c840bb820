// Package registry declares the records the watchdog guards: their keys,
// defaults, whether they are required and how their shape is validated.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// Validator reports whether decoded JSON data has the expected shape.
// Data is what encoding/json produces when decoding into any.
type Validator func(data any) bool

// Record describes one monitored key.
type Record struct {
	// Key is the store key.
	Key string

	// Default is written when the record must be repaired.
	// It must be JSON-serializable and satisfy Validate.
	Default any

	// Required records are restored when absent. Optional ones are left alone.
	Required bool

	// Validate checks the decoded stored value.
	Validate Validator

	// Description is shown in listings.
	Description string
}

// DefaultJSON returns the encoded default value.
func (r Record) DefaultJSON() ([]byte, error) {
	return json.Marshal(r.Default)
}

// Registry is an immutable, ordered set of records.
type Registry struct {
	records []Record
	index   map[string]int
}

// ErrInvalidRecord is wrapped by every construction error.
var ErrInvalidRecord = errors.New("invalid record")

// New validates records and builds a registry in the given order.
// Every default must survive a JSON round trip and satisfy its own validator.
func New(records ...Record) (*Registry, error) {
	r := &Registry{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for i, rec := range records {
		if rec.Key == "" {
			return nil, fmt.Errorf("%w: record %d has an empty key", ErrInvalidRecord, i)
		}
		if _, dup := r.index[rec.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %q", ErrInvalidRecord, rec.Key)
		}
		if rec.Validate == nil {
			return nil, fmt.Errorf("%w: %s has no validator", ErrInvalidRecord, rec.Key)
		}

		data, err := rec.DefaultJSON()
		if err != nil {
			return nil, fmt.Errorf("%w: %s default is not serializable: %v", ErrInvalidRecord, rec.Key, err)
		}
		var decoded any
		if err := json.Unmarshal(data, &decoded); err != nil {
			return nil, fmt.Errorf("%w: %s default does not decode: %v", ErrInvalidRecord, rec.Key, err)
		}
		if !rec.Validate(decoded) {
			return nil, fmt.Errorf("%w: %s default %s fails its validator", ErrInvalidRecord, rec.Key, data)
		}

		r.index[rec.Key] = len(r.records)
		r.records = append(r.records, rec)
	}
	return r, nil
}

// MustNew is New for static registries; it panics on error.
func MustNew(records ...Record) *Registry {
	r, err := New(records...)
	if err != nil {
		panic(err)
	}
	return r
}

// Records returns the records in registration order.
func (r *Registry) Records() []Record {
	return slices.Clone(r.records)
}

// Lookup returns the record for key.
func (r *Registry) Lookup(key string) (Record, bool) {
	i, ok := r.index[key]
	if !ok {
		return Record{}, false
	}
	return r.records[i], true
}

// Has reports whether key is monitored.
func (r *Registry) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Keys returns the monitored keys in registration order.
func (r *Registry) Keys() []string {
	keys := make([]string, len(r.records))
	for i, rec := range r.records {
		keys[i] = rec.Key
	}
	return keys
}

// Len returns the number of records.
func (r *Registry) Len() int {
	return len(r.records)
}
