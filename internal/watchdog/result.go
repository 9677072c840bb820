package watchdog

import (
	"fmt"
	"slices"
	"time"
)

// State classifies one record during a pass.
type State int

const (
	// Valid records decode and pass their validator.
	Valid State = iota
	// MissingRequired records are absent and required.
	MissingRequired
	// MissingOptional records are absent and optional. They are left alone.
	MissingOptional
	// Corrupt records are present but do not decode.
	Corrupt
	// InvalidSchema records decode but fail their validator.
	InvalidSchema
	// Unavailable records could not be read because the store failed.
	Unavailable
)

var stateNames = map[State]string{
	Valid:           "valid",
	MissingRequired: "missing_required",
	MissingOptional: "missing_optional",
	Corrupt:         "corrupt",
	InvalidSchema:   "invalid_schema",
	Unavailable:     "unavailable",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state name in JSON and YAML.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown record state %q", text)
}

// NeedsRepair reports whether the state calls for writing the default.
func (s State) NeedsRepair() bool {
	switch s {
	case MissingRequired, Corrupt, InvalidSchema:
		return true
	}
	return false
}

// Scope says what kind of pass produced a result.
type Scope string

const (
	// ScopeFull is a sweep over the whole registry.
	ScopeFull Scope = "full"
	// ScopeKey is a single-record check.
	ScopeKey Scope = "key"
	// ScopeForce is a forced repair of every record.
	ScopeForce Scope = "force"
)

// Repair reasons passed to OnRepair.
const (
	ReasonMissing  = "missing required key"
	ReasonCorrupt  = "corrupt data"
	ReasonInvalid  = "failed validation"
	ReasonExternal = "external modification caused corruption"
	ReasonForce    = "force repair requested"
)

// RecordStatus is one record's outcome within a pass.
type RecordStatus struct {
	Key      string `json:"key"`
	State    State  `json:"state"`
	Detail   string `json:"detail,omitempty"`
	Repaired bool   `json:"repaired"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Result is the outcome of one pass. Results are never modified after they
// are published.
type Result struct {
	IsHealthy    bool           `json:"is_healthy"`
	RepairedKeys []string       `json:"repaired_keys"`
	Errors       []string       `json:"errors"`
	Timestamp    time.Time      `json:"timestamp"`
	Scope        Scope          `json:"scope"`
	Records      []RecordStatus `json:"records"`
}

// Clone returns a deep copy.
func (r Result) Clone() Result {
	r.RepairedKeys = slices.Clone(r.RepairedKeys)
	r.Errors = slices.Clone(r.Errors)
	r.Records = slices.Clone(r.Records)
	return r
}

// Record returns the status for key within this result.
func (r Result) Record(key string) (RecordStatus, bool) {
	for _, rs := range r.Records {
		if rs.Key == key {
			return rs, true
		}
	}
	return RecordStatus{}, false
}

// Summary renders the result as one line.
func (r Result) Summary() string {
	status := "healthy"
	if !r.IsHealthy {
		status = "unhealthy"
	}
	s := fmt.Sprintf("%s (%s check of %d records", status, r.Scope, len(r.Records))
	if n := len(r.RepairedKeys); n > 0 {
		s += fmt.Sprintf(", %d repaired", n)
	}
	if n := len(r.Errors); n > 0 {
		s += fmt.Sprintf(", %d errors", n)
	}
	return s + ")"
}

// builder accumulates a result during a pass.
type builder struct {
	res Result
}

func newBuilder(scope Scope, capacity int) *builder {
	return &builder{res: Result{
		RepairedKeys: []string{},
		Errors:       []string{},
		Scope:        scope,
		Records:      make([]RecordStatus, 0, capacity),
	}}
}

func (b *builder) add(rs RecordStatus) {
	if rs.Repaired {
		b.res.RepairedKeys = append(b.res.RepairedKeys, rs.Key)
	}
	if rs.Error != "" {
		b.res.Errors = append(b.res.Errors, fmt.Sprintf("%s: %s", rs.Key, rs.Error))
	}
	b.res.Records = append(b.res.Records, rs)
}

func (b *builder) finish(now time.Time) Result {
	b.res.IsHealthy = len(b.res.Errors) == 0
	b.res.Timestamp = now
	return b.res
}
