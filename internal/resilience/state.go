package resilience

import (
	"slices"
	"time"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

const (
	// StateVersion is the current state schema version.
	StateVersion = 1
)

// State is the run state shared by every storewatch process watching the
// same store. It lets `status` report on watchers it did not start.
type State struct {
	// Version is the schema version for future migrations.
	Version int `json:"version"`

	// Watchers lists the processes currently attached to the store.
	Watchers []WatcherInfo `json:"watchers"`

	// LastResult is the most recent result published by any watcher.
	LastResult *ResultRecord `json:"last_result,omitempty"`

	// UpdatedAt is when the state was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// WatcherInfo identifies one attached watchdog process.
type WatcherInfo struct {
	PID       int       `json:"pid"`
	Origin    string    `json:"origin"`
	Backend   string    `json:"backend,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// ResultRecord is a published result tagged with the watcher that produced it.
type ResultRecord struct {
	PID    int             `json:"pid"`
	Origin string          `json:"origin"`
	Result watchdog.Result `json:"result"`
}

// NewState returns an empty State.
func NewState() *State {
	return &State{
		Version:   StateVersion,
		Watchers:  []WatcherInfo{},
		UpdatedAt: time.Now(),
	}
}

// HasPID returns true if the given PID is registered.
func (s *State) HasPID(pid int) bool {
	return slices.ContainsFunc(s.Watchers, func(w WatcherInfo) bool { return w.PID == pid })
}

// AddWatcher registers w, replacing any earlier entry for the same PID.
func (s *State) AddWatcher(w WatcherInfo) {
	s.RemovePID(w.PID)
	s.Watchers = append(s.Watchers, w)
}

// RemovePID removes a PID from the watcher list.
func (s *State) RemovePID(pid int) {
	s.Watchers = slices.DeleteFunc(s.Watchers, func(w WatcherInfo) bool { return w.PID == pid })
}

// Prune drops watchers whose process is gone and returns how many were removed.
func (s *State) Prune(alive func(pid int) bool) int {
	before := len(s.Watchers)
	s.Watchers = slices.DeleteFunc(s.Watchers, func(w WatcherInfo) bool { return !alive(w.PID) })
	return before - len(s.Watchers)
}
