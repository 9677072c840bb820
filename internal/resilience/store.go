// Package resilience provides cross-process run state for watchdog processes.
// State is persisted to disk with file locking for safe concurrent access.
package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/watchdog"
)

const (
	// StateFileName is the default state file name.
	StateFileName = "state.json"

	// DefaultDirName is the subdirectory within the cache dir.
	DefaultDirName = "run"
)

// Store handles reading and writing run state with file locking.
// It provides atomic operations safe for concurrent access across processes.
type Store struct {
	dir   string
	alive func(pid int) bool
}

// NewStore creates a new run state store.
// If dir is empty, it uses the default location (~/.cache/storewatch/run/).
func NewStore(dir string) *Store {
	if dir == "" {
		dir = defaultStateDir()
	}
	return &Store{dir: dir, alive: isProcessAlive}
}

// defaultStateDir returns the default state directory path.
func defaultStateDir() string {
	if cacheDir := os.Getenv("XDG_CACHE_HOME"); cacheDir != "" {
		return filepath.Join(cacheDir, "storewatch", DefaultDirName)
	}

	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "storewatch", DefaultDirName)
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".cache", "storewatch", DefaultDirName)
	}

	// Last resort: use temp directory to avoid relative paths
	return filepath.Join(os.TempDir(), "storewatch", DefaultDirName)
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path to the state file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, StateFileName)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.dir, ".lock")
}

// LockTimeout is the maximum time to wait for acquiring the file lock.
// If exceeded, operations proceed without locking (fail-open) to avoid CLI hangs.
const LockTimeout = 100 * time.Millisecond

type fileLock struct {
	flock *flock.Flock
}

// acquireLock obtains an exclusive lock on the state directory.
// The caller must call release() when done.
//
// Returns nil (with no error) if the lock cannot be acquired within
// LockTimeout. A lost update only costs a stale watcher entry, which the
// next Register prunes.
func (s *Store) acquireLock() (*fileLock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(s.lockPath())

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}

	return &fileLock{flock: fl}, nil
}

func (fl *fileLock) release() error {
	if fl == nil || fl.flock == nil {
		return nil
	}
	return fl.flock.Unlock()
}

// Load reads the state from disk with proper locking.
// Returns an empty state if the file doesn't exist.
func (s *Store) Load() (*State, error) {
	lock, err := s.acquireLock()
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	return s.loadUnsafe()
}

// loadUnsafe reads the state without locking (caller must hold lock).
func (s *Store) loadUnsafe() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		// A corrupt state file heals to an empty one.
		return NewState(), nil
	}
	if state.Watchers == nil {
		state.Watchers = []WatcherInfo{}
	}

	return &state, nil
}

// saveUnsafe writes the state without locking (caller must hold lock).
func (s *Store) saveUnsafe(state *State) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	state.Version = StateVersion
	state.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp name so fail-open writers never share a temp file.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// On Windows, os.Rename fails if destination exists.
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return nil
}

// Update atomically loads, modifies, and saves the state.
// The lock is held throughout the read-modify-write cycle when it can be taken.
func (s *Store) Update(updateFn func(*State) error) error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	state, err := s.loadUnsafe()
	if err != nil {
		return err
	}

	if err := updateFn(state); err != nil {
		return err
	}

	return s.saveUnsafe(state)
}

// Register records the calling process as an attached watcher and prunes
// entries left behind by processes that exited without unregistering.
func (s *Store) Register(w WatcherInfo) error {
	if w.PID == 0 {
		w.PID = os.Getpid()
	}
	if w.StartedAt.IsZero() {
		w.StartedAt = time.Now()
	}
	return s.Update(func(state *State) error {
		state.Prune(s.alive)
		state.AddWatcher(w)
		return nil
	})
}

// Unregister removes pid from the watcher list.
func (s *Store) Unregister(pid int) error {
	return s.Update(func(state *State) error {
		state.RemovePID(pid)
		return nil
	})
}

// RecordResult stores r as the latest published result.
func (s *Store) RecordResult(pid int, origin string, r watchdog.Result) error {
	rec := &ResultRecord{PID: pid, Origin: origin, Result: r.Clone()}
	return s.Update(func(state *State) error {
		state.LastResult = rec
		return nil
	})
}

// Snapshot loads the state with dead watchers filtered out. The file is not
// rewritten.
func (s *Store) Snapshot() (*State, error) {
	state, err := s.Load()
	if err != nil {
		return nil, err
	}
	state.Prune(s.alive)
	return state, nil
}

// Clear removes the state file.
func (s *Store) Clear() error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	err = os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists returns true if a state file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}
