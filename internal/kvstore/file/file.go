// Package file stores each key as a JSON file in a shared directory.
// Any number of processes may open the same directory; each learns about
// the others' writes through filesystem notifications.
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
)

const (
	// ValueSuffix is appended to the escaped key to form a file name.
	ValueSuffix = ".json"

	// DefaultDirName is the subdirectory within the data dir.
	DefaultDirName = "store"

	lockName = ".lock"
)

// DefaultDebounceWindow is how long a key must stay quiet before its change
// is published.
const DefaultDebounceWindow = 100 * time.Millisecond

// LockTimeout is the maximum time to wait for acquiring the directory lock.
// If exceeded, writes proceed without locking (fail-open).
var LockTimeout = 100 * time.Millisecond

// Options configures a directory store.
type Options struct {
	// Dir is the shared directory. Empty uses DefaultDir().
	Dir string

	// MaxValueBytes rejects larger values with kvstore.ErrQuotaExceeded.
	MaxValueBytes int

	// EchoWindow bounds own-write suppression. Zero uses kvstore.DefaultEchoWindow.
	EchoWindow time.Duration

	// DebounceWindow coalesces bursts of filesystem events per key. A writer
	// that truncates and rewrites a file in place is seen once, after it
	// settles. Zero uses DefaultDebounceWindow.
	DebounceWindow time.Duration

	Logger *slog.Logger
}

// Store is one execution context on a directory.
type Store struct {
	dir    string
	origin string
	opts   Options
	logger *slog.Logger
	self   *kvstore.SelfWrites
	feed   *kvstore.Feed

	closed atomic.Bool

	watchOnce sync.Once
	watchErr  error
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

var _ kvstore.Store = (*Store)(nil)

// Open creates the directory if needed and returns a new execution context on it.
func Open(opts Options) (*Store, error) {
	dir := opts.Dir
	if dir == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		dir:    dir,
		origin: kvstore.NewOrigin(),
		opts:   opts,
		logger: logger,
		self:   kvstore.NewSelfWrites(opts.EchoWindow),
		feed:   kvstore.NewFeed(),
		done:   make(chan struct{}),
	}, nil
}

// DefaultDir returns the default store directory.
// Uses platform-specific data directories with proper fallbacks.
func DefaultDir() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return filepath.Join(dataDir, "storewatch", DefaultDirName)
	}
	if configDir, err := os.UserConfigDir(); err == nil && configDir != "" {
		return filepath.Join(configDir, "storewatch", DefaultDirName)
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".local", "share", "storewatch", DefaultDirName)
	}
	return filepath.Join(os.TempDir(), "storewatch", DefaultDirName)
}

// Dir returns the store directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Origin returns the context ID.
func (s *Store) Origin() string {
	return s.origin
}

// Path returns the file backing key.
func (s *Store) Path(key string) string {
	return filepath.Join(s.dir, url.QueryEscape(key)+ValueSuffix)
}

// keyFor maps a directory entry back to its key. ok is false for lock,
// temp and foreign files.
func keyFor(name string) (string, bool) {
	if !strings.HasSuffix(name, ValueSuffix) {
		return "", false
	}
	key, err := url.QueryUnescape(strings.TrimSuffix(name, ValueSuffix))
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}

// fileLock represents an acquired directory lock.
type fileLock struct {
	flock *flock.Flock
}

// acquireLock obtains an exclusive lock on the directory.
// Returns nil (with no error) when the lock cannot be acquired within
// LockTimeout, so a crashed holder cannot wedge every writer.
func (s *Store) acquireLock() (*fileLock, error) {
	fl := flock.New(filepath.Join(s.dir, lockName))

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			s.logger.Debug("store lock timeout, continuing unlocked", "dir", s.dir)
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return &fileLock{flock: fl}, nil
}

func (fl *fileLock) release() {
	if fl == nil || fl.flock == nil {
		return
	}
	_ = fl.flock.Unlock()
}

// Get returns the value stored under key.
// Writes replace files by rename, so reads never see a partial value.
func (s *Store) Get(key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Set writes value atomically via a temp file.
func (s *Store) Set(key string, value []byte) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}
	if err := kvstore.CheckQuota(s.opts.MaxValueBytes, key, value); err != nil {
		return err
	}

	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer lock.release()

	s.self.Record(key, value, false)
	return s.writeUnsafe(key, value)
}

// writeUnsafe writes without locking (caller must hold lock).
func (s *Store) writeUnsafe(key string, value []byte) error {
	path := s.Path(key)

	// Unique temp name so fail-open writers never share one.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", path, os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, value, 0600); err != nil {
		return err
	}

	// On Windows, os.Rename fails if destination exists.
	if runtime.GOOS == "windows" {
		_ = os.Remove(path)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Delete removes key's file.
func (s *Store) Delete(key string) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}

	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer lock.release()

	return s.removeUnsafe(key)
}

func (s *Store) removeUnsafe(key string) error {
	s.self.Record(key, nil, true)
	err := os.Remove(s.Path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if key, ok := keyFor(e.Name()); ok {
			keys = append(keys, key)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

// Clear removes every value file. Other contexts observe one removal per key.
func (s *Store) Clear() error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}

	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer lock.release()

	keys, err := s.Keys()
	if err != nil {
		return err
	}
	var errs []error
	for _, key := range keys {
		if err := s.removeUnsafe(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Watch streams writes made to the directory by other contexts.
func (s *Store) Watch(ctx context.Context) (<-chan kvstore.Change, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	s.watchOnce.Do(s.startWatcher)
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	return s.feed.Subscribe(ctx, s.origin)
}

func (s *Store) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.watchErr = fmt.Errorf("creating watcher: %w", err)
		return
	}
	if err := w.Add(s.dir); err != nil {
		_ = w.Close()
		s.watchErr = fmt.Errorf("watching %s: %w", s.dir, err)
		return
	}
	s.watcher = w
	go s.watchLoop(w)
}

// watchLoop collects changed keys and publishes each one once its file has
// been quiet for the debounce window.
func (s *Store) watchLoop(w *fsnotify.Watcher) {
	defer close(s.done)

	window := s.opts.DebounceWindow
	if window <= 0 {
		window = DefaultDebounceWindow
	}

	pending := make(map[string]struct{})
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			key, ok := keyFor(filepath.Base(ev.Name))
			if !ok {
				continue
			}
			pending[key] = struct{}{}
			if timer == nil {
				timer = time.NewTimer(window)
				timerC = timer.C
			} else {
				timer.Reset(window)
			}

		case <-timerC:
			timer, timerC = nil, nil
			for key := range pending {
				s.settle(key)
			}
			clear(pending)

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("store watch error", "dir", s.dir, "error", err)
		}
	}
}

// settle publishes the current state of key's file.
func (s *Store) settle(key string) {
	data, err := os.ReadFile(s.Path(key))
	switch {
	case err == nil:
		if s.self.IsEcho(key, data, false) {
			return
		}
		s.feed.Publish(kvstore.Change{Key: key, Value: data, At: time.Now()})

	case errors.Is(err, fs.ErrNotExist):
		if s.self.IsEcho(key, nil, true) {
			return
		}
		s.feed.Publish(kvstore.Change{Key: key, Removed: true, At: time.Now()})

	default:
		s.logger.Warn("reading changed key", "key", key, "error", err)
	}
}

// Close stops the directory watch and ends every Watch channel.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.feed.Close()

	// Keep later Watch calls from starting a watcher.
	s.watchOnce.Do(func() {})
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}
