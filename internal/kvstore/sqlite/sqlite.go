// Package sqlite keeps the shared store in a single SQLite database file.
//
// Each execution context holds exactly one connection. SQLite's data_version
// pragma only moves when another connection commits, so a context polls it to
// notice foreign writes and then diffs per-key versions to find what changed.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
)

// DefaultPollInterval is how often a watching context checks data_version.
const DefaultPollInterval = 250 * time.Millisecond

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key     TEXT PRIMARY KEY,
	value   BLOB NOT NULL,
	version INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
INSERT OR IGNORE INTO meta (name, value) VALUES ('seq', 0), ('clears', 0);
`

// Options configures a database store.
type Options struct {
	// Path is the database file.
	Path string

	// MaxValueBytes rejects larger values with kvstore.ErrQuotaExceeded.
	MaxValueBytes int

	// PollInterval is the data_version polling period. Zero uses DefaultPollInterval.
	PollInterval time.Duration

	Logger *slog.Logger
}

// snapshot is what this context last knew of the table.
type snapshot struct {
	versions map[string]int64
	clears   int64
}

// Store is one execution context on a database file.
type Store struct {
	db     *sql.DB
	path   string
	origin string
	opts   Options
	logger *slog.Logger
	feed   *kvstore.Feed

	// mu orders own writes against the poller so they are never reported back.
	mu     sync.Mutex
	known  snapshot
	closed bool

	watchOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

var _ kvstore.Store = (*Store)(nil)

// Open connects a new execution context to the database at opts.Path,
// creating the file and schema if needed.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite store: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", opts.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection per context keeps data_version meaningful.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:     db,
		path:   opts.Path,
		origin: kvstore.NewOrigin(),
		opts:   opts,
		logger: logger,
		feed:   kvstore.NewFeed(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	known, err := s.load()
	if err != nil {
		cancel()
		_ = db.Close()
		return nil, err
	}
	s.known = known
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Origin returns the context ID.
func (s *Store) Origin() string {
	return s.origin
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Get returns the value stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	if s.isClosed() {
		return nil, kvstore.ErrClosed
	}
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set stores value under key with a fresh version.
func (s *Store) Set(key string, value []byte) error {
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}
	if err := kvstore.CheckQuota(s.opts.MaxValueBytes, key, value); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var version int64
	if err := tx.QueryRow(`UPDATE meta SET value = value + 1 WHERE name = 'seq' RETURNING value`).Scan(&version); err != nil {
		return fmt.Errorf("bumping version: %w", err)
	}
	_, err = tx.Exec(`INSERT INTO kv (key, value, version) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, version = excluded.version`,
		key, value, version)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.known.versions[key] = version
	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return err
	}
	delete(s.known.versions, key)
	return nil
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	if s.isClosed() {
		return nil, kvstore.ErrClosed
	}
	rows, err := s.db.Query(`SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Clear removes every key. Watching contexts receive a single Cleared change.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvstore.ErrClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM kv`); err != nil {
		return err
	}
	var clears int64
	if err := tx.QueryRow(`UPDATE meta SET value = value + 1 WHERE name = 'clears' RETURNING value`).Scan(&clears); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	s.known = snapshot{versions: make(map[string]int64), clears: clears}
	return nil
}

// Watch streams writes committed by other connections.
func (s *Store) Watch(ctx context.Context) (<-chan kvstore.Change, error) {
	if s.isClosed() {
		return nil, kvstore.ErrClosed
	}
	var startErr error
	s.watchOnce.Do(func() { startErr = s.startPoll() })
	if startErr != nil {
		return nil, startErr
	}
	return s.feed.Subscribe(ctx, s.origin)
}

// startPoll takes a fresh baseline so only writes after Watch are reported.
func (s *Store) startPoll() error {
	last, err := s.dataVersion()
	if err != nil {
		close(s.done)
		return fmt.Errorf("reading data_version: %w", err)
	}

	s.mu.Lock()
	known, err := s.load()
	if err == nil {
		s.known = known
	}
	s.mu.Unlock()
	if err != nil {
		close(s.done)
		return err
	}

	go s.poll(last)
	return nil
}

func (s *Store) poll(last int64) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}

		v, err := s.dataVersion()
		if err != nil {
			s.logger.Warn("reading data_version", "path", s.path, "error", err)
			continue
		}
		if v == last {
			continue
		}
		last = v
		if err := s.sync(); err != nil {
			s.logger.Warn("diffing store", "path", s.path, "error", err)
		}
	}
}

func (s *Store) dataVersion() (int64, error) {
	var v int64
	err := s.db.QueryRowContext(s.ctx, `PRAGMA data_version`).Scan(&v)
	return v, err
}

// sync publishes the difference between the known snapshot and the table.
func (s *Store) sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	cur, err := s.load()
	if err != nil {
		return err
	}
	prev := s.known
	s.known = cur
	now := time.Now()

	if cur.clears != prev.clears {
		s.feed.Publish(kvstore.Change{Cleared: true, At: now})
		prev.versions = map[string]int64{}
	}
	for key := range prev.versions {
		if _, ok := cur.versions[key]; !ok {
			s.feed.Publish(kvstore.Change{Key: key, Removed: true, At: now})
		}
	}
	for key, v := range cur.versions {
		if prev.versions[key] == v {
			continue
		}
		var value []byte
		err := s.db.QueryRowContext(s.ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return err
		}
		s.feed.Publish(kvstore.Change{Key: key, Value: value, At: now})
	}
	return nil
}

func (s *Store) load() (snapshot, error) {
	snap := snapshot{versions: make(map[string]int64)}

	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return snap, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.QueryRow(`SELECT value FROM meta WHERE name = 'clears'`).Scan(&snap.clears); err != nil {
		return snap, err
	}
	rows, err := tx.Query(`SELECT key, version FROM kv`)
	if err != nil {
		return snap, err
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var v int64
		if err := rows.Scan(&k, &v); err != nil {
			return snap, err
		}
		snap.versions[k] = v
	}
	return snap, rows.Err()
}

// Close stops polling and closes the connection.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	started := true
	s.watchOnce.Do(func() { started = false })
	if started {
		<-s.done
	}
	s.feed.Close()
	return s.db.Close()
}
