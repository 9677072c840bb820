// Package badger keeps the shared store in an embedded BadgerDB database.
//
// One DB is opened per process; every execution context in the process is a
// Store obtained from DB.Context. Contexts learn about each other's writes
// through BadgerDB's key subscriptions.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/pb"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
)

const (
	dataPrefix = "kv/"
	metaPrefix = "meta/"
	clearKey   = metaPrefix + "clears"
	pingPrefix = metaPrefix + "ping/"

	// valueTag leads every stored value, so a present-but-empty value is
	// never confused with a deletion tombstone in subscription updates.
	valueTag = 'v'
)

// SubscribeTimeout bounds how long Watch waits for the subscription to go live.
var SubscribeTimeout = 5 * time.Second

// Config configures a BadgerDB store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger

	// GCInterval is how often to run value log garbage collection.
	// Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the minimum ratio of discardable data before GC.
	GCDiscardRatio float64

	// MaxValueBytes rejects larger values with kvstore.ErrQuotaExceeded.
	MaxValueBytes int

	// EchoWindow bounds own-write suppression. Zero uses kvstore.DefaultEchoWindow.
	EchoWindow time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// DB is a BadgerDB database shared by several execution contexts.
type DB struct {
	db     *badger.DB
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	contexts map[*Store]struct{}

	gcStop chan struct{}
	gcDone chan struct{}
}

// OpenDB opens the database described by cfg.
func OpenDB(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
		logger = slog.New(slog.DiscardHandler)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	d := &DB{
		db:       bdb,
		cfg:      cfg,
		logger:   logger,
		contexts: make(map[*Store]struct{}),
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		d.gcStop = make(chan struct{})
		d.gcDone = make(chan struct{})
		go d.runGC()
	}
	return d, nil
}

func (d *DB) runGC() {
	defer close(d.gcDone)

	ticker := time.NewTicker(d.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.gcStop:
			return
		case <-ticker.C:
			err := d.db.RunValueLogGC(d.cfg.GCDiscardRatio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				d.logger.Warn("badger value log GC error", "error", err)
			}
		}
	}
}

// Context returns a new execution context on the database.
func (d *DB) Context() *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		d:      d,
		origin: kvstore.NewOrigin(),
		self:   kvstore.NewSelfWrites(d.cfg.EchoWindow),
		feed:   kvstore.NewFeed(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	d.mu.Lock()
	d.contexts[s] = struct{}{}
	d.mu.Unlock()
	return s
}

// Close closes every context and then the database.
func (d *DB) Close() error {
	d.mu.Lock()
	open := make([]*Store, 0, len(d.contexts))
	for s := range d.contexts {
		open = append(open, s)
	}
	d.mu.Unlock()

	for _, s := range open {
		_ = s.Close()
	}
	if d.gcStop != nil {
		close(d.gcStop)
		<-d.gcDone
	}
	return d.db.Close()
}

// Store is one execution context on a DB.
type Store struct {
	d      *DB
	origin string
	self   *kvstore.SelfWrites
	feed   *kvstore.Feed
	closed atomic.Bool

	watchOnce  sync.Once
	watchErr   error
	subscribed atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

var _ kvstore.Store = (*Store)(nil)

// Origin returns the context ID.
func (s *Store) Origin() string {
	return s.origin
}

func dataKey(key string) []byte {
	return []byte(dataPrefix + key)
}

func unwrap(stored []byte) []byte {
	if len(stored) > 0 && stored[0] == valueTag {
		return stored[1:]
	}
	return stored
}

// Get returns the value stored under key.
func (s *Store) Get(key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	var value []byte
	err := s.d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(dataKey(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kvstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return unwrap(value), nil
}

// Set stores value under key.
func (s *Store) Set(key string, value []byte) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}
	if err := kvstore.ValidateKey(key); err != nil {
		return err
	}
	if err := kvstore.CheckQuota(s.d.cfg.MaxValueBytes, key, value); err != nil {
		return err
	}

	stored := make([]byte, 0, len(value)+1)
	stored = append(stored, valueTag)
	stored = append(stored, value...)

	s.self.Record(key, value, false)
	return s.d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(dataKey(key), stored)
	})
}

// Delete removes key when present.
func (s *Store) Delete(key string) error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}
	return s.d.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(dataKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		s.self.Record(key, nil, true)
		return txn.Delete(dataKey(key))
	})
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	keys := []string{}
	err := s.d.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(dataPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().Key()), dataPrefix))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)
	return keys, nil
}

// Clear removes every key and bumps the clear counter watched by other contexts.
func (s *Store) Clear() error {
	if s.closed.Load() {
		return kvstore.ErrClosed
	}
	keys, err := s.Keys()
	if err != nil {
		return err
	}

	txn := s.d.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	for _, key := range keys {
		s.self.Record(key, nil, true)
		err := txn.Delete(dataKey(key))
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = s.d.db.NewTransaction(true)
			err = txn.Delete(dataKey(key))
		}
		if err != nil {
			return err
		}
	}

	marker := []byte(fmt.Sprintf("%s:%d", s.origin, time.Now().UnixNano()))
	s.self.Record(clearKey, marker, false)
	if err := txn.Set([]byte(clearKey), marker); err != nil {
		return err
	}
	return txn.Commit()
}

// Watch streams writes made by the database's other contexts.
func (s *Store) Watch(ctx context.Context) (<-chan kvstore.Change, error) {
	if s.closed.Load() {
		return nil, kvstore.ErrClosed
	}
	s.watchOnce.Do(func() { s.watchErr = s.subscribe() })
	if s.watchErr != nil {
		return nil, s.watchErr
	}
	return s.feed.Subscribe(ctx, s.origin)
}

// subscribe starts the subscription goroutine and waits until it observes a
// ping written by this context, so no write after Watch returns is missed.
func (s *Store) subscribe() error {
	ping := []byte(pingPrefix + s.origin)
	ready := make(chan struct{})
	var readyOnce sync.Once

	cb := func(list *badger.KVList) error {
		if containsKey(list, ping) {
			readyOnce.Do(func() { close(ready) })
		}
		s.dispatch(list)
		return nil
	}
	matches := []pb.Match{
		{Prefix: []byte(dataPrefix)},
		{Prefix: []byte(metaPrefix)},
	}

	s.subscribed.Store(true)
	go func() {
		defer close(s.done)
		err := s.d.db.Subscribe(s.ctx, cb, matches)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.d.logger.Warn("badger subscription ended", "origin", s.origin, "error", err)
		}
	}()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(SubscribeTimeout)
	defer deadline.Stop()

	for {
		err := s.d.db.Update(func(txn *badger.Txn) error {
			return txn.Set(ping, []byte(time.Now().UTC().Format(time.RFC3339Nano)))
		})
		if err != nil {
			return fmt.Errorf("badger subscription ping: %w", err)
		}
		select {
		case <-ready:
			_ = s.d.db.Update(func(txn *badger.Txn) error { return txn.Delete(ping) })
			return nil
		case <-ticker.C:
		case <-deadline.C:
			return errors.New("badger subscription did not start")
		}
	}
}

func containsKey(list *badger.KVList, key []byte) bool {
	for _, kv := range list.GetKv() {
		if bytes.Equal(kv.GetKey(), key) {
			return true
		}
	}
	return false
}

// dispatch turns one subscription batch into changes.
func (s *Store) dispatch(list *badger.KVList) {
	now := time.Now()

	cleared := false
	for _, kv := range list.GetKv() {
		if string(kv.GetKey()) == clearKey && !s.self.IsEcho(clearKey, kv.GetValue(), false) {
			cleared = true
		}
	}
	if cleared {
		s.feed.Publish(kvstore.Change{Cleared: true, At: now})
	}

	for _, kv := range list.GetKv() {
		name := string(kv.GetKey())
		if !strings.HasPrefix(name, dataPrefix) {
			continue
		}
		key := strings.TrimPrefix(name, dataPrefix)

		if len(kv.GetValue()) == 0 {
			if cleared || s.self.IsEcho(key, nil, true) {
				continue
			}
			s.feed.Publish(kvstore.Change{Key: key, Removed: true, At: now})
			continue
		}

		value := bytes.Clone(unwrap(kv.GetValue()))
		if s.self.IsEcho(key, value, false) {
			continue
		}
		s.feed.Publish(kvstore.Change{Key: key, Value: value, At: now})
	}
}

// Close ends this context's watches. The database stays open for others.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.cancel()
	s.watchOnce.Do(func() {})
	if s.subscribed.Load() {
		<-s.done
	}
	s.feed.Close()

	s.d.mu.Lock()
	delete(s.d.contexts, s)
	s.d.mu.Unlock()
	return nil
}
