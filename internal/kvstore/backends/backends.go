// Package backends opens a kvstore backend by name.
package backends

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/badger"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/file"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/memory"
	"github.com/yukselaciker/seyda-matematik-sub001/internal/kvstore/sqlite"
)

// Backend names.
const (
	File   = "file"
	SQLite = "sqlite"
	Badger = "badger"
	Memory = "memory"
)

// Names lists the supported backends.
func Names() []string {
	return []string{File, SQLite, Badger, Memory}
}

// Config selects and configures a backend.
type Config struct {
	Backend       string
	Dir           string
	MaxValueBytes int
	Logger        *slog.Logger
}

func (cfg Config) dir() string {
	if cfg.Dir == "" {
		return file.DefaultDir()
	}
	return cfg.Dir
}

// Location returns where the configured backend keeps its data: a
// directory, a database file, or "memory".
func Location(cfg Config) string {
	switch cfg.Backend {
	case SQLite:
		return filepath.Join(cfg.dir(), "store.db")
	case Badger:
		return filepath.Join(cfg.dir(), "badger")
	case Memory:
		return Memory
	default:
		return cfg.dir()
	}
}

// Open returns a new execution context on the configured backend.
// Closing the returned store releases everything Open acquired.
func Open(cfg Config) (kvstore.Store, error) {
	switch cfg.Backend {
	case File, "":
		s, err := file.Open(file.Options{
			Dir:           Location(cfg),
			MaxValueBytes: cfg.MaxValueBytes,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case SQLite:
		s, err := sqlite.Open(sqlite.Options{
			Path:          Location(cfg),
			MaxValueBytes: cfg.MaxValueBytes,
			Logger:        cfg.Logger,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case Badger:
		bc := badger.DefaultConfig()
		bc.Path = Location(cfg)
		bc.MaxValueBytes = cfg.MaxValueBytes
		bc.Logger = cfg.Logger
		db, err := badger.OpenDB(bc)
		if err != nil {
			return nil, err
		}
		return &ownedBadger{Store: db.Context(), db: db}, nil
	case Memory:
		hub := memory.NewHub(memory.WithMaxValueBytes(cfg.MaxValueBytes))
		return &ownedMemory{Store: hub.Context(), hub: hub}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (want one of %v)", cfg.Backend, Names())
	}
}

type ownedBadger struct {
	*badger.Store
	db *badger.DB
}

func (o *ownedBadger) Close() error {
	return o.db.Close()
}

type ownedMemory struct {
	*memory.Store
	hub *memory.Hub
}

func (o *ownedMemory) Close() error {
	err := o.Store.Close()
	o.hub.Close()
	return err
}
