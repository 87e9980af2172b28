// Package pronto is the ProntoDB facade.
//
// A DB owns the cursor store and a cache of open stores, one per database
// file. Handles bind a DB to one database and, for cursor handles, to the
// cursor's meta context and default project/namespace:
//
//	db, _ := pronto.Open(pronto.Config{Paths: p})
//	h, _ := db.Cursor("work", "alice")
//	h.Set(ctx, "app.config.key", "v")
//
// Under an active meta context every address is rewritten to its
// meta-prefixed storage form before it reaches the store, and the
// unprefixed form is never consulted.
package pronto

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roach88/prontodb/internal/address"
	"github.com/roach88/prontodb/internal/cursor"
	"github.com/roach88/prontodb/internal/meta"
	"github.com/roach88/prontodb/internal/paths"
	"github.com/roach88/prontodb/internal/store"
)

// ErrIsolation is returned when an address or override names a tenant other
// than the handle's active meta context.
var ErrIsolation = errors.New("meta isolation violation")

// Config configures a DB.
type Config struct {
	// Paths locates the primary database and cursor directories.
	Paths paths.Paths

	// Delimiter separates address segments. Defaults to ".".
	Delimiter string

	// BusyTimeout bounds SQLite lock waits. Zero keeps the store default.
	BusyTimeout time.Duration

	// Clock drives timestamps and expiry. Defaults to the system clock.
	Clock store.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DB is the entry point for all operations. It is safe for concurrent use.
type DB struct {
	cfg     Config
	cursors *cursor.Store
	logger  *slog.Logger

	mu     sync.Mutex
	stores map[string]*store.Store
}

// Open prepares a DB. Databases are opened lazily on first use.
func Open(cfg Config) (*DB, error) {
	if cfg.Delimiter == "" {
		cfg.Delimiter = address.DefaultDelimiter
	}
	if strings.Contains(cfg.Delimiter, "_") {
		return nil, fmt.Errorf("invalid delimiter %q: '_' is reserved for the context marker", cfg.Delimiter)
	}
	if cfg.Paths.DBPath == "" {
		return nil, errors.New("open: primary database path is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	copts := []cursor.Option{cursor.WithLogger(cfg.Logger)}
	if cfg.Clock != nil {
		copts = append(copts, cursor.WithClock(cfg.Clock))
	}

	return &DB{
		cfg:     cfg,
		cursors: cursor.New(cfg.Paths, copts...),
		logger:  cfg.Logger,
		stores:  make(map[string]*store.Store),
	}, nil
}

// Close closes every store opened through db.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var errs []error
	for path, s := range db.stores {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	db.stores = make(map[string]*store.Store)
	return errors.Join(errs...)
}

// Cursors exposes the cursor store for cursor management.
func (db *DB) Cursors() *cursor.Store {
	return db.cursors
}

// Delimiter returns the active address delimiter.
func (db *DB) Delimiter() string {
	return db.cfg.Delimiter
}

// Primary returns a cursor-less handle on the primary database.
func (db *DB) Primary() (*Handle, error) {
	return db.Database(db.cfg.Paths.DBPath)
}

// Database returns a cursor-less handle on the database at path.
func (db *DB) Database(path string) (*Handle, error) {
	return db.handle(Target{Path: path})
}

// Cursor returns a handle bound to the cursor (name, user). Empty name and
// user mean "default". The user's default cursor is created on first use.
// An unknown cursor falls back to the primary database with no meta
// context.
func (db *DB) Cursor(name, user string) (*Handle, error) {
	if name == "" {
		name = cursor.DefaultCursor
	}
	if user == "" {
		user = cursor.DefaultUser
	}

	if _, err := db.cursors.EnsureDefault(user); err != nil {
		return nil, fmt.Errorf("ensure default cursor for %s: %w", user, err)
	}

	rec, err := db.cursors.Get(name, user)
	if errors.Is(err, cursor.ErrNotFound) {
		db.logger.Warn("cursor not found, using primary database", "cursor", name, "user", user)
		return db.handle(Target{Path: db.cfg.Paths.DBPath, User: user})
	}
	if err != nil {
		return nil, err
	}

	return db.handle(Target{
		Path:      rec.DatabasePath,
		Cursor:    name,
		User:      user,
		Meta:      rec.MetaContext,
		Project:   rec.DefaultProject,
		Namespace: rec.DefaultNamespace,
	})
}

func (db *DB) handle(t Target) (*Handle, error) {
	d := address.Defaults{Project: t.Project, Namespace: t.Namespace}
	if err := d.Validate(db.cfg.Delimiter); err != nil {
		return nil, fmt.Errorf("cursor %s defaults: %w", t.Cursor, err)
	}
	s, err := db.store(t.Path)
	if err != nil {
		return nil, err
	}
	return &Handle{
		st:     s,
		target: t,
		tr:     meta.New(t.Meta),
		resolver: address.Resolver{
			Delimiter: db.cfg.Delimiter,
			Project:   t.Project,
			Namespace: t.Namespace,
		},
	}, nil
}

// store returns the cached store for path, opening it if needed.
func (db *DB) store(path string) (*store.Store, error) {
	key := filepath.Clean(path)

	db.mu.Lock()
	defer db.mu.Unlock()

	if s, ok := db.stores[key]; ok {
		return s, nil
	}

	opts := []store.Option{
		store.WithBusyTimeout(db.cfg.BusyTimeout),
		store.WithLogger(db.logger),
	}
	if db.cfg.Clock != nil {
		opts = append(opts, store.WithClock(db.cfg.Clock))
	}
	s, err := store.Open(key, opts...)
	if err != nil {
		return nil, err
	}
	db.stores[key] = s
	return s, nil
}
