// Package cursor persists named database cursors per user.
//
// A cursor binds (name, user) to a database file plus optional meta context
// and default project/namespace. Each cursor is one JSON file:
//
//	<data>/<short>/cursors/<name>.cursor          user "default"
//	<data>/<short>/cursors/<name>.<user>.cursor   any other user
//
// where <short> is the target database's short name. Records written before
// scoping existed live in <data>/cursors/ and are still read, after every
// scoped directory, until migrated.
package cursor

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/prontodb/internal/address"
	"github.com/roach88/prontodb/internal/paths"
)

const (
	// DefaultUser is the synthetic user for callers that name none.
	DefaultUser = "default"

	// DefaultCursor is the cursor created for every user on first use.
	DefaultCursor = "default"

	fileExt = ".cursor"
)

// ErrNotFound is returned when no readable record exists for (name, user).
var ErrNotFound = errors.New("cursor not found")

// Record is the persisted form of a cursor.
type Record struct {
	DatabasePath     string    `json:"database_path"`
	DefaultProject   string    `json:"default_project,omitempty"`
	DefaultNamespace string    `json:"default_namespace,omitempty"`
	MetaContext      string    `json:"meta_context,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	User             string    `json:"user"`
}

// SetOptions carries the optional parts of a cursor.
type SetOptions struct {
	Meta             string
	DefaultProject   string
	DefaultNamespace string
}

// Clock supplies record creation times.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for CreatedAt.
func WithClock(c Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store reads and writes cursor records under a data directory.
type Store struct {
	paths  paths.Paths
	clock  Clock
	logger *slog.Logger
}

// New returns a Store rooted at p.DataDir. Nothing is touched on disk until
// the first write.
func New(p paths.Paths, opts ...Option) *Store {
	s := &Store{paths: p, clock: systemClock{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShortName derives the scope directory for a database path: the primary
// database is always "main"; "pronto.<n>.prdb" at its default location is
// "<n>"; anything else is the file stem.
func (s *Store) ShortName(dbPath string) string {
	clean := filepath.Clean(dbPath)
	if clean == filepath.Clean(s.paths.DBPath) ||
		clean == filepath.Clean(s.paths.DatabasePath(paths.PrimaryName)) {
		return paths.PrimaryName
	}
	base := filepath.Base(clean)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if n, ok := strings.CutPrefix(stem, "pronto."); ok && n != "" &&
		clean == filepath.Clean(s.paths.DatabasePath(n)) {
		return n
	}
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		return paths.PrimaryName
	}
	return stem
}

// Get returns the record for (name, user), searching scoped directories
// ("main" first, then the rest by name) and finally the legacy directory.
// A missing or unreadable record, or an invalid name or user, yields
// ErrNotFound.
func (s *Store) Get(name, user string) (Record, error) {
	if !validPair(name, user) {
		return Record{}, fmt.Errorf("cursor %q for user %q: %w", name, user, ErrNotFound)
	}
	locs, err := s.locations(name, user)
	if err != nil {
		return Record{}, fmt.Errorf("get cursor %s: %w", name, err)
	}
	for _, loc := range locs {
		rec, ok, err := s.readRecord(loc)
		if err != nil {
			return Record{}, fmt.Errorf("get cursor %s: %w", name, err)
		}
		if ok {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("cursor %q for user %q: %w", name, user, ErrNotFound)
}

// Set writes the record for (name, user) into the scope of dbPath,
// replacing any earlier record for the pair wherever it lived.
func (s *Store) Set(name, dbPath, user string, opts SetOptions) (Record, error) {
	if err := ValidateCursorName(name); err != nil {
		return Record{}, err
	}
	if err := ValidateUser(user); err != nil {
		return Record{}, err
	}
	if opts.Meta != "" {
		if err := ValidateMeta(opts.Meta); err != nil {
			return Record{}, err
		}
	}
	d := address.Defaults{Project: opts.DefaultProject, Namespace: opts.DefaultNamespace}
	if err := d.Validate(address.DefaultDelimiter); err != nil {
		return Record{}, err
	}
	if dbPath == "" {
		return Record{}, fmt.Errorf("set cursor %s: database path is required", name)
	}
	if abs, err := filepath.Abs(dbPath); err == nil {
		dbPath = abs
	}

	rec := Record{
		DatabasePath:     dbPath,
		DefaultProject:   opts.DefaultProject,
		DefaultNamespace: opts.DefaultNamespace,
		MetaContext:      opts.Meta,
		CreatedAt:        s.clock.Now().UTC().Truncate(time.Second),
		User:             user,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Record{}, fmt.Errorf("set cursor %s: %w", name, err)
	}

	target := filepath.Join(s.paths.CursorDir(s.ShortName(dbPath)), fileName(name, user))
	if err := writeAtomic(target, data); err != nil {
		return Record{}, fmt.Errorf("set cursor %s: %w", name, err)
	}

	locs, err := s.locations(name, user)
	if err != nil {
		return Record{}, fmt.Errorf("set cursor %s: %w", name, err)
	}
	for _, loc := range locs {
		if loc == target {
			continue
		}
		if err := os.Remove(loc); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Record{}, fmt.Errorf("set cursor %s: remove stale record: %w", name, err)
		}
	}

	s.logger.Debug("cursor set", "name", name, "user", user, "path", target)
	return rec, nil
}

// EnsureDefault creates the user's "default" cursor pointing at the primary
// database unless one already exists.
func (s *Store) EnsureDefault(user string) (Record, error) {
	rec, err := s.Get(DefaultCursor, user)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Record{}, err
	}
	return s.Set(DefaultCursor, s.paths.DBPath, user, SetOptions{})
}

// Delete removes every copy of (name, user). It reports whether anything
// was removed.
func (s *Store) Delete(name, user string) (bool, error) {
	if !validPair(name, user) {
		return false, nil
	}
	locs, err := s.locations(name, user)
	if err != nil {
		return false, fmt.Errorf("delete cursor %s: %w", name, err)
	}
	removed := false
	for _, loc := range locs {
		err := os.Remove(loc)
		switch {
		case err == nil:
			removed = true
		case errors.Is(err, fs.ErrNotExist):
		default:
			return removed, fmt.Errorf("delete cursor %s: %w", name, err)
		}
	}
	return removed, nil
}

// List returns the user's cursors keyed by name. When the same name exists
// in several scopes the highest-priority copy wins.
func (s *Store) List(user string) (map[string]Record, error) {
	dirs, err := s.searchDirs()
	if err != nil {
		return nil, fmt.Errorf("list cursors: %w", err)
	}

	out := make(map[string]Record)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list cursors: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			name, ok := matchFile(e.Name(), user)
			if !ok {
				continue
			}
			if _, seen := out[name]; seen {
				continue
			}
			rec, ok, err := s.readRecord(filepath.Join(dir, e.Name()))
			if err != nil {
				return nil, fmt.Errorf("list cursors: %w", err)
			}
			if ok {
				out[name] = rec
			}
		}
	}
	return out, nil
}

// MigrateLegacy moves (name, user) from the legacy directory into the scope
// of the database it points at. It returns false when there is no legacy
// record. If the scoped record already exists the legacy copy is simply
// dropped.
func (s *Store) MigrateLegacy(name, user string) (bool, error) {
	if !validPair(name, user) {
		return false, nil
	}
	legacy := filepath.Join(s.paths.LegacyCursorDir(), fileName(name, user))
	data, err := os.ReadFile(legacy)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("migrate cursor %s: %w", name, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return false, fmt.Errorf("migrate cursor %s: corrupt record %s: %w", name, legacy, err)
	}

	target := filepath.Join(s.paths.CursorDir(s.ShortName(rec.DatabasePath)), fileName(name, user))
	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		if err := writeAtomic(target, data); err != nil {
			return false, fmt.Errorf("migrate cursor %s: %w", name, err)
		}
	} else if err != nil {
		return false, fmt.Errorf("migrate cursor %s: %w", name, err)
	}

	if err := os.Remove(legacy); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("migrate cursor %s: remove legacy record: %w", name, err)
	}

	s.logger.Info("migrated legacy cursor", "name", name, "user", user, "to", target)
	return true, nil
}

// MigrateAllLegacy migrates every legacy record belonging to user and
// returns how many were moved.
func (s *Store) MigrateAllLegacy(user string) (int, error) {
	entries, err := os.ReadDir(s.paths.LegacyCursorDir())
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migrate legacy cursors: %w", err)
	}

	migrated := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := matchFile(e.Name(), user)
		if !ok {
			continue
		}
		moved, err := s.MigrateLegacy(name, user)
		if err != nil {
			return migrated, err
		}
		if moved {
			migrated++
		}
	}
	return migrated, nil
}

// searchDirs lists cursor directories in lookup priority order: the primary
// scope, other scopes by name, then the legacy directory.
func (s *Store) searchDirs() ([]string, error) {
	dirs := []string{s.paths.CursorDir(paths.PrimaryName)}

	entries, err := os.ReadDir(s.paths.DataDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	// os.ReadDir returns entries sorted by name.
	for _, e := range entries {
		if !e.IsDir() || e.Name() == paths.PrimaryName || e.Name() == filepath.Base(s.paths.LegacyCursorDir()) {
			continue
		}
		dirs = append(dirs, s.paths.CursorDir(e.Name()))
	}

	return append(dirs, s.paths.LegacyCursorDir()), nil
}

func (s *Store) locations(name, user string) ([]string, error) {
	dirs, err := s.searchDirs()
	if err != nil {
		return nil, err
	}
	file := fileName(name, user)
	locs := make([]string, len(dirs))
	for i, dir := range dirs {
		locs[i] = filepath.Join(dir, file)
	}
	return locs, nil
}

// readRecord loads one record. A missing or corrupt file reports ok=false;
// only I/O failures are errors.
func (s *Store) readRecord(path string) (Record, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil || rec.DatabasePath == "" {
		s.logger.Warn("ignoring corrupt cursor record", "path", path, "error", err)
		return Record{}, false, nil
	}
	return rec, true, nil
}

// validPair reports whether (name, user) can name a cursor file at all.
func validPair(name, user string) bool {
	return ValidateCursorName(name) == nil && ValidateUser(user) == nil
}

func fileName(name, user string) string {
	if user == DefaultUser {
		return name + fileExt
	}
	return name + "." + user + fileExt
}

// matchFile extracts the cursor name from a file name if the file belongs
// to user. For DefaultUser only files without a user segment match.
func matchFile(file, user string) (string, bool) {
	stem, ok := strings.CutSuffix(file, fileExt)
	if !ok || stem == "" || strings.HasPrefix(stem, ".") {
		return "", false
	}
	if user == DefaultUser {
		return stem, !strings.Contains(stem, ".")
	}
	name, ok := strings.CutSuffix(stem, "."+user)
	if !ok || name == "" || strings.Contains(name, ".") {
		return "", false
	}
	return name, true
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cursor directory: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+"."+uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace cursor file: %w", err)
	}
	return nil
}
