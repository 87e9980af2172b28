package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/prontodb/internal/address"
)

// Entry is one live row returned by Scan.
type Entry struct {
	Address   address.Address3
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time

	// ExpiresAt is the zero time for values that never expire.
	ExpiresAt time.Time
}

// Expires reports whether the entry has an expiry.
func (e Entry) Expires() bool {
	return !e.ExpiresAt.IsZero()
}

// Namespace is a namespace registry entry.
type Namespace struct {
	Project    string
	Namespace  string
	TTL        bool
	DefaultTTL time.Duration
	CreatedAt  time.Time
}

// Get returns the value at addr. found is false when no live row matches;
// an expired row is deleted before reporting absence.
func (s *Store) Get(ctx context.Context, addr address.Address3) (value string, found bool, err error) {
	if err := checkAddress("get", addr); err != nil {
		return "", false, err
	}

	var expiresAt sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT value, expires_at
		FROM kv
		WHERE project = ? AND namespace = ? AND key = ? AND context IS ?
	`, addr.Project, addr.Namespace, addr.Key, contextArg(addr)).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageError("get", "query value", err)
	}

	now := s.now()
	if expiresAt.Valid && expiresAt.Int64 <= now {
		if err := s.reclaim(ctx, addr, now); err != nil {
			return "", false, storageError("get", "reclaim expired value", err)
		}
		return "", false, nil
	}
	return value, true, nil
}

// Keys lists the live keys in (project, namespace) as key[__context],
// ordered by key then context. An empty prefix matches every key.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Keys(ctx context.Context, project, namespace, prefix string) ([]string, error) {
	entries, err := s.scan(ctx, "keys", project, namespace, prefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Address.KeyWithContext())
	}
	return keys, nil
}

// Scan returns the live entries in (project, namespace), ordered by key then
// context, optionally filtered by key prefix. Expired rows are skipped but
// not deleted.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Scan(ctx context.Context, project, namespace, prefix string) ([]Entry, error) {
	return s.scan(ctx, "scan", project, namespace, prefix)
}

func (s *Store) scan(ctx context.Context, op, project, namespace, prefix string) ([]Entry, error) {
	// NULL contexts sort before any text context.
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, context, value, created_at, updated_at, expires_at
		FROM kv
		WHERE project = ? AND namespace = ?
		  AND (expires_at IS NULL OR expires_at > ?)
		  AND (? = '' OR instr(key, ?) = 1)
		ORDER BY key COLLATE BINARY ASC, context COLLATE BINARY ASC
	`, project, namespace, s.now(), prefix, prefix)
	if err != nil {
		return nil, storageError(op, "query entries", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e          Entry
			key, value string
			ctxCol     sql.NullString
			created    int64
			updated    int64
			expires    sql.NullInt64
		)
		if err := rows.Scan(&key, &ctxCol, &value, &created, &updated, &expires); err != nil {
			return nil, storageError(op, "scan entry", err)
		}
		e.Address = address.New3(project, namespace, key)
		if ctxCol.Valid {
			e.Address = e.Address.WithContext(ctxCol.String)
		}
		e.Value = value
		e.CreatedAt = time.Unix(created, 0).UTC()
		e.UpdatedAt = time.Unix(updated, 0).UTC()
		if expires.Valid {
			e.ExpiresAt = time.Unix(expires.Int64, 0).UTC()
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(op, "iterate entries", err)
	}
	return entries, nil
}

// Projects lists the distinct projects holding at least one live row.
//
// Returns an empty slice (not nil) if the store holds no live data.
func (s *Store) Projects(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "projects", `
		SELECT DISTINCT project
		FROM kv
		WHERE expires_at IS NULL OR expires_at > ?
		ORDER BY project COLLATE BINARY ASC
	`, s.now())
}

// Namespaces lists the distinct namespaces of project holding at least one
// live row. Registered TTL namespaces with no live rows are not listed.
func (s *Store) Namespaces(ctx context.Context, project string) ([]string, error) {
	return s.distinct(ctx, "namespaces", `
		SELECT DISTINCT namespace
		FROM kv
		WHERE project = ? AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY namespace COLLATE BINARY ASC
	`, project, s.now())
}

func (s *Store) distinct(ctx context.Context, op, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageError(op, "query", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storageError(op, "scan", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError(op, "iterate", err)
	}
	return out, nil
}

// NamespaceTTL returns the registry entry for (project, namespace). found is
// false for standard (unregistered) namespaces.
func (s *Store) NamespaceTTL(ctx context.Context, project, namespace string) (Namespace, bool, error) {
	ns, found, err := lookupNamespace(ctx, s.db, project, namespace)
	if err != nil {
		return Namespace{}, false, storageError("namespace ttl", "read namespace", err)
	}
	return ns, found, nil
}

// TTLNamespaces lists every TTL-enabled namespace ordered by project then
// namespace.
func (s *Store) TTLNamespaces(ctx context.Context) ([]Namespace, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project, namespace, is_ttl, default_ttl, created_at
		FROM sys_namespaces
		WHERE is_ttl = 1
		ORDER BY project COLLATE BINARY ASC, namespace COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, storageError("ttl namespaces", "query", err)
	}
	defer rows.Close()

	out := []Namespace{}
	for rows.Next() {
		ns, err := scanNamespace(rows)
		if err != nil {
			return nil, storageError("ttl namespaces", "scan", err)
		}
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, storageError("ttl namespaces", "iterate", err)
	}
	return out, nil
}

// rowQueryer is satisfied by *sql.DB and *sql.Tx.
type rowQueryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func lookupNamespace(ctx context.Context, q rowQueryer, project, namespace string) (Namespace, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT project, namespace, is_ttl, default_ttl, created_at
		FROM sys_namespaces
		WHERE project = ? AND namespace = ?
	`, project, namespace)
	ns, err := scanNamespace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Namespace{}, false, nil
	}
	if err != nil {
		return Namespace{}, false, fmt.Errorf("lookup namespace %s.%s: %w", project, namespace, err)
	}
	return ns, true, nil
}

func scanNamespace(r rowScanner) (Namespace, error) {
	var (
		ns         Namespace
		isTTL      int
		defaultTTL sql.NullInt64
		created    int64
	)
	if err := r.Scan(&ns.Project, &ns.Namespace, &isTTL, &defaultTTL, &created); err != nil {
		return Namespace{}, err
	}
	ns.TTL = isTTL != 0
	if defaultTTL.Valid {
		ns.DefaultTTL = time.Duration(defaultTTL.Int64) * time.Second
	}
	ns.CreatedAt = time.Unix(created, 0).UTC()
	return ns, nil
}
