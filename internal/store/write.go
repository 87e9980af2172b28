package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/roach88/prontodb/internal/address"
)

// Set stores value at addr with no explicit TTL. In a TTL-enabled namespace
// the namespace default applies.
func (s *Store) Set(ctx context.Context, addr address.Address3, value string) error {
	return s.set(ctx, addr, value, 0, false)
}

// SetWithTTL stores value at addr expiring after ttl, overriding the
// namespace default. The namespace must be TTL-enabled; otherwise a
// configuration error is returned and nothing is written. TTLs are kept to
// whole seconds.
func (s *Store) SetWithTTL(ctx context.Context, addr address.Address3, value string, ttl time.Duration) error {
	if ttl < time.Second {
		return configError("set", "ttl must be at least 1s, got %s", ttl)
	}
	return s.set(ctx, addr, value, ttl, true)
}

// set upserts the row in one transaction. An existing live row keeps its
// created_at; an expired one is treated as new.
func (s *Store) set(ctx context.Context, addr address.Address3, value string, ttl time.Duration, hasTTL bool) error {
	if err := checkAddress("set", addr); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageError("set", "begin transaction", err)
	}
	defer tx.Rollback()

	ns, registered, err := lookupNamespace(ctx, tx, addr.Project, addr.Namespace)
	if err != nil {
		return storageError("set", "read namespace", err)
	}

	now := s.now()
	var expiresAt sql.NullInt64
	switch {
	case registered && ns.TTL:
		effective := ns.DefaultTTL
		if hasTTL {
			effective = ttl
		}
		if effective > 0 {
			expiresAt = sql.NullInt64{Int64: now + int64(effective/time.Second), Valid: true}
		}
	case hasTTL:
		return configError("set", "TTL not allowed: namespace %s.%s is not TTL-enabled", addr.Project, addr.Namespace)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE kv
		SET value = ?,
		    created_at = CASE WHEN expires_at IS NOT NULL AND expires_at <= ? THEN ? ELSE created_at END,
		    updated_at = ?,
		    expires_at = ?
		WHERE project = ? AND namespace = ? AND key = ? AND context IS ?
	`, value, now, now, now, expiresAt, addr.Project, addr.Namespace, addr.Key, contextArg(addr))
	if err != nil {
		return storageError("set", "update value", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("set", "update value", err)
	}

	if n == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO kv (project, namespace, key, context, value, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, addr.Project, addr.Namespace, addr.Key, contextArg(addr), value, now, now, expiresAt)
		if err != nil {
			return storageError("set", "insert value", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageError("set", "commit", err)
	}
	return nil
}

// Delete removes the live row at addr. It reports whether a live row was
// removed; an expired leftover is reclaimed but reported as absent.
func (s *Store) Delete(ctx context.Context, addr address.Address3) (bool, error) {
	if err := checkAddress("delete", addr); err != nil {
		return false, err
	}

	now := s.now()
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM kv
		WHERE project = ? AND namespace = ? AND key = ? AND context IS ?
		  AND (expires_at IS NULL OR expires_at > ?)
	`, addr.Project, addr.Namespace, addr.Key, contextArg(addr), now)
	if err != nil {
		return false, storageError("delete", "delete value", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError("delete", "delete value", err)
	}
	if n > 0 {
		return true, nil
	}

	if err := s.reclaim(ctx, addr, now); err != nil {
		return false, storageError("delete", "reclaim expired value", err)
	}
	return false, nil
}

// CreateTTLNamespace registers (project, namespace) as TTL-enabled with the
// given default, or updates the default of an existing registration.
// Existing rows keep their expiry.
func (s *Store) CreateTTLNamespace(ctx context.Context, project, namespace string, defaultTTL time.Duration) error {
	if project == "" || namespace == "" {
		return configError("create ttl namespace", "project and namespace are required")
	}
	if defaultTTL < time.Second {
		return configError("create ttl namespace", "default ttl must be at least 1s, got %s", defaultTTL)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sys_namespaces (project, namespace, is_ttl, default_ttl, created_at)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(project, namespace) DO UPDATE SET
			is_ttl = 1,
			default_ttl = excluded.default_ttl
	`, project, namespace, int64(defaultTTL/time.Second), s.now())
	if err != nil {
		return storageError("create ttl namespace", "upsert namespace", err)
	}

	s.logger.Debug("registered ttl namespace",
		"project", project, "namespace", namespace, "default_ttl", defaultTTL)
	return nil
}

// reclaim deletes the row at addr if it has expired as of now.
func (s *Store) reclaim(ctx context.Context, addr address.Address3, now int64) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM kv
		WHERE project = ? AND namespace = ? AND key = ? AND context IS ?
		  AND expires_at IS NOT NULL AND expires_at <= ?
	`, addr.Project, addr.Namespace, addr.Key, contextArg(addr), now)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("reclaimed expired value", "address", addr.String())
	}
	return nil
}

func checkAddress(op string, addr address.Address3) error {
	if addr.Project == "" || addr.Namespace == "" || addr.Key == "" {
		return configError(op, "incomplete address %q", addr.String())
	}
	return nil
}

// contextArg maps an absent context to NULL for "context IS ?" comparisons.
func contextArg(addr address.Address3) any {
	if !addr.HasContext {
		return nil
	}
	return addr.Context
}
