// Package grants implements per-account permission overrides. Grants live
// in a flat key namespace of their own, layered independently of the role
// feature tree; the two are consulted separately and never merged.
package grants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when no matching grant exists
var ErrNotFound = errors.New("grant not found")

// Grant represents one permission override for an account. A nil
// ExpiresAt means the grant never expires.
type Grant struct {
	UserID        int64      `json:"user_id"`
	PermissionKey string     `json:"permission_key"`
	Value         string     `json:"permission_value"`
	GrantedBy     *int64     `json:"granted_by,omitempty"`
	GrantedAt     time.Time  `json:"granted_at"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// Allowed reports whether the grant's value is the truthy form
func (g *Grant) Allowed() bool {
	return g.Value == "true"
}

// Active reports whether the grant is unexpired at the given time
func (g *Grant) Active(now time.Time) bool {
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

const grantColumns = `user_id, permission_key, permission_value, granted_by, granted_at, expires_at`

// Store persists custom grants. Unlike role edits, grant mutations are
// account-scoped, so the invalidate hook drops only that account's cache
// entry.
type Store struct {
	db         *sql.DB
	invalidate func(accountID int64)
}

// NewStore creates a new grant store. invalidate may be nil.
func NewStore(db *sql.DB, invalidate func(accountID int64)) *Store {
	return &Store{db: db, invalidate: invalidate}
}

func (s *Store) notifyChange(accountID int64) {
	if s.invalidate != nil {
		s.invalidate(accountID)
	}
}

// Grant inserts an override row, replacing any existing grant for the
// same account and key.
func (s *Store) Grant(ctx context.Context, grant *Grant) error {
	if grant.PermissionKey == "" {
		return fmt.Errorf("permission key is required")
	}
	if grant.Value == "" {
		grant.Value = "true"
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO custom_grants (user_id, permission_key, permission_value, granted_by, granted_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, permission_key)
		DO UPDATE SET permission_value = excluded.permission_value,
		              granted_by = excluded.granted_by,
		              granted_at = excluded.granted_at,
		              expires_at = excluded.expires_at`,
		grant.UserID, grant.PermissionKey, grant.Value, grant.GrantedBy, now, grant.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to upsert grant: %w", err)
	}
	grant.GrantedAt = now

	s.notifyChange(grant.UserID)
	return nil
}

// Revoke deletes the grant for the given account and key. Revoking a
// grant that does not exist returns ErrNotFound.
func (s *Store) Revoke(ctx context.Context, accountID int64, key string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM custom_grants WHERE user_id = $1 AND permission_key = $2`,
		accountID, key)
	if err != nil {
		return fmt.Errorf("failed to revoke grant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.notifyChange(accountID)
	return nil
}

// ListActive returns the account's unexpired grants
func (s *Store) ListActive(ctx context.Context, accountID int64, now time.Time) ([]*Grant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+grantColumns+`
		FROM custom_grants
		WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY permission_key`,
		accountID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	defer rows.Close()

	var result []*Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.UserID, &g.PermissionKey, &g.Value, &g.GrantedBy, &g.GrantedAt, &g.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		result = append(result, &g)
	}
	return result, rows.Err()
}

// HasGrant reports whether the account holds an unexpired truthy grant
// for the key
func (s *Store) HasGrant(ctx context.Context, accountID int64, key string, now time.Time) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT permission_value
		FROM custom_grants
		WHERE user_id = $1 AND permission_key = $2
		  AND (expires_at IS NULL OR expires_at > $3)`,
		accountID, key, now,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up grant: %w", err)
	}
	return value == "true", nil
}

// PurgeExpired deletes grants whose expiry has passed. Expired rows
// already have no effect on lookups, so no cache invalidation is needed.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM custom_grants WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired grants: %w", err)
	}
	return result.RowsAffected()
}
