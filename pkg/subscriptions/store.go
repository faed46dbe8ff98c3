package subscriptions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const subscriptionColumns = `id, user_id, role_id, status, start_date, end_date, auto_renew, created_at, updated_at`

// Store persists subscription records. The invalidate hook is called with
// the affected account after every mutation so the entitlement cache drops
// that account's snapshot.
type Store struct {
	db         *sql.DB
	invalidate func(accountID int64)
}

// NewStore creates a new subscription store. invalidate may be nil.
func NewStore(db *sql.DB, invalidate func(accountID int64)) *Store {
	return &Store{db: db, invalidate: invalidate}
}

func (s *Store) notifyChange(accountID int64) {
	if s.invalidate != nil {
		s.invalidate(accountID)
	}
}

// Create inserts a new subscription record. Nothing prevents two counting
// rows for the same account at the database level; readers always take
// the most recent one.
func (s *Store) Create(ctx context.Context, sub *Subscription) error {
	if !sub.Status.Valid() {
		return fmt.Errorf("invalid subscription status: %s", sub.Status)
	}

	now := time.Now().UTC()
	if sub.StartDate.IsZero() {
		sub.StartDate = now
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO subscriptions (user_id, role_id, status, start_date, end_date, auto_renew, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		sub.UserID, sub.RoleID, sub.Status, sub.StartDate, sub.EndDate, sub.AutoRenew, now, now,
	).Scan(&sub.ID)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now

	s.notifyChange(sub.UserID)
	return nil
}

// Get returns a subscription by ID
func (s *Store) Get(ctx context.Context, id int64) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	return scanSubscription(row)
}

// GetActiveForAccount returns the account's most recent counting
// subscription, or ErrNotFound when the account has none. The row may
// already be past its end date; callers decide what that means.
func (s *Store) GetActiveForAccount(ctx context.Context, accountID int64) (*Subscription, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1 AND status IN ('active', 'trial')
		ORDER BY start_date DESC
		LIMIT 1`, accountID)
	return scanSubscription(row)
}

// ListForAccount returns all subscription records for an account, newest
// first
func (s *Store) ListForAccount(ctx context.Context, accountID int64) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY start_date DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Cancel marks a counting subscription as cancelled. Cancelling an
// already-terminal subscription returns ErrNotFound.
func (s *Store) Cancel(ctx context.Context, id int64, now time.Time) error {
	var accountID int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE subscriptions
		SET status = 'cancelled', auto_renew = FALSE, updated_at = $1
		WHERE id = $2 AND status IN ('active', 'trial')
		RETURNING user_id`,
		now, id,
	).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	s.notifyChange(accountID)
	return nil
}

// markExpired flips one subscription to expired. The update is guarded on
// the row still counting, so concurrent observers of the same expired
// subscription flip it exactly once.
func (s *Store) markExpired(ctx context.Context, id int64, now time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions
		SET status = 'expired', updated_at = $1
		WHERE id = $2 AND status IN ('active', 'trial')`,
		now, id)
	if err != nil {
		return false, fmt.Errorf("failed to expire subscription: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ExpireDue flips every counting subscription whose end date has passed
// and returns how many rows changed. Safe to run repeatedly: each row
// flips once.
func (s *Store) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE subscriptions
		SET status = 'expired', updated_at = $1
		WHERE status IN ('active', 'trial')
		  AND end_date IS NOT NULL
		  AND end_date <= $2
		RETURNING user_id`,
		now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire due subscriptions: %w", err)
	}
	defer rows.Close()

	var count int64
	for rows.Next() {
		var accountID int64
		if err := rows.Scan(&accountID); err != nil {
			return count, err
		}
		count++
		s.notifyChange(accountID)
	}
	return count, rows.Err()
}

// scanner matches *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSubscription(row scanner) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.ID, &sub.UserID, &sub.RoleID, &sub.Status,
		&sub.StartDate, &sub.EndDate, &sub.AutoRenew,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}
	return &sub, nil
}
