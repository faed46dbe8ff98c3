package subscriptions

import (
	"context"
	"errors"
	"time"
)

// Manager answers subscription activity questions and performs lazy
// expiry: an activity check that observes a past-due subscription flips
// it to expired on the spot instead of waiting for the batch sweep.
type Manager struct {
	store *Store
	now   func() time.Time
}

// NewManager creates a new subscription manager
func NewManager(store *Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// IsActive reports whether the account has a counting subscription. An
// account with no subscription rows is simply inactive, never an error;
// the caller falls back to the default tier. A past-due row is flipped
// to expired before reporting inactive, so repeated checks agree.
func (m *Manager) IsActive(ctx context.Context, accountID int64) (bool, error) {
	sub, err := m.store.GetActiveForAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	now := m.now().UTC()
	if !sub.Expired(now) {
		return true, nil
	}

	// the guarded update makes the flip idempotent under concurrent checks
	if _, err := m.store.markExpired(ctx, sub.ID, now); err != nil {
		return false, err
	}
	m.store.notifyChange(sub.UserID)

	return false, nil
}
