// Package subscriptions manages paid subscription records and their
// lifecycle. Expiry is lazy: expired rows are flipped when observed by an
// activity check, with a periodic batch sweep as the backstop.
package subscriptions

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no matching subscription exists
var ErrNotFound = errors.New("subscription not found")

// Status represents the lifecycle state of a subscription
type Status string

const (
	StatusActive    Status = "active"
	StatusTrial     Status = "trial"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether the status is a known lifecycle state
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusTrial, StatusExpired, StatusCancelled:
		return true
	}
	return false
}

// Counts reports whether the status grants entitlements. Trials count
// as active until they expire.
func (s Status) Counts() bool {
	return s == StatusActive || s == StatusTrial
}

// Subscription represents one subscription record for an account. A nil
// EndDate means a lifetime subscription.
type Subscription struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	RoleID    int64      `json:"role_id"`
	Status    Status     `json:"status"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date,omitempty"`
	AutoRenew bool       `json:"auto_renew"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Expired reports whether the subscription's validity window has closed.
// Lifetime subscriptions never expire.
func (s *Subscription) Expired(now time.Time) bool {
	return s.EndDate != nil && !s.EndDate.After(now)
}
