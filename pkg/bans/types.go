// Package bans manages account bans: issuing them, lifting them, and the
// periodic sweep that expires temporary bans and restores account status.
package bans

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no matching ban exists
var ErrNotFound = errors.New("ban not found")

// Type distinguishes temporary bans, which the sweep lifts automatically,
// from permanent ones.
type Type string

const (
	TypeTemporary Type = "temporary"
	TypePermanent Type = "permanent"
)

// Ban represents one ban record. UnbanDate and DurationHours are set iff
// the ban is temporary.
type Ban struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	BanCode       string     `json:"ban_code"`
	Reason        string     `json:"reason,omitempty"`
	Type          Type       `json:"type"`
	BanDate       time.Time  `json:"ban_date"`
	UnbanDate     *time.Time `json:"unban_date,omitempty"`
	DurationHours *int       `json:"duration_hours,omitempty"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     time.Time  `json:"created_at"`
}
