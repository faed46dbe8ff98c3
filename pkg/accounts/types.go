// Package accounts defines the account model shared by the entitlement
// resolver, subscription lifecycle, and ban sweep.
package accounts

import "time"

// Status represents an account's lifecycle status
type Status string

const (
	StatusActive    Status = "active"
	StatusBanned    Status = "banned"
	StatusSuspended Status = "suspended"
)

// Account represents a registered account
type Account struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Status    Status    `json:"status"`
	RoleID    *int64    `json:"role_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
