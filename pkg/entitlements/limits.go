package entitlements

import (
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
)

// LimitResult is the outcome of evaluating a usage counter against a
// role's limit for one key.
type LimitResult struct {
	Allowed   bool `json:"allowed"`
	Unlimited bool `json:"unlimited"`
	Limit     int  `json:"limit"`
	Current   int  `json:"current"`
	Remaining int  `json:"remaining"`
}

// LimitExceededError reports a denied limit check to non-HTTP callers
type LimitExceededError struct {
	Key     string
	Current int
	Limit   int
}

func (e *LimitExceededError) Error() string {
	return "limit exceeded for " + e.Key
}

// IsLimitExceeded checks if an error is a limit exceeded error
func IsLimitExceeded(err error) bool {
	_, ok := err.(*LimitExceededError)
	return ok
}

// Err converts a denied result into a typed error; allowed results
// yield nil.
func (r LimitResult) Err(key string) error {
	if r.Allowed {
		return nil
	}
	return &LimitExceededError{Key: key, Current: r.Current, Limit: r.Limit}
}

// CheckLimit evaluates current usage against the role's limit for key.
// The comparison is strict: usage must be below the limit, so an account
// at exactly its ceiling is denied further approvals. A limit of
// roles.Unlimited (-1) always allows and is never compared numerically.
// A key absent from the role's limits behaves as a limit of zero.
func CheckLimit(role *roles.Role, key string, usage int) LimitResult {
	if role == nil {
		return LimitResult{Current: usage}
	}

	limit, ok := role.Limits[key]
	if !ok {
		return LimitResult{Current: usage}
	}

	if limit == roles.Unlimited {
		return LimitResult{
			Allowed:   true,
			Unlimited: true,
			Limit:     roles.Unlimited,
			Current:   usage,
			Remaining: roles.Unlimited,
		}
	}

	remaining := limit - usage
	if remaining < 0 {
		remaining = 0
	}

	return LimitResult{
		Allowed:   usage < limit,
		Limit:     limit,
		Current:   usage,
		Remaining: remaining,
	}
}
