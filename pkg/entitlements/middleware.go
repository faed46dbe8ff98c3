package entitlements

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/contextkeys"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/httputil"
)

// denialResponse is the JSON body written for a denied request
type denialResponse struct {
	Success         bool   `json:"success"`
	Error           string `json:"error"`
	UpgradeRequired bool   `json:"upgrade_required,omitempty"`
	Limit           *int   `json:"limit,omitempty"`
	Current         *int   `json:"current,omitempty"`
	Remaining       *int   `json:"remaining,omitempty"`
}

// Middleware adapts the access decision layer to HTTP routes. Each guard
// reads the authenticated account from the request context and writes the
// denial payload itself, so handlers behind a guard only ever see allowed
// requests.
type Middleware struct {
	checker *Checker
}

// NewMiddleware creates HTTP guards backed by the given checker
func NewMiddleware(checker *Checker) *Middleware {
	return &Middleware{checker: checker}
}

// RequireFeature guards a route behind a feature path
func (m *Middleware) RequireFeature(path string) mux.MiddlewareFunc {
	return m.guard(func(r *http.Request, accountID int64) Decision {
		return m.checker.RequireFeature(r.Context(), accountID, path)
	})
}

// RequireLimit guards a route behind a usage limit
func (m *Middleware) RequireLimit(key string, usage UsageFunc) mux.MiddlewareFunc {
	return m.guard(func(r *http.Request, accountID int64) Decision {
		return m.checker.RequireLimit(r.Context(), accountID, key, usage)
	})
}

// RequireMinRole guards a route behind a minimum role rank
func (m *Middleware) RequireMinRole(minRole string) mux.MiddlewareFunc {
	return m.guard(func(r *http.Request, accountID int64) Decision {
		return m.checker.RequireMinRole(r.Context(), accountID, minRole)
	})
}

// RequireActiveSubscription guards a route behind an active subscription
func (m *Middleware) RequireActiveSubscription() mux.MiddlewareFunc {
	return m.guard(func(r *http.Request, accountID int64) Decision {
		return m.checker.RequireActiveSubscription(r.Context(), accountID)
	})
}

// RequireAdmin guards a route behind the admin role
func (m *Middleware) RequireAdmin() mux.MiddlewareFunc {
	return m.guard(func(r *http.Request, accountID int64) Decision {
		return m.checker.RequireAdmin(r.Context(), accountID)
	})
}

// guard builds a middleware that runs the decision and either forwards
// the request or writes the denial
func (m *Middleware) guard(decide func(*http.Request, int64) Decision) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID := contextkeys.AccountID(r.Context())
			if accountID == 0 {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			decision := decide(r, accountID)
			if !decision.Allowed {
				WriteDenial(w, decision)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WriteDenial writes the standard denial payload for a decision
func WriteDenial(w http.ResponseWriter, decision Decision) {
	status := http.StatusForbidden
	if decision.Reason == ReasonLimitExceeded {
		status = http.StatusTooManyRequests
	}

	httputil.WriteJSON(w, status, denialResponse{
		Success:         false,
		Error:           denialMessage(decision.Reason),
		UpgradeRequired: decision.UpgradeRequired,
		Limit:           decision.Limit,
		Current:         decision.Current,
		Remaining:       decision.Remaining,
	})
}

// denialMessage maps a decision reason to a user-facing message
func denialMessage(reason string) string {
	switch reason {
	case ReasonFeatureUnavailable:
		return "this feature is not available on your current plan"
	case ReasonLimitExceeded:
		return "plan limit reached"
	case ReasonInsufficientRole:
		return "your current plan does not allow this action"
	case ReasonSubscriptionRequired:
		return "an active subscription is required"
	case ReasonAdminOnly:
		return "administrator access required"
	case ReasonLookupFailed:
		return "access could not be verified"
	default:
		return "access denied"
	}
}
