package entitlements

import (
	"context"
	"errors"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
)

// Denial reasons carried in decision payloads
const (
	ReasonFeatureUnavailable   = "feature_unavailable"
	ReasonLimitExceeded        = "limit_exceeded"
	ReasonInsufficientRole     = "insufficient_role"
	ReasonSubscriptionRequired = "subscription_required"
	ReasonAdminOnly            = "admin_only"
	ReasonLookupFailed         = "lookup_failed"
)

// Check names used for metrics and logging
const (
	checkFeature      = "feature"
	checkLimit        = "limit"
	checkMinRole      = "min_role"
	checkSubscription = "subscription"
	checkAdmin        = "admin"
)

// SubscriptionSource answers whether an account currently has an active
// paid subscription.
type SubscriptionSource interface {
	IsActive(ctx context.Context, accountID int64) (bool, error)
}

// UsageFunc returns the account's current usage count for a limit check,
// for example the number of active keys it holds.
type UsageFunc func(ctx context.Context, accountID int64) (int, error)

// Decision is the uniform outcome of an access check.
type Decision struct {
	Allowed         bool   `json:"allowed"`
	Reason          string `json:"reason,omitempty"`
	UpgradeRequired bool   `json:"upgrade_required,omitempty"`
	Role            string `json:"role,omitempty"`
	Limit           *int   `json:"limit,omitempty"`
	Current         *int   `json:"current,omitempty"`
	Remaining       *int   `json:"remaining,omitempty"`
}

// Checker is the access decision layer. Resolver and subscription lookup
// failures fail open on every check except RequireAdmin, which fails
// closed: a degraded backing store may grant a free user a paid feature
// for a while, but never grants administrative access.
type Checker struct {
	resolver *Resolver
	subs     SubscriptionSource
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewChecker creates a new access checker
func NewChecker(resolver *Resolver, subs SubscriptionSource, metrics *observability.Metrics, logger *observability.Logger) *Checker {
	return &Checker{
		resolver: resolver,
		subs:     subs,
		metrics:  metrics,
		logger:   logger,
	}
}

// RequireFeature allows the request when the account's role enables the
// dot-separated feature path. Missing entitlements deny; lookup failures
// fail open.
func (c *Checker) RequireFeature(ctx context.Context, accountID int64, path string) Decision {
	role, err := c.resolver.Resolve(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.record(checkFeature, Decision{
				Reason:          ReasonFeatureUnavailable,
				UpgradeRequired: true,
			})
		}
		return c.failOpen(ctx, checkFeature, err)
	}

	if !HasFeature(role, path) {
		return c.record(checkFeature, Decision{
			Reason:          ReasonFeatureUnavailable,
			UpgradeRequired: true,
			Role:            role.Name,
		})
	}

	return c.record(checkFeature, Decision{Allowed: true, Role: role.Name})
}

// RequireLimit allows the request when the account's current usage, as
// reported by usage, is strictly below the role's limit for key. Usage
// accessor failures fail open like resolver failures.
func (c *Checker) RequireLimit(ctx context.Context, accountID int64, key string, usage UsageFunc) Decision {
	role, err := c.resolver.Resolve(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.record(checkLimit, Decision{
				Reason:          ReasonLimitExceeded,
				UpgradeRequired: true,
			})
		}
		return c.failOpen(ctx, checkLimit, err)
	}

	current, err := usage(ctx, accountID)
	if err != nil {
		return c.failOpen(ctx, checkLimit, err)
	}

	result := CheckLimit(role, key, current)
	decision := Decision{
		Allowed: result.Allowed,
		Role:    role.Name,
	}
	if !result.Unlimited {
		decision.Limit = intPtr(result.Limit)
		decision.Current = intPtr(result.Current)
		decision.Remaining = intPtr(result.Remaining)
	}
	if !result.Allowed {
		decision.Reason = ReasonLimitExceeded
		decision.UpgradeRequired = true
	}

	return c.record(checkLimit, decision)
}

// RequireMinRole allows the request when the account's role ranks at or
// above the named minimum role.
func (c *Checker) RequireMinRole(ctx context.Context, accountID int64, minRole string) Decision {
	role, err := c.resolver.Resolve(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.record(checkMinRole, Decision{
				Reason:          ReasonInsufficientRole,
				UpgradeRequired: true,
			})
		}
		return c.failOpen(ctx, checkMinRole, err)
	}

	if role.Rank < roles.RankOf(minRole) {
		return c.record(checkMinRole, Decision{
			Reason:          ReasonInsufficientRole,
			UpgradeRequired: true,
			Role:            role.Name,
		})
	}

	return c.record(checkMinRole, Decision{Allowed: true, Role: role.Name})
}

// RequireActiveSubscription allows the request when the account has an
// active subscription. Admins pass without one.
func (c *Checker) RequireActiveSubscription(ctx context.Context, accountID int64) Decision {
	role, err := c.resolver.Resolve(ctx, accountID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return c.failOpen(ctx, checkSubscription, err)
	}
	if role != nil && role.IsAdmin() {
		return c.record(checkSubscription, Decision{Allowed: true, Role: role.Name})
	}

	active, err := c.subs.IsActive(ctx, accountID)
	if err != nil {
		return c.failOpen(ctx, checkSubscription, err)
	}

	decision := Decision{Allowed: active}
	if role != nil {
		decision.Role = role.Name
	}
	if !active {
		decision.Reason = ReasonSubscriptionRequired
	}

	return c.record(checkSubscription, decision)
}

// RequireAdmin allows the request only when the account's role is the
// admin role by exact name match. Unlike every other check this one fails
// closed: any resolution error denies.
func (c *Checker) RequireAdmin(ctx context.Context, accountID int64) Decision {
	role, err := c.resolver.Resolve(ctx, accountID)
	if err != nil {
		reason := ReasonAdminOnly
		if !errors.Is(err, ErrNotFound) {
			reason = ReasonLookupFailed
			c.logger.WithError(err).WithField("account_id", accountID).
				Warn("admin check failed closed on lookup error")
		}
		return c.record(checkAdmin, Decision{Reason: reason})
	}

	if !role.IsAdmin() {
		return c.record(checkAdmin, Decision{Reason: ReasonAdminOnly, Role: role.Name})
	}

	return c.record(checkAdmin, Decision{Allowed: true, Role: role.Name})
}

// failOpen allows the request after a lookup failure and records the
// degraded outcome
func (c *Checker) failOpen(ctx context.Context, check string, err error) Decision {
	c.logger.WithError(err).WithField("check", check).
		Warn("entitlement lookup failed, allowing request")
	if c.metrics != nil {
		c.metrics.DecisionFailOpen.WithLabelValues(check).Inc()
		c.metrics.DecisionsTotal.WithLabelValues(check, "fail_open").Inc()
	}
	return Decision{Allowed: true, Reason: ReasonLookupFailed}
}

// record counts the decision outcome and returns it unchanged
func (c *Checker) record(check string, d Decision) Decision {
	if c.metrics != nil {
		outcome := "denied"
		if d.Allowed {
			outcome = "allowed"
		}
		c.metrics.DecisionsTotal.WithLabelValues(check, outcome).Inc()
	}
	return d
}

func intPtr(v int) *int {
	return &v
}
