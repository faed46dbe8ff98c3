// Package entitlements implements the entitlement engine: the cached
// account-to-role resolver, the feature and limit gates, and the access
// decision layer consumed by request handlers.
package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/accounts"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
)

// ErrNotFound is returned when no entitlement exists for an account: the
// account or its role is missing. Callers treat this as a normal denial,
// never as a fault. Any other resolver error is a lookup failure and the
// decision layer applies its fail-open/fail-closed policy.
var ErrNotFound = errors.New("no entitlement found")

// RoleSource provides role definitions to the resolver
type RoleSource interface {
	GetRole(ctx context.Context, roleID int64) (*roles.Role, error)
	GetRoleByName(ctx context.Context, name string) (*roles.Role, error)
}

// AccountSource provides the account's role pointer to the resolver
type AccountSource interface {
	GetRolePointer(ctx context.Context, accountID int64) (*int64, error)
}

// ResolverConfig holds resolver cache settings
type ResolverConfig struct {
	// CacheTTL bounds staleness of a cached snapshot (default 5 minutes)
	CacheTTL time.Duration
	// CacheSize caps cached snapshots (default 10000)
	CacheSize int
	// DefaultRole is resolved for accounts without a role pointer
	DefaultRole string
}

// Resolver resolves an account to its role snapshot through a TTL cache
// shared by concurrent requests. Cache writes are whole-entry replacements,
// so concurrent resolutions of the same account are safe; the last writer
// wins.
type Resolver struct {
	roleSource    RoleSource
	accountSource AccountSource
	cache         *lru.LRU[int64, *roles.Role]
	defaultRole   string
	metrics       *observability.Metrics
}

// NewResolver creates a new entitlement resolver
func NewResolver(roleSource RoleSource, accountSource AccountSource, config ResolverConfig, metrics *observability.Metrics) *Resolver {
	if config.CacheTTL <= 0 {
		config.CacheTTL = 5 * time.Minute
	}
	if config.CacheSize <= 0 {
		config.CacheSize = 10000
	}
	if config.DefaultRole == "" {
		config.DefaultRole = roles.RoleFree
	}

	return &Resolver{
		roleSource:    roleSource,
		accountSource: accountSource,
		cache:         lru.NewLRU[int64, *roles.Role](config.CacheSize, nil, config.CacheTTL),
		defaultRole:   config.DefaultRole,
		metrics:       metrics,
	}
}

// Resolve returns the account's role snapshot, from cache when fresh.
// A cache miss fetches the account's role pointer (falling back to the
// default role when unset) and the role row, then stores the snapshot.
// Lookup failures are propagated and never cached.
func (r *Resolver) Resolve(ctx context.Context, accountID int64) (*roles.Role, error) {
	if role, ok := r.cache.Get(accountID); ok {
		if r.metrics != nil {
			r.metrics.CacheHitsTotal.Inc()
		}
		return role, nil
	}
	if r.metrics != nil {
		r.metrics.CacheMissesTotal.Inc()
	}

	role, err := r.fetch(ctx, accountID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && r.metrics != nil {
			r.metrics.ResolverFailures.Inc()
		}
		return nil, err
	}

	r.cache.Add(accountID, role)
	return role, nil
}

// fetch loads the account's role from the underlying sources
func (r *Resolver) fetch(ctx context.Context, accountID int64) (*roles.Role, error) {
	rolePtr, err := r.accountSource.GetRolePointer(ctx, accountID)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch role pointer for account %d: %w", accountID, err)
	}

	var role *roles.Role
	if rolePtr == nil {
		role, err = r.roleSource.GetRoleByName(ctx, r.defaultRole)
	} else {
		role, err = r.roleSource.GetRole(ctx, *rolePtr)
	}
	if err != nil {
		if errors.Is(err, roles.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch role for account %d: %w", accountID, err)
	}

	return role, nil
}

// Invalidate drops one account's cached snapshot. Used when a grant or
// subscription change affects a single account.
func (r *Resolver) Invalidate(accountID int64) {
	r.cache.Remove(accountID)
	if r.metrics != nil {
		r.metrics.CacheInvalidated.WithLabelValues("account").Inc()
	}
}

// InvalidateAll drops every cached snapshot. Role edits clear the whole
// cache: the cache is keyed by account and no index from role to affected
// accounts exists. In-flight resolutions that already read an entry may
// still complete with the stale value, bounded by the TTL.
func (r *Resolver) InvalidateAll() {
	r.cache.Purge()
	if r.metrics != nil {
		r.metrics.CacheInvalidated.WithLabelValues("global").Inc()
	}
}
