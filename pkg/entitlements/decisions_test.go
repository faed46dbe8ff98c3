package entitlements

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/observability"
	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
)

type fakeSubscriptions struct {
	active map[int64]bool
	err    error
}

func (f *fakeSubscriptions) IsActive(ctx context.Context, accountID int64) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.active[accountID], nil
}

func newTestChecker(t *testing.T) (*Checker, *fakeRoleSource, *fakeAccountSource, *fakeSubscriptions) {
	t.Helper()

	pro := &roles.Role{ID: 2, Name: roles.RolePro, Rank: roles.RankPro,
		Features: roles.FeatureTree{
			"scripts": roles.ObjectNode(map[string]*roles.FeatureNode{
				"can_publish": roles.BoolNode(true),
				"can_feature": roles.BoolNode(false),
			}),
		},
		Limits: roles.Limits{"max_active_keys": 5},
	}
	free := &roles.Role{ID: 1, Name: roles.RoleFree, Rank: roles.RankFree,
		Features: roles.FeatureTree{
			"scripts": roles.ObjectNode(map[string]*roles.FeatureNode{
				"can_publish": roles.BoolNode(false),
			}),
		},
		Limits: roles.Limits{"max_active_keys": 1},
	}
	admin := &roles.Role{ID: 4, Name: roles.RoleAdmin, Rank: roles.RankAdmin}

	roleSource := &fakeRoleSource{
		rolesByID: map[int64]*roles.Role{1: free, 2: pro, 4: admin},
		rolesByName: map[string]*roles.Role{
			roles.RoleFree: free, roles.RolePro: pro, roles.RoleAdmin: admin,
		},
	}
	accountSource := &fakeAccountSource{
		pointers: map[int64]*int64{
			10: int64Ptr(2), // pro
			12: int64Ptr(1), // free
			40: int64Ptr(4), // admin
		},
		missing: map[int64]bool{99: true},
	}
	subs := &fakeSubscriptions{active: map[int64]bool{10: true}}

	resolver := NewResolver(roleSource, accountSource, ResolverConfig{
		CacheTTL: time.Minute, CacheSize: 16, DefaultRole: roles.RoleFree,
	}, nil)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	return NewChecker(resolver, subs, nil, logger), roleSource, accountSource, subs
}

func staticUsage(n int) UsageFunc {
	return func(ctx context.Context, accountID int64) (int, error) { return n, nil }
}

func TestRequireFeature(t *testing.T) {
	checker, _, _, _ := newTestChecker(t)
	ctx := context.Background()

	assert.True(t, checker.RequireFeature(ctx, 10, "scripts.can_publish").Allowed)

	denied := checker.RequireFeature(ctx, 12, "scripts.can_publish")
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonFeatureUnavailable, denied.Reason)
	assert.True(t, denied.UpgradeRequired)

	missing := checker.RequireFeature(ctx, 99, "scripts.can_publish")
	assert.False(t, missing.Allowed, "unknown account has no entitlement")
}

func TestRequireLimit(t *testing.T) {
	checker, _, _, _ := newTestChecker(t)
	ctx := context.Background()

	allowed := checker.RequireLimit(ctx, 10, "max_active_keys", staticUsage(4))
	assert.True(t, allowed.Allowed)
	if assert.NotNil(t, allowed.Remaining) {
		assert.Equal(t, 1, *allowed.Remaining)
	}

	denied := checker.RequireLimit(ctx, 10, "max_active_keys", staticUsage(5))
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonLimitExceeded, denied.Reason)
	assert.True(t, denied.UpgradeRequired)
	if assert.NotNil(t, denied.Limit) {
		assert.Equal(t, 5, *denied.Limit)
	}
}

func TestRequireMinRole(t *testing.T) {
	checker, _, _, _ := newTestChecker(t)
	ctx := context.Background()

	assert.True(t, checker.RequireMinRole(ctx, 10, roles.RolePro).Allowed)
	assert.True(t, checker.RequireMinRole(ctx, 40, roles.RolePro).Allowed, "higher rank passes")

	denied := checker.RequireMinRole(ctx, 12, roles.RolePro)
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonInsufficientRole, denied.Reason)
}

func TestRequireActiveSubscription(t *testing.T) {
	checker, _, _, _ := newTestChecker(t)
	ctx := context.Background()

	assert.True(t, checker.RequireActiveSubscription(ctx, 10).Allowed)
	assert.True(t, checker.RequireActiveSubscription(ctx, 40).Allowed, "admins pass without a subscription")

	denied := checker.RequireActiveSubscription(ctx, 12)
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonSubscriptionRequired, denied.Reason)
}

func TestFailOpenOnLookupFailure(t *testing.T) {
	checker, _, accountSource, subs := newTestChecker(t)
	ctx := context.Background()
	accountSource.err = errors.New("db down")
	subs.err = errors.New("db down")

	// everything except the admin check allows when the store is unreachable
	for name, decision := range map[string]Decision{
		"feature":      checker.RequireFeature(ctx, 10, "scripts.can_publish"),
		"limit":        checker.RequireLimit(ctx, 10, "max_active_keys", staticUsage(100)),
		"min_role":     checker.RequireMinRole(ctx, 10, roles.RolePremium),
		"subscription": checker.RequireActiveSubscription(ctx, 12),
	} {
		assert.True(t, decision.Allowed, "%s should fail open", name)
		assert.Equal(t, ReasonLookupFailed, decision.Reason, name)
	}
}

func TestRequireAdminFailsClosed(t *testing.T) {
	checker, _, accountSource, _ := newTestChecker(t)
	ctx := context.Background()

	assert.True(t, checker.RequireAdmin(ctx, 40).Allowed)

	denied := checker.RequireAdmin(ctx, 10)
	assert.False(t, denied.Allowed)
	assert.Equal(t, ReasonAdminOnly, denied.Reason)

	accountSource.err = errors.New("db down")
	failed := checker.RequireAdmin(ctx, 41)
	assert.False(t, failed.Allowed, "admin check denies on lookup failure")
	assert.Equal(t, ReasonLookupFailed, failed.Reason)
}

func TestRequireLimitUsageFailureFailsOpen(t *testing.T) {
	checker, _, _, _ := newTestChecker(t)

	failing := func(ctx context.Context, accountID int64) (int, error) {
		return 0, errors.New("redis timeout")
	}
	decision := checker.RequireLimit(context.Background(), 10, "max_active_keys", failing)
	assert.True(t, decision.Allowed)
	assert.Equal(t, ReasonLookupFailed, decision.Reason)
}
