package entitlements

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codelone0-eng/ebuster-origin-mono-main-sub000/pkg/roles"
)

func limitTestRole() *roles.Role {
	return &roles.Role{
		Name: roles.RolePro,
		Limits: roles.Limits{
			"max_active_keys": 5,
			"max_scripts":     roles.Unlimited,
			"max_invites":     0,
		},
	}
}

func TestCheckLimitBoundary(t *testing.T) {
	role := limitTestRole()

	below := CheckLimit(role, "max_active_keys", 4)
	assert.True(t, below.Allowed)
	assert.Equal(t, 1, below.Remaining)

	at := CheckLimit(role, "max_active_keys", 5)
	assert.False(t, at.Allowed, "usage at the ceiling is denied")
	assert.Equal(t, 0, at.Remaining)

	over := CheckLimit(role, "max_active_keys", 9)
	assert.False(t, over.Allowed)
	assert.Equal(t, 0, over.Remaining, "remaining never goes negative")
}

func TestCheckLimitUnlimited(t *testing.T) {
	role := limitTestRole()

	for _, usage := range []int{0, 5, 1000000} {
		result := CheckLimit(role, "max_scripts", usage)
		assert.True(t, result.Allowed, "usage %d", usage)
		assert.True(t, result.Unlimited)
		assert.Equal(t, roles.Unlimited, result.Limit)
	}
}

func TestCheckLimitZeroAndMissing(t *testing.T) {
	role := limitTestRole()

	zero := CheckLimit(role, "max_invites", 0)
	assert.False(t, zero.Allowed, "a zero limit never allows")

	missing := CheckLimit(role, "no_such_limit", 0)
	assert.False(t, missing.Allowed, "a missing limit key behaves as zero")

	assert.False(t, CheckLimit(nil, "max_active_keys", 0).Allowed)
}

func TestLimitResultErr(t *testing.T) {
	role := limitTestRole()

	err := CheckLimit(role, "max_active_keys", 5).Err("max_active_keys")
	assert.True(t, IsLimitExceeded(err))
	assert.Contains(t, err.Error(), "max_active_keys")

	var exceeded *LimitExceededError
	if assert.ErrorAs(t, err, &exceeded) {
		assert.Equal(t, 5, exceeded.Current)
		assert.Equal(t, 5, exceeded.Limit)
	}

	assert.NoError(t, CheckLimit(role, "max_active_keys", 4).Err("max_active_keys"))
	assert.False(t, IsLimitExceeded(nil))
}
