package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
)

func TestResolveMatchesEntitlementTable(t *testing.T) {
	cases := []struct {
		tier membership.Tier
		want Profile
	}{
		{membership.TierQuarterly, Profile{CanChat: false, DailyLimit: 0, CanSwitchPersona: false}},
		{membership.TierYearly, Profile{CanChat: true, DailyLimit: 15, CanSwitchPersona: false}},
		{membership.TierLifetime, Profile{CanChat: true, DailyLimit: Unbounded, CanSwitchPersona: true}},
		{membership.TierNone, Profile{CanChat: false, DailyLimit: 0, CanSwitchPersona: false}},
		{membership.Tier("platinum"), Profile{}},
	}

	for _, tc := range cases {
		t.Run(tc.tier.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, Resolve(tc.tier))
		})
	}
}

func TestRemaining(t *testing.T) {
	yearly := Resolve(membership.TierYearly)
	assert.Equal(t, 15, yearly.Remaining(0))
	assert.Equal(t, 14, yearly.Remaining(1))
	assert.Equal(t, 0, yearly.Remaining(15))
	assert.Equal(t, 0, yearly.Remaining(40))

	lifetime := Resolve(membership.TierLifetime)
	assert.False(t, lifetime.Limited())
	assert.Equal(t, Unbounded, lifetime.Remaining(1000))
}

func TestUpgradeHints(t *testing.T) {
	assert.Equal(t, membership.TierYearly, UpgradeForChat())
	assert.Equal(t, membership.TierLifetime, UpgradeForUnlimited())
}
