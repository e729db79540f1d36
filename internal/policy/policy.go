// Package policy maps membership tiers to conversation entitlements.
package policy

import "github.com/zhouzirui/lingo-chat/backend/internal/model/membership"

// Unbounded marks a profile without a usage limit.
const Unbounded = -1

// Profile is the entitlement set derived from a tier.
type Profile struct {
	CanChat          bool
	DailyLimit       int
	CanSwitchPersona bool
}

// Limited reports whether the profile carries a finite usage limit.
func (p Profile) Limited() bool {
	return p.DailyLimit != Unbounded
}

// Remaining returns how many turns are left after used effective turns,
// or Unbounded.
func (p Profile) Remaining(used int) int {
	if !p.Limited() {
		return Unbounded
	}
	if used >= p.DailyLimit {
		return 0
	}
	return p.DailyLimit - used
}

// Resolve returns the entitlements of tier. Unknown tiers get nothing.
func Resolve(tier membership.Tier) Profile {
	switch tier {
	case membership.TierYearly:
		return Profile{CanChat: true, DailyLimit: 15}
	case membership.TierLifetime:
		return Profile{CanChat: true, DailyLimit: Unbounded, CanSwitchPersona: true}
	default:
		return Profile{}
	}
}

// UpgradeForChat is the lowest tier that unlocks regular turns.
func UpgradeForChat() membership.Tier {
	return membership.TierYearly
}

// UpgradeForUnlimited is the lowest tier without a usage limit.
func UpgradeForUnlimited() membership.Tier {
	return membership.TierLifetime
}
