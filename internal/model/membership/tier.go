package membership

import "strings"

// Tier is the caller's membership level.
type Tier string

const (
	TierNone      Tier = ""
	TierQuarterly Tier = "quarterly"
	TierYearly    Tier = "yearly"
	TierLifetime  Tier = "lifetime"
)

// ParseTier normalizes a raw tier label. Unknown labels map to TierNone.
func ParseTier(raw string) Tier {
	switch Tier(strings.ToLower(strings.TrimSpace(raw))) {
	case TierQuarterly:
		return TierQuarterly
	case TierYearly:
		return TierYearly
	case TierLifetime:
		return TierLifetime
	default:
		return TierNone
	}
}

// Valid reports whether t is a paid tier.
func (t Tier) Valid() bool {
	return t == TierQuarterly || t == TierYearly || t == TierLifetime
}

func (t Tier) String() string {
	if t == TierNone {
		return "none"
	}
	return string(t)
}

// Identity is the resolved caller of a single request. It is never persisted.
type Identity struct {
	UserID   string
	Tier     Tier
	DeviceID string
}
