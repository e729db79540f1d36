package auth

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
)

// OverrideResolver returns a synthetic identity for the requested tier when
// the request carries the shared secret. Never wire it in production.
type OverrideResolver struct {
	secret []byte
}

// NewOverrideResolver builds a resolver accepting secret.
func NewOverrideResolver(secret string) (*OverrideResolver, error) {
	if secret == "" {
		return nil, errors.New("override secret is required")
	}
	return &OverrideResolver{secret: []byte(secret)}, nil
}

// OverrideUserID is the fixed user id used for a simulated tier.
func OverrideUserID(tier membership.Tier) string {
	return "debug-" + tier.String()
}

func (o *OverrideResolver) Resolve(_ context.Context, creds Credentials) (membership.Identity, error) {
	if creds.OverrideTier == "" || creds.OverrideSecret == "" {
		return membership.Identity{}, ErrNotApplicable
	}
	if subtle.ConstantTimeCompare([]byte(creds.OverrideSecret), o.secret) != 1 {
		return membership.Identity{}, ErrNotApplicable
	}

	tier := membership.ParseTier(creds.OverrideTier)
	if !tier.Valid() {
		return membership.Identity{}, ErrUnauthenticated
	}
	return membership.Identity{
		UserID:   OverrideUserID(tier),
		Tier:     tier,
		DeviceID: "debug-device",
	}, nil
}
