package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
)

const clockLeeway = 30 * time.Second

// SessionClaims is the payload of a signed session credential. The subject
// carries the user id.
type SessionClaims struct {
	Tier     string `json:"tier"`
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// SessionVerifier validates HS256 session credentials.
type SessionVerifier struct {
	secret []byte
}

// NewSessionVerifier builds a verifier for credentials signed with secret.
func NewSessionVerifier(secret string) (*SessionVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session secret is required")
	}
	return &SessionVerifier{secret: []byte(secret)}, nil
}

// Resolve verifies the session token and extracts the identity.
func (v *SessionVerifier) Resolve(_ context.Context, creds Credentials) (membership.Identity, error) {
	if creds.SessionToken == "" {
		return membership.Identity{}, ErrNotApplicable
	}

	claims, err := v.Verify(creds.SessionToken)
	if err != nil {
		return membership.Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	return membership.Identity{
		UserID:   claims.Subject,
		Tier:     membership.ParseTier(claims.Tier),
		DeviceID: claims.DeviceID,
	}, nil
}

// Verify checks signature and expiry of raw and returns its claims.
func (v *SessionVerifier) Verify(raw string) (*SessionClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockLeeway),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid session claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("session has no subject")
	}
	return claims, nil
}

// SignSession issues a credential for identity valid for ttl. Issuance
// belongs to the account system; this exists for tests and local tooling.
func SignSession(secret string, identity membership.Identity, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, SessionClaims{
		Tier:     string(identity.Tier),
		DeviceID: identity.DeviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(secret))
}
