// Package auth resolves the caller of a conversation request.
//
// Production deployments wire only the SessionVerifier. The OverrideResolver
// exists for development and test deployments and is constructed by main
// only when the configuration allows it.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/zhouzirui/lingo-chat/backend/internal/model/membership"
)

const (
	DefaultCookieName    = "lingo_session"
	OverrideTierHeader   = "X-Debug-Tier"
	OverrideSecretHeader = "X-Debug-Secret"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotApplicable tells a Chain to try the next resolver.
	ErrNotApplicable = errors.New("credentials not applicable")
)

// Credentials are the auth inputs carried by one request.
type Credentials struct {
	SessionToken   string
	OverrideTier   string
	OverrideSecret string
}

// Resolver turns credentials into an identity.
type Resolver interface {
	Resolve(ctx context.Context, creds Credentials) (membership.Identity, error)
}

// Chain tries resolvers in order and returns the first identity found.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, creds Credentials) (membership.Identity, error) {
	for _, r := range c {
		if r == nil {
			continue
		}
		identity, err := r.Resolve(ctx, creds)
		if errors.Is(err, ErrNotApplicable) {
			continue
		}
		if err != nil {
			return membership.Identity{}, err
		}
		return identity, nil
	}
	return membership.Identity{}, ErrUnauthenticated
}

// CredentialsFromRequest collects the session cookie (or bearer token) and
// the override headers.
func CredentialsFromRequest(r *http.Request, cookieName string) Credentials {
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	creds := Credentials{
		OverrideTier:   strings.TrimSpace(r.Header.Get(OverrideTierHeader)),
		OverrideSecret: r.Header.Get(OverrideSecretHeader),
	}
	if c, err := r.Cookie(cookieName); err == nil {
		creds.SessionToken = strings.TrimSpace(c.Value)
	}
	if creds.SessionToken == "" {
		if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
			creds.SessionToken = strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		}
	}
	return creds
}
