package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Principal is the gateway key a request was authenticated with.
type Principal struct {
	TenantID  uuid.UUID
	KeyID     uuid.UUID
	KeyPrefix string
	Scopes    []string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by the auth middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// SetTenantID sets the tenant of the request principal, creating one if needed.
func SetTenantID(ctx context.Context, id uuid.UUID) context.Context {
	p, _ := PrincipalFrom(ctx)
	p.TenantID = id
	return WithPrincipal(ctx, p)
}

func GetTenantID(r *http.Request) (uuid.UUID, bool) {
	p, ok := PrincipalFrom(r.Context())
	if !ok || p.TenantID == uuid.Nil {
		return uuid.Nil, false
	}
	return p.TenantID, true
}

// SetKeyPrefix sets the key prefix of the request principal, creating one if needed.
func SetKeyPrefix(ctx context.Context, prefix string) context.Context {
	p, _ := PrincipalFrom(ctx)
	p.KeyPrefix = prefix
	return WithPrincipal(ctx, p)
}

func getKeyPrefix(r *http.Request) (string, bool) {
	p, ok := PrincipalFrom(r.Context())
	if !ok || p.KeyPrefix == "" {
		return "", false
	}
	return p.KeyPrefix, true
}

func getScopes(r *http.Request) []string {
	p, _ := PrincipalFrom(r.Context())
	return p.Scopes
}
