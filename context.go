package entraauth

import (
	"context"

	"github.com/nsslabs/entra-auth-backend/validator"
)

// contextKey is an unexported type for context keys to prevent collisions
// with keys set by other packages.
type contextKey int

const claimsKey contextKey = iota

// NewContextWithClaims returns a context carrying the validated identity.
// The middleware attaches it per request; the identity is never shared
// across requests.
func NewContextWithClaims(ctx context.Context, claims *validator.ValidatedClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext retrieves the validated identity attached by the
// middleware. The second return value reports whether one was present.
func ClaimsFromContext(ctx context.Context) (*validator.ValidatedClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*validator.ValidatedClaims)
	return claims, ok
}
