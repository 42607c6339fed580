package sessions

import (
	"context"

	"github.com/ojinta/portfolio/go-services/internal/tokens"
)

// unexported, collision-proof context key
type identityKey struct{}

// WithIdentity attaches verified session claims to ctx.
func WithIdentity(ctx context.Context, claims tokens.SessionClaims) context.Context {
	return context.WithValue(ctx, identityKey{}, claims)
}

// IdentityFromContext returns the RequestIdentity set by the access gate.
func IdentityFromContext(ctx context.Context) (tokens.SessionClaims, bool) {
	c, ok := ctx.Value(identityKey{}).(tokens.SessionClaims)
	return c, ok
}
