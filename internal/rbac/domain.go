// Package rbac guards dashboard routes by the role bound to the session.
package rbac

import "context"

// Principal is the signed-in actor of a request.
type Principal struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by Middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}
