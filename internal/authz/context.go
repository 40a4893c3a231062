package authz

import "context"

type ctxKey struct{}

// WithPrincipal stores the resolved principal in context. Set once per
// request by the auth middleware after token verification.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// PrincipalFrom returns the request's principal, if one was resolved.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(Principal)
	if !ok || p.ID == "" {
		return Principal{}, false
	}
	return p, true
}
