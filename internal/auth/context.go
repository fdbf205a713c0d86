package auth

import "context"

type contextKey struct{ name string }

var identityKey = contextKey{"auth.identity"}

// Principal is the authenticated identity the guard middleware exposes to
// downstream handlers. Only public claims, never credentials.
type Principal struct {
	UserID string
	Email  string
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, identityKey, p)
}

// PrincipalFrom returns the authenticated identity, if the request passed
// through the guard middleware.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(identityKey).(Principal)
	return p, ok
}
