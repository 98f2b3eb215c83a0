package auth

import "context"

type contextKey string

const identityKey contextKey = "identity"

// ContextWithIdentity returns a context carrying the authenticated
// actor's identity.
func ContextWithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext extracts the authenticated identity, if any.
func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey).(string)
	return identity, ok && identity != ""
}
