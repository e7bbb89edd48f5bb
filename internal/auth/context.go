// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext for propagating auth info via context

package auth

import (
	"context"
)

// AnonymousActor is recorded in audit entries when authentication is disabled.
const AnonymousActor = "anonymous"

// AuthContext holds the authenticated identity extracted from a request.
type AuthContext struct {
	UserID   string
	Username string
}

type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return auth
}

// Actor names the caller for audit entries.
func Actor(ctx context.Context) string {
	if a := FromContext(ctx); a != nil && a.Username != "" {
		return a.Username
	}
	return AnonymousActor
}
