// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithUser/UserFromContext for propagating the caller via context

package auth

import "context"

// userContextKey is the key type for storing the authenticated username.
type userContextKey struct{}

// WithUser returns a new context with the authenticated username attached.
func WithUser(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, userContextKey{}, username)
}

// UserFromContext retrieves the authenticated username from the context,
// returning "" if not present.
func UserFromContext(ctx context.Context) string {
	username, _ := ctx.Value(userContextKey{}).(string)
	return username
}
