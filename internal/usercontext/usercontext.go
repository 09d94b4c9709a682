// Package usercontext carries the resolved request user through the
// request context.
package usercontext

import (
	"context"

	userdomain "github.com/sprintline/sprintline/internal/user/domain"
)

// UserContextKey is the request context key for the resolved user.
type UserContextKey struct{}

// WithUser stores the resolved user in the context.
func WithUser(ctx context.Context, user userdomain.User) context.Context {
	return context.WithValue(ctx, UserContextKey{}, user)
}

// UserFromContext returns the resolved user, if set.
func UserFromContext(ctx context.Context) (userdomain.User, bool) {
	if ctx == nil {
		return userdomain.User{}, false
	}
	user, ok := ctx.Value(UserContextKey{}).(userdomain.User)
	return user, ok
}
