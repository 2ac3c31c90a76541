package shelf

import (
	"context"

	"shelf-go/internal/model"
)

type actorKey struct{}

// WithActor returns a context carrying the user performing the operation.
// Audit entries record this user.
func WithActor(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, actorKey{}, user)
}

// ActorFrom returns the acting user, or nil.
func ActorFrom(ctx context.Context) *model.User {
	u, _ := ctx.Value(actorKey{}).(*model.User)
	return u
}
