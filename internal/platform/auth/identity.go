package auth

import (
	"context"

	domain "github.com/ridehouse/api/internal/domain"
)

type contextKey string

const actorContextKey contextKey = "github.com/ridehouse/api/internal/platform/auth/actor"

// Actor is the authenticated caller as seen by the service layer. CustomerID
// is only set for customer-role tokens and scopes their reads.
type Actor struct {
	ID         string
	CustomerID string
	Role       domain.Role
}

// IsAdmin reports whether the actor has unrestricted access.
func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// WithActor stores the authenticated actor on the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the authenticated actor when present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorContextKey).(Actor)
	return actor, ok
}
