package auth

import (
	"context"

	"github.com/google/uuid"
)

// Roles recognized by the referral workflow.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Actor is the authenticated caller of a request: who they are, what role
// they hold, and which clinic they belong to.
type Actor struct {
	ID       uuid.UUID
	Role     string
	ClinicID uuid.UUID
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

type contextKey string

const actorKey contextKey = "actor"

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext retrieves the authenticated actor from the context.
// The second return value is false when no actor is present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
