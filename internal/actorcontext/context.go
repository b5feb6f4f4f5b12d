package actorcontext

import (
	"context"
	"strings"
)

const (
	RoleAdmin        = "admin"
	RoleEmployee     = "employee"
	RoleAccountant   = "accountant"
	RoleOperation    = "operation"
	RoleSalesManager = "sales_manager"
	RoleSystem       = "system"
)

// Actor identifies who is performing an operation.
type Actor struct {
	ID   string
	Role string
}

// System is the actor used by background runners.
var System = Actor{ID: "system", Role: RoleSystem}

// ActorContextKey is the request context key for the acting user.
type ActorContextKey struct{}

func WithActor(ctx context.Context, actor Actor) context.Context {
	actor.ID = strings.TrimSpace(actor.ID)
	actor.Role = strings.ToLower(strings.TrimSpace(actor.Role))
	return context.WithValue(ctx, ActorContextKey{}, actor)
}

// ActorFromContext returns the acting user, if set.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(ActorContextKey{}).(Actor)
	if !ok || actor.ID == "" {
		return Actor{}, false
	}
	return actor, true
}

// IsKnownRole reports whether role is one of the workforce roles.
func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleEmployee, RoleAccountant, RoleOperation, RoleSalesManager, RoleSystem:
		return true
	}
	return false
}
