package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workforce/internal/actorcontext"
	obscontext "github.com/smallbiznis/workforce/internal/observability/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// ActorRequired resolves the acting user from the gateway headers. Session
// handling lives in front of this service; only the resolved identity reaches it.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderActorID))
		role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
		if id == "" || role == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if role == actorcontext.RoleSystem || !actorcontext.IsKnownRole(role) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor := actorcontext.Actor{ID: id, Role: role}
		ctx := actorcontext.WithActor(c.Request.Context(), actor)
		ctx = obscontext.WithActor(ctx, role, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
