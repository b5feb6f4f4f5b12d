package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/workforce/internal/actorcontext"
	"github.com/smallbiznis/workforce/internal/authorization"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	actor, ok := actorcontext.ActorFromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, authorization.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, authorization.ErrInvalidActor):
		return ErrUnauthorized
	default:
		return err
	}
}

// ListMyPermissions returns the objects, and actions on them, the caller may use.
func (s *Server) ListMyPermissions(c *gin.Context) {
	actor, ok := actorcontext.ActorFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	if s.authzSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	permissions, err := s.authzSvc.Permissions(c.Request.Context(), actor)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"actor_id":    actor.ID,
		"role":        actor.Role,
		"permissions": permissions,
	}})
}
