package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aethra/farmops/internal/auth"
	"github.com/aethra/farmops/internal/errors"
)

const actorKey = "actor"

// AuthMiddleware validates the bearer token and resolves the actor
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			abortWith(c, errors.NewUnauthorizedError(""))
			return
		}

		claims, err := h.jwt.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			abortWith(c, errors.NewUnauthorizedError("invalid or expired token"))
			return
		}

		actor, err := h.perms.ActorFor(claims.UserID, claims.FarmID)
		if err != nil {
			abortWith(c, errors.NewUnauthorizedError("unknown user"))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) auth.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(auth.Actor); ok {
			return actor
		}
	}
	return auth.Actor{}
}

func abortWith(c *gin.Context, err error) {
	status, body := errors.ToHTTPError(err)
	c.AbortWithStatusJSON(status, body)
}

func respondErr(c *gin.Context, err error) {
	status, body := errors.ToHTTPError(err)
	c.JSON(status, body)
}

// pathUUID parses the :id path parameter
func pathUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST", "message": "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}
