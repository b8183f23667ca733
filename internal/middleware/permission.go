package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/authz"
)

// ProjectParam is the route parameter holding the project id.
const ProjectParam = "projectId"

// ProjectPermission lets the request through only if the caller's role in
// the project allows action on resource. It must run after AuthMiddleware.
func ProjectPermission(enforcer *authz.Enforcer, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := RequireAuth(c)
		if !ok {
			return
		}
		if err := enforcer.Enforce(c.Request.Context(), identity.ID, c.Param(ProjectParam), resource, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
