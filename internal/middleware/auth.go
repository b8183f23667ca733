package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/token"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

const userContextName = "user"

// AuthMiddleware verifies the bearer access token and stores its identity in
// the Gin context. An expired token answers EXPIRED_TOKEN so clients know to
// refresh; every other failure is INVALID_TOKEN or UNAUTHORIZED.
func AuthMiddleware(tokens *token.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := BearerToken(c)
		if raw == "" {
			AbortWithError(c, apperrors.Unauthorized("missing bearer token"))
			return
		}
		identity, err := tokens.Verify(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(userContextName, identity)
		c.Next()
	}
}

// GetUserFromContext retrieves the authenticated identity.
func GetUserFromContext(c *gin.Context) (*token.Identity, bool) {
	val, ok := c.Get(userContextName)
	if !ok {
		return nil, false
	}
	identity, ok := val.(*token.Identity)
	return identity, ok
}

// RequireAuth returns the identity or writes a 401 if none is set.
func RequireAuth(c *gin.Context) (*token.Identity, bool) {
	identity, ok := GetUserFromContext(c)
	if !ok {
		AbortWithError(c, apperrors.Unauthorized("unauthorized"))
		return nil, false
	}
	return identity, true
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(value)
}
