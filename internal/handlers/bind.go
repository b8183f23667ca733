package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/kartikbazzad/bunbase/tracker/internal/middleware"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
)

// bindJSON decodes the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		middleware.AbortWithError(c, apperrors.BadRequest("invalid request body").WithDetails(map[string]string{
			"reason": err.Error(),
		}))
		return false
	}
	return true
}
