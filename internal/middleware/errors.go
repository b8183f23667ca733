package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

// AbortWithError renders err as {"code","message","details"} with the status
// of its kind and stops the handler chain. Foreign errors become INTERNAL and
// their cause is logged, never sent.
func AbortWithError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Internal(err)
	}
	status := apperrors.HTTPStatus(appErr)
	if status >= http.StatusInternalServerError {
		logger.FromContext(c.Request.Context(), logger.Get()).Error("request failed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"error", err,
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, appErr)
}
