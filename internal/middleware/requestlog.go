package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kartikbazzad/bunbase/tracker/pkg/logger"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, stores it in the request
// context for logger.FromContext and logs one line when the request ends.
func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = logger.Get()
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))

		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if identity, ok := GetUserFromContext(c); ok {
			attrs = append(attrs, "user_id", identity.ID)
		}
		logger.FromContext(c.Request.Context(), log).Info("request", attrs...)
	}
}
