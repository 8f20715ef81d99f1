package middleware

import (
	"time"

	"github.com/cinescope/api/internal/logbuffer"
	"github.com/cinescope/api/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestLogMiddleware tags each request with a uuid and queues one log
// entry on the batch writer after the handler runs.
func RequestLogMiddleware(writer *logbuffer.Writer) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := uuid.NewString()
		c.Set("requestID", requestID)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		if writer == nil {
			return
		}

		var userID int64
		if id, exists := c.Get("userID"); exists {
			userID = id.(int64)
		}

		writer.Add(model.RequestLog{
			RequestID: requestID,
			Method:    c.Request.Method,
			Path:      c.Request.URL.Path,
			Status:    c.Writer.Status(),
			LatencyMS: time.Since(start).Milliseconds(),
			ClientIP:  c.ClientIP(),
			UserID:    userID,
			CreatedAt: time.Now(),
		})
	}
}

// SecurityHeadersMiddleware sets the usual hardening headers on every
// response.
func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
