package middleware

import (
	"log"
	"net/http"
	"strconv"

	"github.com/cinescope/api/internal/limiter"
	"github.com/gin-gonic/gin"
)

// RateLimitMiddleware enforces the fixed-window limit for one action,
// keyed by client IP. Fail-open: if the counter store is unreachable the
// request goes through.
func RateLimitMiddleware(l *limiter.Limiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}

		result, err := l.Check(c.Request.Context(), c.ClientIP(), action)
		if err != nil {
			log.Printf("Rate limit check failed for action %s: %v", action, err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			c.Abort()
			return
		}

		c.Next()
	}
}
