package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cinescope/api/internal/limiter"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStorage struct {
	counts  map[string]int64
	incrErr error
}

func newCountingStorage() *countingStorage {
	return &countingStorage{counts: map[string]int64{}}
}

func (s *countingStorage) Incr(_ context.Context, key string, _ time.Duration) (int64, error) {
	if s.incrErr != nil {
		return 0, s.incrErr
	}
	s.counts[key]++
	return s.counts[key], nil
}

func (s *countingStorage) TTL(_ context.Context, _ string) (time.Duration, error) {
	return time.Minute, nil
}

func rateLimitedRouter(l *limiter.Limiter, action string) (*gin.Engine, *int) {
	gin.SetMode(gin.TestMode)
	handled := 0
	r := gin.New()
	r.POST("/login", RateLimitMiddleware(l, action), func(c *gin.Context) {
		handled++
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r, &handled
}

func TestRateLimitMiddleware_UnderLimit(t *testing.T) {
	l := limiter.NewLimiter(newCountingStorage())
	r, handled := rateLimitedRouter(l, "login")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *handled)
	assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestRateLimitMiddleware_OverLimit(t *testing.T) {
	l := limiter.NewLimiter(newCountingStorage())
	r, handled := rateLimitedRouter(l, "login")

	var last *httptest.ResponseRecorder
	for i := 0; i < 11; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/login", nil))
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, 10, *handled, "the 11th request never reaches the handler")
}

func TestRateLimitMiddleware_FailOpenOnStorageError(t *testing.T) {
	storage := newCountingStorage()
	storage.incrErr = errors.New("connection refused")
	l := limiter.NewLimiter(storage)
	r, handled := rateLimitedRouter(l, "login")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))

	// Counter store down: the request goes through instead of failing
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *handled)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRateLimitMiddleware_NilLimiter(t *testing.T) {
	r, handled := rateLimitedRouter(nil, "login")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, *handled)
}
