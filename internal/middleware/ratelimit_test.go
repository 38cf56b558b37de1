package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newThrottledRouter(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/auth/google", limiter.Handler(), func(c *gin.Context) {
		c.Status(http.StatusFound)
	})
	return r
}

func hitFrom(r *gin.Engine, remoteAddr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/auth/google", nil)
	req.RemoteAddr = remoteAddr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterEnforcesBurst(t *testing.T) {
	// 60 rpm: burst of 10, refill 1/s.
	limiter := NewRateLimiter(60)
	r := newThrottledRouter(limiter)

	for i := 0; i < 10; i++ {
		w := hitFrom(r, "203.0.113.7:4000")
		require.Equal(t, http.StatusFound, w.Code, "request %d should pass", i)
	}

	w := hitFrom(r, "203.0.113.7:4000")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestRateLimiterIsolatesClients(t *testing.T) {
	limiter := NewRateLimiter(60)
	r := newThrottledRouter(limiter)

	for i := 0; i < 11; i++ {
		hitFrom(r, "203.0.113.7:4000")
	}

	w := hitFrom(r, "198.51.100.9:4000")
	require.Equal(t, http.StatusFound, w.Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newThrottledRouter(NewRateLimiter(0))

	for i := 0; i < 50; i++ {
		w := hitFrom(r, "203.0.113.7:4000")
		require.Equal(t, http.StatusFound, w.Code)
	}
}

func TestRateLimiterMinimumBurst(t *testing.T) {
	// Tiny budgets still allow a short interactive burst.
	limiter := NewRateLimiter(6)
	require.Equal(t, 3, limiter.burst)
}
