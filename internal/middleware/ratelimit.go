package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles sign-in traffic per client address. The flow is
// interactive and low-frequency, so the per-client burst is kept small and
// buckets for idle clients are evicted lazily.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[string]*signinBucket
	arrivals int
}

type signinBucket struct {
	tokens   *rate.Limiter
	lastSeen time.Time
}

const (
	bucketIdleEviction = 10 * time.Minute
	// arrivals between eviction sweeps
	sweepInterval = 256
)

// NewRateLimiter sizes the limiter from a requests-per-minute budget. A
// non-positive budget disables throttling.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	burst := requestsPerMinute / 6
	if burst < 3 {
		burst = 3
	}
	return &RateLimiter{
		limit:   rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:   burst,
		buckets: make(map[string]*signinBucket),
	}
}

// Handler returns the gin middleware. Rejected requests carry a Retry-After
// hint alongside the error body.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if !r.allow(c.ClientIP()) {
			c.Header("Retry-After", strconv.Itoa(r.retryAfterSeconds()))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "rate_limited",
				"error_description": "Too many sign-in attempts. Try again shortly.",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) allow(key string) bool {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buckets[key]
	if !ok {
		b = &signinBucket{tokens: rate.NewLimiter(r.limit, r.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = now

	r.arrivals++
	if r.arrivals%sweepInterval == 0 {
		r.evictIdleLocked(now)
	}

	return b.tokens.Allow()
}

func (r *RateLimiter) evictIdleLocked(now time.Time) {
	for key, b := range r.buckets {
		if now.Sub(b.lastSeen) > bucketIdleEviction {
			delete(r.buckets, key)
		}
	}
}

// retryAfterSeconds is the refill interval for one token, rounded up to a
// whole second for the header.
func (r *RateLimiter) retryAfterSeconds() int {
	secs := int(1 / float64(r.limit))
	if secs < 1 {
		secs = 1
	}
	return secs
}
