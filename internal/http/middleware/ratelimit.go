package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimiter throttles callers per client IP so a single misbehaving
// integration cannot burn the whole upstream API quota.
type RateLimiter struct {
	limit      rate.Limit
	burst      int
	idleWindow time.Duration

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter sizes a limiter from a per-minute request budget. A budget of
// zero or less disables limiting.
func NewRateLimiter(requestsPerMinute int) *RateLimiter {
	if requestsPerMinute <= 0 {
		return nil
	}
	// Allow short bursts worth roughly ten seconds of budget.
	burst := requestsPerMinute / 6
	if burst < 5 {
		burst = 5
	}
	return &RateLimiter{
		limit:      rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:      burst,
		idleWindow: 3 * time.Minute,
		clients:    make(map[string]*clientBucket),
	}
}

// Handler returns the gin middleware. A nil limiter passes everything through.
func (r *RateLimiter) Handler() gin.HandlerFunc {
	if r == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		if !r.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests. Please slow down.",
			})
			return
		}
		c.Next()
	}
}

func (r *RateLimiter) allow(key string) bool {
	now := time.Now()

	r.mu.Lock()
	bucket, ok := r.clients[key]
	if !ok {
		bucket = &clientBucket{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = bucket
		r.evictIdleLocked(now)
	}
	bucket.lastSeen = now
	limiter := bucket.limiter
	r.mu.Unlock()

	return limiter.Allow()
}

// evictIdleLocked drops buckets that have not been seen within the idle
// window, bounding the map for long-running processes.
func (r *RateLimiter) evictIdleLocked(now time.Time) {
	for key, bucket := range r.clients {
		if now.Sub(bucket.lastSeen) > r.idleWindow {
			delete(r.clients, key)
		}
	}
}
