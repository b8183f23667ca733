package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/kartikbazzad/bunbase/tracker/pkg/errors"
	"golang.org/x/time/rate"
)

// Defaults used when RateLimitMiddleware is given non-positive values.
const (
	DefaultRequestsPerMinute = 30
	DefaultBurst             = 15
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter stores token buckets per client IP.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rate      rate.Limit
	burst     int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewRateLimiter creates a limiter allowing rateLimit events per second with
// the given burst. Entries idle for longer than ttl are dropped by a sweep
// that runs at most once per ttl.
func NewRateLimiter(rateLimit rate.Limit, burst int, ttl time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rateLimit,
		burst:    burst,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Allow reports whether one more request from ip fits in its bucket.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweep(now)
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// sweep drops idle visitors once per ttl. Callers hold mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.ttl <= 0 || now.Sub(rl.lastSweep) < rl.ttl {
		return
	}
	rl.lastSweep = now
	for ip, v := range rl.visitors {
		if now.Sub(v.lastSeen) > rl.ttl {
			delete(rl.visitors, ip)
		}
	}
}

// RateLimitMiddleware limits requests per client IP.
func RateLimitMiddleware(requestsPerMinute int, burst int) gin.HandlerFunc {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	limiter := NewRateLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst, 15*time.Minute)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = c.RemoteIP()
		}
		if !limiter.Allow(ip) {
			AbortWithError(c, apperrors.RateLimited("rate limit exceeded"))
			return
		}
		c.Next()
	}
}
