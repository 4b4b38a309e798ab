package middleware

import (
	"sync"
	"time"

	"github.com/ga-insights/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	DefaultRateLimitRPS   = 2
	DefaultRateLimitBurst = 5
	limiterIdleTTL        = 10 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	now      func() time.Time
	lastGC   time.Time
}

func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	if rps <= 0 {
		rps = DefaultRateLimitRPS
	}
	if burst <= 0 {
		burst = DefaultRateLimitBurst
	}
	return &IPRateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

// Allow spends one token from ip's bucket.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > limiterIdleTTL {
		l.gcLocked(now)
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

// GC forgets visitors idle for longer than the idle TTL and returns how many were dropped.
func (l *IPRateLimiter) GC() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gcLocked(l.now())
}

func (l *IPRateLimiter) gcLocked(now time.Time) int {
	n := 0
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > limiterIdleTTL {
			delete(l.visitors, k)
			n++
		}
	}
	l.lastGC = now
	return n
}

// RateLimit rejects requests over the per-IP budget with 429 and Retry-After.
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" || l.Allow(ip) {
			c.Next()
			return
		}
		response.TooManyRequests(c, "Too many questions in a short time, please slow down.")
	}
}
