package server

import (
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds request throughput per client address. A zero
// RequestsPerSecond disables the middleware entirely.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func (l *clientLimiters) limiterFor(clientIP string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[clientIP]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[clientIP] = limiter
	}
	return limiter
}

// rateLimitMiddleware applies a per-address token bucket. Requests beyond the
// bucket are rejected with 429 rather than queued.
func rateLimitMiddleware(cfg RateLimitConfig) gin.HandlerFunc {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	limiters := &clientLimiters{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(cfg.RequestsPerSecond),
		burst:    burst,
	}

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if host, _, err := net.SplitHostPort(clientIP); err == nil {
			clientIP = host
		}
		if !limiters.limiterFor(clientIP).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
