// Package middleware provides HTTP middleware for opsapi.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/coesco/opsapi/internal/httputil"
)

const (
	// maxLimiters caps the number of tracked IPs to bound memory.
	maxLimiters     = 100_000
	limiterIdleTTL  = 10 * time.Minute
	limiterSweepGap = time.Minute
)

type ipLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
}

// NewRateLimiter creates a RateLimiter allowing rps requests per second with
// the given burst. Idle IPs are evicted until ctx is cancelled.
func NewRateLimiter(ctx context.Context, rps float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.sweep(ctx)

	return rl
}

func (rl *RateLimiter) sweep(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			rl.mu.Lock()
			for ip, l := range rl.limiters {
				if now.Sub(l.lastSeen) > limiterIdleTTL {
					delete(rl.limiters, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

// allow reports whether ip may proceed. ok is false when the table is full
// and ip is new.
func (rl *RateLimiter) allow(ip string) (allowed, ok bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, found := rl.limiters[ip]
	if !found {
		if len(rl.limiters) >= maxLimiters {
			return false, false
		}

		l = &ipLimiter{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = l
	}

	l.lastSeen = time.Now()

	return l.lim.Allow(), true
}

// Handler returns Gin middleware that applies rate limiting per client IP.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		// ClientIP ignores forwarding headers: the router trusts no proxies.
		allowed, ok := rl.allow(c.ClientIP())
		if !ok {
			httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeRateLimited, "too many clients")

			return
		}

		if !allowed {
			httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeRateLimited, "rate limit exceeded")

			return
		}

		c.Next()
	}
}
