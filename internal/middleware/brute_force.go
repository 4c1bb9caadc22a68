package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/httputil"
)

const (
	authFailureMaxAttempts = 10
	authFailureWindow      = 15 * time.Minute
	authFailureLockout     = 5 * time.Minute
	authFailureSweepGap    = time.Minute
	authFailureMaxRecords  = 10_000
)

type failureRecord struct {
	attempts  int
	firstFail time.Time
	lockedAt  time.Time
}

// AuthFailureGuard counts rejected tokens per client IP and locks out IPs
// that exceed the threshold within the tracking window.
type AuthFailureGuard struct {
	mu      sync.Mutex
	records map[string]*failureRecord
	log     *logrus.Logger
	now     func() time.Time
}

// NewAuthFailureGuard creates a guard whose stale records are swept until
// ctx is cancelled.
func NewAuthFailureGuard(ctx context.Context, log *logrus.Logger) *AuthFailureGuard {
	g := &AuthFailureGuard{
		records: make(map[string]*failureRecord),
		log:     log,
		now:     time.Now,
	}
	go g.sweepLoop(ctx)

	return g
}

// IsBlocked reports whether ip is locked out.
func (g *AuthFailureGuard) IsBlocked(ip string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[ip]
	if !ok || rec.lockedAt.IsZero() {
		return false
	}

	return g.now().Sub(rec.lockedAt) < authFailureLockout
}

// RecordFailure counts a rejected token from ip.
func (g *AuthFailureGuard) RecordFailure(ip string) {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[ip]
	if !ok {
		if len(g.records) >= authFailureMaxRecords {
			return
		}

		g.records[ip] = &failureRecord{attempts: 1, firstFail: now}

		return
	}

	if now.Sub(rec.firstFail) > authFailureWindow {
		*rec = failureRecord{attempts: 1, firstFail: now}
		return
	}

	rec.attempts++
	if rec.attempts >= authFailureMaxAttempts && rec.lockedAt.IsZero() {
		rec.lockedAt = now
		g.log.WithField("client_ip", ip).Warn("client locked out after repeated auth failures")
	}
}

// Reset clears failure tracking for ip after a successful authentication.
func (g *AuthFailureGuard) Reset(ip string) {
	g.mu.Lock()
	delete(g.records, ip)
	g.mu.Unlock()
}

func (g *AuthFailureGuard) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(authFailureSweepGap)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *AuthFailureGuard) sweep() {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	for ip, rec := range g.records {
		expiredLock := !rec.lockedAt.IsZero() && now.Sub(rec.lockedAt) >= authFailureLockout
		staleWindow := rec.lockedAt.IsZero() && now.Sub(rec.firstFail) >= authFailureWindow

		if expiredLock || staleWindow {
			delete(g.records, ip)
		}
	}
}

// Handler returns middleware that rejects locked-out clients before the
// token is verified.
func (g *AuthFailureGuard) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.IsBlocked(c.ClientIP()) {
			httputil.RespondError(c, http.StatusTooManyRequests, httputil.CodeRateLimited, "too many failed authentication attempts")
			return
		}

		c.Next()
	}
}
