package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/coesco/opsapi/internal/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func rateLimitedRouter(t *testing.T, rps float64, burst int) *gin.Engine {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.Use(middleware.NewRateLimiter(ctx, rps, burst).Handler())
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	return r
}

func hit(r *gin.Engine, addr string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)

	return w.Code
}

func TestRateLimiter_BlocksAfterBurst(t *testing.T) {
	r := rateLimitedRouter(t, 0.001, 2)

	for i := range 2 {
		if code := hit(r, "1.2.3.4:1234"); code != http.StatusOK {
			t.Fatalf("request %d: got %d, want 200", i, code)
		}
	}

	if code := hit(r, "1.2.3.4:1234"); code != http.StatusTooManyRequests {
		t.Fatalf("request 2: got %d, want 429", code)
	}
}

func TestRateLimiter_IndependentClients(t *testing.T) {
	r := rateLimitedRouter(t, 0.001, 1)

	hit(r, "1.1.1.1:1000")

	if code := hit(r, "2.2.2.2:1000"); code != http.StatusOK {
		t.Fatalf("different ip should not be limited, got %d", code)
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	r := rateLimitedRouter(t, 1_000_000, 1)

	hit(r, "5.5.5.5:1000")

	if code := hit(r, "5.5.5.5:1000"); code != http.StatusOK {
		t.Fatalf("expected token to refill, got %d", code)
	}
}
