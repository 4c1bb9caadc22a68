package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/middleware"
)

func newTestGuard(t *testing.T) *middleware.AuthFailureGuard {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return middleware.NewAuthFailureGuard(ctx, quietLogger())
}

func TestAuthFailureGuard_ResetClearsCount(t *testing.T) {
	guard := newTestGuard(t)

	for range 9 {
		guard.RecordFailure("10.0.0.1")
	}
	guard.Reset("10.0.0.1")
	guard.RecordFailure("10.0.0.1")

	if guard.IsBlocked("10.0.0.1") {
		t.Fatal("ip should not be blocked after reset")
	}
}

func TestAuthFailureGuard_BlocksAfterThreshold(t *testing.T) {
	guard := newTestGuard(t)

	for range 9 {
		guard.RecordFailure("10.0.0.2")
	}

	if guard.IsBlocked("10.0.0.2") {
		t.Fatal("blocked before threshold")
	}

	guard.RecordFailure("10.0.0.2")

	if !guard.IsBlocked("10.0.0.2") {
		t.Fatal("expected ip to be blocked")
	}

	if guard.IsBlocked("10.0.0.3") {
		t.Fatal("other ips must not be blocked")
	}
}

func TestAuthFailureGuard_HandlerRejectsLockedOutClient(t *testing.T) {
	guard := newTestGuard(t)
	verifier := identity.NewVerifier(testSecret, "opsapi")

	r := gin.New()
	r.Use(guard.Handler(), middleware.Auth(verifier, quietLogger(), guard))
	r.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 11)
	for range 11 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.RemoteAddr = "192.0.2.1:4000"
		req.Header.Set("Authorization", "Bearer bogus")
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	for i, code := range codes[:10] {
		if code != http.StatusUnauthorized {
			t.Errorf("request %d: got %d, want 401", i, code)
		}
	}

	if codes[10] != http.StatusTooManyRequests {
		t.Errorf("request 10: got %d, want 429", codes[10])
	}
}
