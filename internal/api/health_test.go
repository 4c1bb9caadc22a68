package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/coesco/opsapi/internal/api"
)

func TestLiveness_ReturnsOK(t *testing.T) {
	t.Parallel()

	h := api.NewHealthHandler(nil, nil, 5, testLogger(), "test-v1")

	r := gin.New()
	r.GET("/health", h.Liveness)

	w := doRequest(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if body["status"] != "ok" || body["version"] != "test-v1" || body["database"] != "not_configured" {
		t.Errorf("body = %v", body)
	}
}

func TestReadiness(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pingErr    error
		version    int64
		versionErr error
		wantCode   int
		wantSchema string
	}{
		{"ready", nil, 5, nil, http.StatusOK, "ok"},
		{"pending migrations", nil, 3, nil, http.StatusServiceUnavailable, "pending_migrations"},
		{"schema error", nil, 0, errors.New("no goose table"), http.StatusServiceUnavailable, "error"},
		{"database down", errors.New("refused"), 5, nil, http.StatusServiceUnavailable, "unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			schema := func(context.Context) (int64, error) { return tc.version, tc.versionErr }
			h := api.NewHealthHandler(&mockPinger{err: tc.pingErr}, schema, 5, testLogger(), "v")

			r := gin.New()
			r.GET("/ready", h.Readiness)

			w := doRequest(r, http.MethodGet, "/ready", "")
			if w.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, w.Code)
			}

			var body struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}

			if body.Checks["schema"] != tc.wantSchema {
				t.Errorf("schema check = %q, want %q", body.Checks["schema"], tc.wantSchema)
			}
		})
	}
}
