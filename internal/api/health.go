// Package api provides the HTTP surface of opsapi.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger checks database connectivity.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// SchemaVersionFunc reports the applied schema version.
type SchemaVersionFunc func(ctx context.Context) (int64, error)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db             Pinger
	schemaVersion  SchemaVersionFunc
	expectedSchema int64
	log            *logrus.Logger
	version        string
	startTime      time.Time
}

// NewHealthHandler creates a HealthHandler. expectedSchema is the migration
// version this binary ships with.
func NewHealthHandler(
	db Pinger, schemaVersion SchemaVersionFunc, expectedSchema int64, log *logrus.Logger, version string,
) *HealthHandler {
	return &HealthHandler{
		db:             db,
		schemaVersion:  schemaVersion,
		expectedSchema: expectedSchema,
		log:            log,
		version:        version,
		startTime:      time.Now(),
	}
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type readinessResponse struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks"`
	SchemaVersion int64             `json:"schema_version"`
}

// Liveness handles GET /api/v1/health. It always answers 200.
func (h *HealthHandler) Liveness(c *gin.Context) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		Database:      "connected",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}

	if h.db == nil {
		resp.Database = "not_configured"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := h.db.HealthCheck(ctx); err != nil {
			resp.Database = "disconnected"
		}
	}

	c.JSON(http.StatusOK, resp)
}

// Readiness handles GET /api/v1/ready: the database answers and every
// shipped migration is applied.
func (h *HealthHandler) Readiness(c *gin.Context) {
	checks := map[string]string{"database": "ok", "schema": "ok"}
	resp := readinessResponse{Status: "ready", Checks: checks}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if h.db == nil {
		checks["database"] = "not_configured"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.log.WithError(err).Error("readiness: database health check failed")
		checks["database"] = "error"
	}

	switch {
	case checks["database"] != "ok":
		checks["schema"] = "unknown"
	case h.schemaVersion == nil:
		checks["schema"] = "unknown"
	default:
		v, err := h.schemaVersion(ctx)
		resp.SchemaVersion = v

		switch {
		case err != nil:
			h.log.WithError(err).Error("readiness: schema check failed")
			checks["schema"] = "error"
		case v < h.expectedSchema:
			checks["schema"] = "pending_migrations"
		}
	}

	status := http.StatusOK
	if checks["database"] != "ok" || checks["schema"] != "ok" {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}
