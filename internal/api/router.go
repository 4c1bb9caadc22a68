package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/middleware"
)

// AdminRole is required for the /admin routes.
const AdminRole = "admin"

// maxBodySize bounds request bodies.
const maxBodySize = 10 << 20

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	Log            *logrus.Logger
	DB             Pinger
	SchemaVersion  SchemaVersionFunc
	ExpectedSchema int64
	Verifier       middleware.TokenVerifier
	Entities       EntityService
	Quotes         QuoteService
	Audit          AuditService
	Deleted        DeletedRecordsService
	Routes         []EntityRoute
	CORSOrigins    []string
	Version        string
	RateLimitRPS   float64
	RateLimitBurst int
}

// setupMiddleware configures the middleware shared by every route.
func setupMiddleware(ctx context.Context, r *gin.Engine, deps *RouterDeps) {
	r.SetTrustedProxies(nil) //nolint:errcheck // nil always succeeds.
	r.Use(middleware.RequestID())
	r.Use(middleware.AccessLog(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.MaxBodySize(maxBodySize))
	r.Use(cors.New(cors.Config{
		AllowOrigins:  deps.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Authorization"},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        time.Hour,
	}))
	r.Use(middleware.NewRateLimiter(ctx, deps.RateLimitRPS, deps.RateLimitBurst).Handler())
	r.Use(middleware.Prometheus())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerRoutes sets up all API route handlers on the given router group.
func registerRoutes(ctx context.Context, api *gin.RouterGroup, deps *RouterDeps) {
	log := deps.Log

	health := NewHealthHandler(deps.DB, deps.SchemaVersion, deps.ExpectedSchema, log, deps.Version)
	api.GET("/health", health.Liveness)
	api.GET("/ready", health.Readiness)

	guard := middleware.NewAuthFailureGuard(ctx, log)
	authed := api.Group("", guard.Handler(), middleware.Auth(deps.Verifier, log, guard))

	quotes := NewQuoteHandler(deps.Quotes, log)
	authed.POST("/quotes/with-items", quotes.CreateWithItems)
	authed.DELETE("/quotes/:id/with-items", quotes.DeleteWithItems)

	for _, route := range deps.Routes {
		NewEntityHandler(deps.Entities, route.Model, log).Register(authed.Group("/" + route.Path))
	}

	admin := authed.Group("/admin", middleware.RequireRole(AdminRole))

	audit := NewAuditHandler(deps.Audit, log)
	admin.GET("/audit", audit.Query)
	admin.DELETE("/audit", audit.Purge)

	deleted := NewDeletedHandler(deps.Deleted, log)
	admin.GET("/deleted", deleted.List)
	admin.POST("/deleted/:model/:id/restore", deleted.Restore)
	admin.DELETE("/deleted/:model/:id", deleted.HardDelete)
}

// NewRouter creates and configures the Gin engine with all middleware and routes.
func NewRouter(ctx context.Context, deps *RouterDeps) http.Handler {
	r := gin.New()
	setupMiddleware(ctx, r, deps)
	registerRoutes(ctx, r.Group("/api/v1"), deps)

	return r
}
