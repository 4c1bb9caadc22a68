package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/coesco/opsapi/internal/api"
	"github.com/coesco/opsapi/internal/config"
	"github.com/coesco/opsapi/internal/db"
	"github.com/coesco/opsapi/internal/db/migrations"
	"github.com/coesco/opsapi/internal/entities"
	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/service"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var (
		skipMigrate bool
		retention   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			if err := cfg.ValidateAuth(); err != nil {
				return err
			}

			ctx := cmd.Context()

			rt, err := openRuntime(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			if !skipMigrate {
				if err := db.RunMigrations(ctx, rt.pool, log, migrations.FS); err != nil {
					return err
				}
			}

			gw := service.FromStore(rt.gateway)

			routes := make([]api.EntityRoute, 0, len(entities.Definitions()))
			for _, d := range entities.Definitions() {
				routes = append(routes, api.EntityRoute{Path: d.Route, Model: d.Model.Name})
			}

			handler := api.NewRouter(ctx, &api.RouterDeps{
				Log:            log,
				DB:             rt.pool,
				SchemaVersion:  func(ctx context.Context) (int64, error) { return db.AppliedVersion(ctx, rt.pool) },
				ExpectedSchema: int64(db.SchemaVersion()),
				Verifier:       identity.NewVerifier(cfg.JWTSecret.Value(), cfg.JWTIssuer),
				Entities:       service.NewEntityService(gw, log),
				Quotes:         service.NewQuoteService(gw, log),
				Audit:          rt.audit,
				Deleted:        rt.deleted,
				Routes:         routes,
				CORSOrigins:    cfg.CORSOrigins,
				Version:        config.Version,
				RateLimitRPS:   cfg.RateLimitRPS,
				RateLimitBurst: cfg.RateLimitBurst,
			})

			srv := &http.Server{
				Addr:              cfg.Addr(),
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			worker := service.NewRetentionWorker(rt.deleted, rt.audit, cfg.AuditRetentionDays, retention, log)

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				log.WithField("addr", srv.Addr).Info("listening")

				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("serving http: %w", err)
				}

				return nil
			})

			g.Go(func() error {
				worker.Run(gctx)
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				log.Info("shutting down")

				return srv.Shutdown(shutdownCtx)
			})

			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "Do not apply pending migrations on startup")
	cmd.Flags().DurationVar(&retention, "retention-interval", 6*time.Hour, "How often expired records and audit entries are purged")

	return cmd
}
