package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/config"
	"github.com/coesco/opsapi/internal/dbpool"
	"github.com/coesco/opsapi/internal/entities"
	"github.com/coesco/opsapi/internal/service"
	"github.com/coesco/opsapi/internal/store"
)

// runtime holds the wired data layer shared by the commands.
type runtime struct {
	pool    *dbpool.Pool
	gateway *store.Gateway
	deleted *service.DeletedRecordsService
	audit   *service.AuditService
}

// openRuntime connects to the database, registers the models, applies
// column overrides and warms the column cache.
func openRuntime(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*runtime, error) {
	pool, err := dbpool.NewPool(ctx, cfg.DatabaseURL.Value(), dbpool.Options{
		MaxConns:  int32(cfg.DBMaxConns), //nolint:gosec // bounded to 500 by config validation.
		SlowQuery: cfg.SlowQuery,
		Log:       log,
	})
	if err != nil {
		return nil, err
	}

	intro := store.NewIntrospector(pool)

	if cfg.ModelOverridesFile != "" {
		overrides, err := loadOverrides(cfg.ModelOverridesFile)
		if err != nil {
			pool.Close()
			return nil, err
		}

		overrides.apply(intro)
		log.WithField("models", len(overrides.Models)).Info("model column overrides loaded")
	}

	reg := store.NewRegistry(intro)
	if err := entities.Register(reg); err != nil {
		pool.Close()
		return nil, err
	}

	if err := reg.Warm(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("introspecting models: %w", err)
	}

	gw := store.NewGateway(store.Base{DB: pool, Log: log}, reg, store.Options{CandidateCap: cfg.FuzzyCandidateCap})

	return &runtime{
		pool:    pool,
		gateway: gw,
		deleted: service.NewDeletedRecordsService(store.NewDeletedStore(gw, cfg.DeletedRetentionDays), log),
		audit:   service.NewAuditService(gw.Audit(), log),
	}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
}
