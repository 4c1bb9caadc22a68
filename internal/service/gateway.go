// Package service provides business logic between API handlers and the
// persistence gateway.
package service

import (
	"context"

	"github.com/coesco/opsapi/internal/models"
	"github.com/coesco/opsapi/internal/store"
)

// Repository is the per-model data access the services depend on.
// *store.Repository satisfies it.
type Repository interface {
	GetAll(ctx context.Context, params models.QueryParams, ext store.DBTX) (*models.ListResult, error)
	GetByID(ctx context.Context, id string, params models.QueryParams, ext store.DBTX) (*models.RecordResult, error)
	Create(ctx context.Context, data models.Record, ext store.DBTX, skipValidation bool) (*models.RecordResult, error)
	Update(ctx context.Context, id string, data models.Record, ext store.DBTX) (*models.RecordResult, error)
	Delete(ctx context.Context, id string, ext store.DBTX) (*models.DeleteResult, error)
	GetHistory(ctx context.Context, id string) ([]models.HistoryEntry, error)
}

// Gateway resolves repositories by model name and opens shared
// transactions for multi-model writes.
type Gateway interface {
	Repo(model string) Repository
	InTx(ctx context.Context, fn func(tx store.DBTX) error) error
}

// storeGateway adapts *store.Gateway to Gateway.
type storeGateway struct {
	gw *store.Gateway
}

// FromStore wraps a store gateway for use by the services.
func FromStore(gw *store.Gateway) Gateway {
	return storeGateway{gw: gw}
}

func (g storeGateway) Repo(model string) Repository {
	return g.gw.Repository(model)
}

func (g storeGateway) InTx(ctx context.Context, fn func(tx store.DBTX) error) error {
	return g.gw.InTx(ctx, fn)
}
