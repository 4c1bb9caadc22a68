// Package domain defines the canonical service interfaces shared by the API
// layer and the CLI. Consumers should depend on these interfaces rather than
// re-declaring equivalent ones.
package domain

import (
	"context"

	"github.com/coesco/opsapi/internal/models"
)

// EntityService exposes the gateway façade for any registered model.
type EntityService interface {
	GetAll(ctx context.Context, model string, params models.QueryParams) (*models.ListResult, error)
	GetByID(ctx context.Context, model, id string, params models.QueryParams) (*models.RecordResult, error)
	Create(ctx context.Context, model string, data models.Record) (*models.RecordResult, error)
	Update(ctx context.Context, model, id string, data models.Record) (*models.RecordResult, error)
	Delete(ctx context.Context, model, id string) (*models.DeleteResult, error)
	GetHistory(ctx context.Context, model, id string) ([]models.HistoryEntry, error)
}

// QuoteService defines the multi-model quote writes.
type QuoteService interface {
	CreateWithItems(ctx context.Context, req models.CreateQuoteRequest) (*models.RecordResult, error)
	DeleteWithItems(ctx context.Context, id string) (*models.DeleteResult, error)
}

// AuditService defines audit log operations.
type AuditService interface {
	QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	PurgeOldEntries(ctx context.Context, retentionDays int) (int, error)
}

// DeletedRecordsService defines soft-deleted record administration.
type DeletedRecordsService interface {
	List(ctx context.Context, opts models.DeletedQueryOpts) (*models.DeletedList, error)
	Restore(ctx context.Context, model, id string) (*models.RecordResult, error)
	HardDelete(ctx context.Context, model, id string) (*models.DeleteResult, error)
	PurgeExpired(ctx context.Context) (int, error)
}
