package api_test

import (
	"context"

	"github.com/coesco/opsapi/internal/models"
)

// mockEntityService implements api.EntityService for testing.
type mockEntityService struct {
	getAllFn     func(ctx context.Context, model string, params models.QueryParams) (*models.ListResult, error)
	getByIDFn    func(ctx context.Context, model, id string, params models.QueryParams) (*models.RecordResult, error)
	createFn     func(ctx context.Context, model string, data models.Record) (*models.RecordResult, error)
	updateFn     func(ctx context.Context, model, id string, data models.Record) (*models.RecordResult, error)
	deleteFn     func(ctx context.Context, model, id string) (*models.DeleteResult, error)
	getHistoryFn func(ctx context.Context, model, id string) ([]models.HistoryEntry, error)
}

func (m *mockEntityService) GetAll(ctx context.Context, model string, params models.QueryParams) (*models.ListResult, error) {
	return m.getAllFn(ctx, model, params)
}

func (m *mockEntityService) GetByID(ctx context.Context, model, id string, params models.QueryParams) (*models.RecordResult, error) {
	return m.getByIDFn(ctx, model, id, params)
}

func (m *mockEntityService) Create(ctx context.Context, model string, data models.Record) (*models.RecordResult, error) {
	return m.createFn(ctx, model, data)
}

func (m *mockEntityService) Update(ctx context.Context, model, id string, data models.Record) (*models.RecordResult, error) {
	return m.updateFn(ctx, model, id, data)
}

func (m *mockEntityService) Delete(ctx context.Context, model, id string) (*models.DeleteResult, error) {
	return m.deleteFn(ctx, model, id)
}

func (m *mockEntityService) GetHistory(ctx context.Context, model, id string) ([]models.HistoryEntry, error) {
	return m.getHistoryFn(ctx, model, id)
}

// mockQuoteService implements api.QuoteService for testing.
type mockQuoteService struct {
	createFn func(ctx context.Context, req models.CreateQuoteRequest) (*models.RecordResult, error)
	deleteFn func(ctx context.Context, id string) (*models.DeleteResult, error)
}

func (m *mockQuoteService) CreateWithItems(ctx context.Context, req models.CreateQuoteRequest) (*models.RecordResult, error) {
	return m.createFn(ctx, req)
}

func (m *mockQuoteService) DeleteWithItems(ctx context.Context, id string) (*models.DeleteResult, error) {
	return m.deleteFn(ctx, id)
}

// mockAuditService implements api.AuditService for testing.
type mockAuditService struct {
	queryFn func(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	purgeFn func(ctx context.Context, retentionDays int) (int, error)
}

func (m *mockAuditService) QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	return m.queryFn(ctx, opts)
}

func (m *mockAuditService) PurgeOldEntries(ctx context.Context, retentionDays int) (int, error) {
	return m.purgeFn(ctx, retentionDays)
}

// mockDeletedService implements api.DeletedRecordsService for testing.
type mockDeletedService struct {
	listFn       func(ctx context.Context, opts models.DeletedQueryOpts) (*models.DeletedList, error)
	restoreFn    func(ctx context.Context, model, id string) (*models.RecordResult, error)
	hardDeleteFn func(ctx context.Context, model, id string) (*models.DeleteResult, error)
}

func (m *mockDeletedService) List(ctx context.Context, opts models.DeletedQueryOpts) (*models.DeletedList, error) {
	return m.listFn(ctx, opts)
}

func (m *mockDeletedService) Restore(ctx context.Context, model, id string) (*models.RecordResult, error) {
	return m.restoreFn(ctx, model, id)
}

func (m *mockDeletedService) HardDelete(ctx context.Context, model, id string) (*models.DeleteResult, error) {
	return m.hardDeleteFn(ctx, model, id)
}

func (m *mockDeletedService) PurgeExpired(context.Context) (int, error) {
	return 0, nil
}

// mockPinger implements api.Pinger for testing.
type mockPinger struct {
	err error
}

func (m *mockPinger) HealthCheck(context.Context) error { return m.err }
