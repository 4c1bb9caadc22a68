package service

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/models"
	"github.com/coesco/opsapi/internal/store"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return log
}

// fakeTx stands in for an open transaction; the mocks only compare it.
type fakeTx struct{ id int }

func (*fakeTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (*fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }

func (*fakeTx) QueryRow(context.Context, string, ...any) pgx.Row { return nil }

// mockGateway hands out mock repositories and records every call.
type mockGateway struct {
	mu    sync.Mutex
	calls []string
	txs   []store.DBTX

	repos map[string]*mockRepository
	tx    *fakeTx
	inTx  func(ctx context.Context, fn func(tx store.DBTX) error) error
}

func newMockGateway() *mockGateway {
	g := &mockGateway{repos: make(map[string]*mockRepository), tx: &fakeTx{id: 1}}

	return g
}

func (g *mockGateway) record(name string, tx store.DBTX) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, name)
	g.txs = append(g.txs, tx)
}

func (g *mockGateway) repo(model string) *mockRepository {
	r, ok := g.repos[model]
	if !ok {
		r = &mockRepository{model: model, gw: g}
		g.repos[model] = r
	}

	return r
}

func (g *mockGateway) Repo(model string) Repository { return g.repo(model) }

func (g *mockGateway) InTx(ctx context.Context, fn func(tx store.DBTX) error) error {
	g.record("InTx", nil)
	if g.inTx != nil {
		return g.inTx(ctx, fn)
	}

	return fn(g.tx)
}

// mockRepository records calls and returns configured responses.
type mockRepository struct {
	model string
	gw    *mockGateway

	getAll     func(ctx context.Context, params models.QueryParams) (*models.ListResult, error)
	getByID    func(ctx context.Context, id string, params models.QueryParams) (*models.RecordResult, error)
	create     func(ctx context.Context, data models.Record) (*models.RecordResult, error)
	update     func(ctx context.Context, id string, data models.Record) (*models.RecordResult, error)
	delete     func(ctx context.Context, id string) (*models.DeleteResult, error)
	getHistory func(ctx context.Context, id string) ([]models.HistoryEntry, error)
}

func (m *mockRepository) GetAll(ctx context.Context, params models.QueryParams, ext store.DBTX) (*models.ListResult, error) {
	m.gw.record(m.model+".GetAll", ext)
	return m.getAll(ctx, params)
}

func (m *mockRepository) GetByID(ctx context.Context, id string, params models.QueryParams, ext store.DBTX) (*models.RecordResult, error) {
	m.gw.record(m.model+".GetByID", ext)
	return m.getByID(ctx, id, params)
}

func (m *mockRepository) Create(ctx context.Context, data models.Record, ext store.DBTX, _ bool) (*models.RecordResult, error) {
	m.gw.record(m.model+".Create", ext)
	return m.create(ctx, data)
}

func (m *mockRepository) Update(ctx context.Context, id string, data models.Record, ext store.DBTX) (*models.RecordResult, error) {
	m.gw.record(m.model+".Update", ext)
	return m.update(ctx, id, data)
}

func (m *mockRepository) Delete(ctx context.Context, id string, ext store.DBTX) (*models.DeleteResult, error) {
	m.gw.record(m.model+".Delete", ext)
	return m.delete(ctx, id)
}

func (m *mockRepository) GetHistory(ctx context.Context, id string) ([]models.HistoryEntry, error) {
	m.gw.record(m.model+".GetHistory", nil)
	return m.getHistory(ctx, id)
}

// mockAuditStore records calls and returns configured responses.
type mockAuditStore struct {
	mu    sync.Mutex
	calls []string

	queryAudit func(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error)
	purge      func(ctx context.Context, retentionDays int) (int, error)
}

func (m *mockAuditStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockAuditStore) QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	m.record("QueryAudit")
	return m.queryAudit(ctx, opts)
}

func (m *mockAuditStore) PurgeOldEntries(ctx context.Context, retentionDays int) (int, error) {
	m.record("PurgeOldEntries")
	return m.purge(ctx, retentionDays)
}

// mockDeletedStore records calls and returns configured responses.
type mockDeletedStore struct {
	mu    sync.Mutex
	calls []string

	list         func(ctx context.Context, opts models.DeletedQueryOpts) (*models.DeletedList, error)
	restore      func(ctx context.Context, model, id string) (*models.RecordResult, error)
	hardDelete   func(ctx context.Context, model, id string) (*models.DeleteResult, error)
	purgeExpired func(ctx context.Context) (int, error)
}

func (m *mockDeletedStore) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
}

func (m *mockDeletedStore) List(ctx context.Context, opts models.DeletedQueryOpts) (*models.DeletedList, error) {
	m.record("List")
	return m.list(ctx, opts)
}

func (m *mockDeletedStore) Restore(ctx context.Context, model, id string) (*models.RecordResult, error) {
	m.record("Restore")
	return m.restore(ctx, model, id)
}

func (m *mockDeletedStore) HardDelete(ctx context.Context, model, id string) (*models.DeleteResult, error) {
	m.record("HardDelete")
	return m.hardDelete(ctx, model, id)
}

func (m *mockDeletedStore) PurgeExpired(ctx context.Context) (int, error) {
	m.record("PurgeExpired")
	return m.purgeExpired(ctx)
}
