package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/metrics"
	"github.com/coesco/opsapi/internal/models"
)

// Options tunes the gateway.
type Options struct {
	// CandidateCap bounds the rows fetched by fuzzy and computed searches
	// before in-memory pagination. 0 means unbounded.
	CandidateCap int
}

// Gateway hands out one Repository per model and owns the shared
// registry, audit store and history store.
type Gateway struct {
	Base

	reg     *Registry
	audit   *AuditStore
	history *HistoryStore
	opts    Options

	mu    sync.Mutex
	repos map[string]*Repository
}

// NewGateway creates a Gateway over reg.
func NewGateway(base Base, reg *Registry, opts Options) *Gateway {
	return &Gateway{
		Base:    base,
		reg:     reg,
		audit:   NewAuditStore(base),
		history: NewHistoryStore(base),
		opts:    opts,
		repos:   make(map[string]*Repository),
	}
}

// Registry returns the model registry.
func (g *Gateway) Registry() *Registry { return g.reg }

// Audit returns the audit store.
func (g *Gateway) Audit() *AuditStore { return g.audit }

// InTx runs fn in a single transaction opened for the caller in ctx.
// Repository calls made with the tx join it instead of opening their own.
func (g *Gateway) InTx(ctx context.Context, fn func(tx DBTX) error) error {
	return g.inTx(ctx, nil, identity.FromContext(ctx), fn)
}

// Repository returns the repository for model name. Unregistered names get
// a repository driven purely by introspection.
func (g *Gateway) Repository(name string) *Repository {
	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.repos[name]; ok {
		return r
	}

	r := &Repository{gw: g, model: g.reg.lookup(name)}
	g.repos[name] = r

	return r
}

// Repository is the gateway façade for one model.
type Repository struct {
	gw    *Gateway
	model *Model
}

// Name returns the model name.
func (r *Repository) Name() string { return r.model.Name }

func (r *Repository) columns(ctx context.Context) (ColumnSet, error) {
	if r.model.Name == "" {
		return nil, models.ErrModelNameRequired
	}

	cols, err := r.gw.reg.Columns(ctx, r.model.Name)
	if err != nil {
		return nil, fmt.Errorf("introspecting %s: %w", r.model.Name, err)
	}

	return cols, nil
}

func (r *Repository) table() string {
	return r.gw.reg.Table(r.model.Name)
}

// db returns ext when the caller supplied a transaction, otherwise the pool.
func (r *Repository) db(ext DBTX) DBTX {
	if ext != nil {
		return ext
	}

	return r.gw.DB
}

// attachComputed adds computed fields to full rows. Field projections
// return only what was asked for.
func (r *Repository) attachComputed(p *Projection, recs ...models.Record) {
	if !p.IsEmpty() && (len(p.Fields) > 0 || p.RelationsOnly) {
		return
	}

	r.model.applyComputed(recs...)
}

// GetAll lists records visible to the caller in ctx. ext, when non-nil,
// is a caller transaction the queries run in.
func (r *Repository) GetAll(ctx context.Context, params models.QueryParams, ext DBTX) (*models.ListResult, error) {
	cols, err := r.columns(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := r.gw.reg.Translate(params, r.model, cols)
	if err != nil {
		return nil, err
	}

	q := &listQuery{
		db:         r.db(ext),
		reg:        r.gw.reg,
		model:      r.model,
		table:      r.table(),
		plan:       plan,
		scope:      Scope(cols.Meta(), identity.FromContext(ctx), plan.IncludeDeleted),
		concurrent: ext == nil,
		cap:        r.gw.opts.CandidateCap,
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	recs, total, err := finderFor(plan.Kind).find(ctx, q)
	if err != nil {
		return nil, err
	}

	if plan.Kind != PlanComputed {
		r.attachComputed(plan.ListProjection(), recs...)
	}

	metrics.ListQueries.WithLabelValues(r.model.Name, plan.Kind.String()).Inc()

	return &models.ListResult{
		Success: true,
		Data:    recs,
		Meta: models.ListMeta{
			Page:       plan.Page,
			Limit:      plan.Take,
			Total:      total,
			TotalPages: models.TotalPages(total, plan.Take),
		},
	}, nil
}

// GetByID returns one record visible to the caller, or models.ErrNotFound.
// Include is applied in preference to select.
func (r *Repository) GetByID(ctx context.Context, id string, params models.QueryParams, ext DBTX) (*models.RecordResult, error) {
	cols, err := r.columns(ctx)
	if err != nil {
		return nil, err
	}

	plan, err := r.gw.reg.Translate(models.QueryParams{
		Include:        params.Include,
		Select:         params.Select,
		IncludeDeleted: params.IncludeDeleted,
	}, r.model, cols)
	if err != nil {
		return nil, err
	}

	caller := identity.FromContext(ctx)
	proj := plan.SingleProjection()

	b := newSQLBuilder(ctx, r.gw.reg, plan.IncludeDeleted)

	sel, err := b.selectList(proj, r.model, rootAlias)
	if err != nil {
		return nil, err
	}

	where, err := b.where(AllOf(Eq(ColID, id), Scope(cols.Meta(), caller, plan.IncludeDeleted)), r.model, rootAlias)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := r.db(ext).Query(ctx,
		"SELECT "+sel+" FROM "+quoteIdent(r.table())+" "+rootAlias+" WHERE "+where+" LIMIT 1",
		b.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", r.model.Name, id, err)
	}

	rec, err := collectOne(rows)
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", r.model.Name, id, err)
	}

	r.attachComputed(proj, rec)

	return &models.RecordResult{Success: true, Data: rec}, nil
}

// GetHistory returns the audit trail of record id, oldest first.
func (r *Repository) GetHistory(ctx context.Context, id string) ([]models.HistoryEntry, error) {
	return r.gw.history.GetHistory(ctx, r.model.Name, id)
}
