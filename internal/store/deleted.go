package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/metrics"
	"github.com/coesco/opsapi/internal/models"
)

const (
	defaultDeletedLimit = 25
	// deletedListWorkers bounds concurrent per-model queries.
	deletedListWorkers = 4
)

// DeletedStore lists, restores and purges soft-deleted records across every
// registered model that has a deletedAt column.
type DeletedStore struct {
	gw        *Gateway
	retention time.Duration
}

// NewDeletedStore creates a DeletedStore. Records deleted more than
// retentionDays ago are eligible for PurgeExpired.
func NewDeletedStore(gw *Gateway, retentionDays int) *DeletedStore {
	return &DeletedStore{gw: gw, retention: time.Duration(retentionDays) * 24 * time.Hour}
}

// softDeleteModels returns the registered models with a deletedAt column,
// restricted to name when set.
func (s *DeletedStore) softDeleteModels(ctx context.Context, name string) ([]*Model, error) {
	var out []*Model

	for _, m := range s.gw.reg.Models() {
		if name != "" && m.Name != name {
			continue
		}

		cols, err := s.gw.reg.Columns(ctx, m.Name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s: %w", m.Name, err)
		}

		if cols.Has(ColDeletedAt) {
			out = append(out, m)
		}
	}

	if name != "" && len(out) == 0 {
		return nil, fmt.Errorf("%w: %s does not support soft delete", models.ErrUnknownModel, name)
	}

	return out, nil
}

type deletedPage struct {
	recs  []models.DeletedRecord
	total int
}

// List returns soft-deleted records visible to the caller, most recently
// deleted first, across all soft-delete models.
func (s *DeletedStore) List(ctx context.Context, opts models.DeletedQueryOpts) (*models.DeletedList, error) {
	page := max(opts.Page, 1)

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultDeletedLimit
	}

	limit = min(limit, maxListLimit)
	offset := (page - 1) * limit

	ms, err := s.softDeleteModels(ctx, opts.Model)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	pages := make([]deletedPage, len(ms))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(deletedListWorkers)

	for i, m := range ms {
		g.Go(func() error {
			p, err := s.listModel(gctx, m, offset+limit)
			if err != nil {
				return err
			}

			pages[i] = p

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		all   []models.DeletedRecord
		total int
	)

	for _, p := range pages {
		all = append(all, p.recs...)
		total += p.total
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].DeletedAt.After(all[j].DeletedAt) })

	data := []models.DeletedRecord{}
	if offset < len(all) {
		data = all[offset:min(offset+limit, len(all))]
	}

	return &models.DeletedList{
		Success: true,
		Data:    data,
		Meta: models.ListMeta{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: models.TotalPages(total, limit),
		},
	}, nil
}

// listModel returns the newest n deleted rows of m and the total count.
func (s *DeletedStore) listModel(ctx context.Context, m *Model, n int) (deletedPage, error) {
	cols, err := s.gw.reg.Columns(ctx, m.Name)
	if err != nil {
		return deletedPage{}, err
	}

	table := quoteIdent(s.gw.reg.Table(m.Name))
	scope := Scope(cols.Meta(), identity.FromContext(ctx), models.OnlyDeleted)

	b := newSQLBuilder(ctx, s.gw.reg, models.OnlyDeleted)

	where, err := b.where(scope, m, rootAlias)
	if err != nil {
		return deletedPage{}, err
	}

	var total int64
	if err := s.gw.DB.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+" "+rootAlias+" WHERE "+where, b.args...).Scan(&total); err != nil {
		return deletedPage{}, fmt.Errorf("counting deleted %s: %w", m.Name, err)
	}

	sql := "SELECT " + rootAlias + ".* FROM " + table + " " + rootAlias + " WHERE " + where +
		" ORDER BY " + col(rootAlias, ColDeletedAt) + " DESC LIMIT " + b.arg(n)

	rows, err := s.gw.DB.Query(ctx, sql, b.args...)
	if err != nil {
		return deletedPage{}, fmt.Errorf("listing deleted %s: %w", m.Name, err)
	}

	recs, err := collectRecords(rows)
	if err != nil {
		return deletedPage{}, err
	}

	out := make([]models.DeletedRecord, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.toDeleted(m, rec))
	}

	return deletedPage{recs: out, total: int(total)}, nil
}

func (s *DeletedStore) toDeleted(m *Model, rec models.Record) models.DeletedRecord {
	d := models.DeletedRecord{
		Model:       m.Name,
		ID:          rec.ID(),
		DisplayName: displayName(m, rec),
		Metadata:    make(map[string]any),
	}

	if t, ok := asTime(rec[ColDeletedAt]); ok {
		d.DeletedAt = t
		d.HardDeleteDate = t.Add(s.retention)
	}

	if by, ok := rec[ColDeletedByID].(string); ok && by != "" {
		d.DeletedByID = &by
	}

	for _, k := range []string{ColCreatedAt, ColUpdatedAt, ColCreatedByID, "type", "status"} {
		if v, ok := rec[k]; ok && v != nil {
			d.Metadata[k] = v
		}
	}

	return d
}

// displayName joins the model's display fields, falling back to the id.
func displayName(m *Model, rec models.Record) string {
	parts := make([]string, 0, len(m.DisplayFields))

	for _, f := range m.DisplayFields {
		if v, ok := rec[f]; ok && v != nil {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				parts = append(parts, s)
			}
		}
	}

	if len(parts) == 0 {
		return rec.ID()
	}

	return strings.Join(parts, " ")
}

// Restore brings back a soft-deleted record of model.
func (s *DeletedStore) Restore(ctx context.Context, model, id string) (*models.RecordResult, error) {
	if _, err := s.softDeleteModels(ctx, model); err != nil {
		return nil, err
	}

	return s.gw.Repository(model).Restore(ctx, id, nil)
}

// HardDelete permanently removes a soft-deleted record of model.
func (s *DeletedStore) HardDelete(ctx context.Context, model, id string) (*models.DeleteResult, error) {
	if _, err := s.softDeleteModels(ctx, model); err != nil {
		return nil, err
	}

	return s.gw.Repository(model).Purge(ctx, id, nil)
}

// PurgeExpired physically removes records soft deleted before the retention
// window, auditing each removal. Returns the number of rows removed.
func (s *DeletedStore) PurgeExpired(ctx context.Context) (int, error) {
	if s.retention <= 0 {
		return 0, fmt.Errorf("retention must be at least one day")
	}

	ms, err := s.softDeleteModels(ctx, "")
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().UTC().Add(-s.retention)
	total := 0

	for _, m := range ms {
		n, err := s.purgeModel(ctx, m, cutoff)
		if err != nil {
			return total, err
		}

		if n > 0 {
			metrics.DeletedPurged.WithLabelValues(m.Name).Add(float64(n))

			if s.gw.Log != nil {
				s.gw.Log.WithFields(logrus.Fields{"model": m.Name, "purged": n}).Info("purged expired deleted records")
			}
		}

		total += n
	}

	return total, nil
}

func (s *DeletedStore) purgeModel(ctx context.Context, m *Model, cutoff time.Time) (int, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	caller := identity.FromContext(ctx)
	n := 0

	err := s.gw.inTx(ctx, nil, caller, func(tx DBTX) error {
		rows, err := tx.Query(ctx,
			"DELETE FROM "+quoteIdent(s.gw.reg.Table(m.Name))+" WHERE "+quoteIdent(ColDeletedAt)+" < $1 RETURNING *",
			cutoff,
		)
		if err != nil {
			return fmt.Errorf("purging %s: %w", m.Name, err)
		}

		removed, err := collectRecords(rows)
		if err != nil {
			return fmt.Errorf("purging %s: %w", m.Name, mapWriteError(err))
		}

		for _, before := range removed {
			if _, err := s.gw.audit.Record(ctx, tx, m.Name, models.ActionDelete, before, nil, caller); err != nil {
				return err
			}
		}

		n = len(removed)

		return nil
	})

	return n, err
}
