package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/metrics"
	"github.com/coesco/opsapi/internal/models"
)

// updateIgnored are stamped on every update and never count as a change.
var updateIgnored = []string{ColUpdatedAt, ColUpdatedByID}

type stampKind int

const (
	stampCreate stampKind = iota
	stampUpdate
	stampDelete
)

// stamp merges metadata for kind into rec for the columns meta reports.
// Actor columns are left alone for anonymous callers.
func stamp(rec models.Record, meta Meta, caller identity.Caller, kind stampKind, now time.Time) {
	actor := !caller.IsAnonymous()

	switch kind {
	case stampCreate:
		if meta.CreatedBy && actor {
			rec[ColCreatedByID] = caller.ID
		}

		if meta.CreatedAt {
			rec[ColCreatedAt] = now
		}
	case stampDelete:
		if meta.SoftDelete {
			rec[ColDeletedAt] = now
		}

		if meta.DeletedBy && actor {
			rec[ColDeletedByID] = caller.ID
		}

		return
	}

	if meta.UpdatedBy && actor {
		rec[ColUpdatedByID] = caller.ID
	}

	if meta.UpdatedAt {
		rec[ColUpdatedAt] = now
	}
}

// writable copies the storable keys of data. Computed and relation keys are
// dropped; anything else must be a column of the table.
func (r *Repository) writable(data models.Record, cols ColumnSet) (models.Record, error) {
	out := make(models.Record, len(data))

	for k, v := range data {
		if r.model.isComputed(k) || k == scoreColumn {
			continue
		}

		if _, ok := r.model.relation(k); ok {
			continue
		}

		if !validIdent(k) || (len(cols) > 0 && !cols.Has(k)) {
			return nil, fmt.Errorf("%w: %s.%s", models.ErrUnknownField, r.model.Name, k)
		}

		out[k] = v
	}

	return out, nil
}

// validate runs the model hook, wrapping failures as validation errors.
func (r *Repository) validate(ctx context.Context, rec models.Record) error {
	if r.model.Validate == nil {
		return nil
	}

	err := r.model.Validate(ctx, rec)
	if err == nil || errors.Is(err, models.ErrValidation) {
		return err
	}

	return fmt.Errorf("%w: %w", models.ErrValidation, err)
}

// findForUpdate re-reads id under the caller's scope and locks the row.
func (r *Repository) findForUpdate(
	ctx context.Context,
	tx DBTX,
	id string,
	cols ColumnSet,
	caller identity.Caller,
	deleted models.IncludeDeleted,
) (models.Record, error) {
	b := newSQLBuilder(ctx, r.gw.reg, deleted)

	where, err := b.where(AllOf(Eq(ColID, id), Scope(cols.Meta(), caller, deleted)), r.model, rootAlias)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx,
		"SELECT "+rootAlias+".* FROM "+quoteIdent(r.table())+" "+rootAlias+" WHERE "+where+" LIMIT 1 FOR UPDATE",
		b.args...,
	)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", r.model.Name, id, err)
	}

	before, err := collectOne(rows)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", r.model.Name, id, err)
	}

	return before, nil
}

// sortedKeys returns rec's keys in a stable order for statement rendering.
func sortedKeys(rec models.Record) []string {
	return slices.Sorted(maps.Keys(rec))
}

func insertStatement(table string, rec models.Record) (string, []any) {
	if len(rec) == 0 {
		return "INSERT INTO " + quoteIdent(table) + " DEFAULT VALUES RETURNING *", nil
	}

	b := &sqlBuilder{}
	keys := sortedKeys(rec)
	names := make([]string, 0, len(keys))
	values := make([]string, 0, len(keys))

	for _, k := range keys {
		names = append(names, quoteIdent(k))
		values = append(values, b.arg(rec[k]))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		quoteIdent(table), strings.Join(names, ", "), strings.Join(values, ", "),
	), b.args
}

func updateStatement(table, id string, set models.Record) (string, []any) {
	b := &sqlBuilder{}
	keys := sortedKeys(set)
	pairs := make([]string, 0, len(keys))

	for _, k := range keys {
		pairs = append(pairs, quoteIdent(k)+" = "+b.arg(set[k]))
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s RETURNING *",
		quoteIdent(table), strings.Join(pairs, ", "), quoteIdent(ColID), b.arg(id),
	), b.args
}

// writeOne runs a statement returning the affected row.
func writeOne(ctx context.Context, tx DBTX, sql string, args []any) (models.Record, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapWriteError(err)
	}

	rec, err := collectOne(rows)
	if err != nil {
		return nil, mapWriteError(err)
	}

	return rec, nil
}

func (r *Repository) logMutation(action, id string, caller identity.Caller) {
	metrics.Mutations.WithLabelValues(r.model.Name, action).Inc()

	if r.gw.Log == nil {
		return
	}

	r.gw.Log.WithFields(logrus.Fields{
		"model":     r.model.Name,
		"record_id": id,
		"action":    action,
		"actor":     changedBy(caller),
	}).Debug("record mutated")
}

// Create inserts data and its CREATE audit entry in one transaction, or in
// ext when supplied. Metadata columns are stamped from the caller in ctx and
// the model's validation hook runs unless skipValidation is set.
func (r *Repository) Create(ctx context.Context, data models.Record, ext DBTX, skipValidation bool) (*models.RecordResult, error) {
	cols, err := r.columns(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := r.writable(data, cols)
	if err != nil {
		return nil, err
	}

	caller := identity.FromContext(ctx)
	stamp(payload, cols.Meta(), caller, stampCreate, time.Now().UTC())

	if payload.ID() == "" && cols.Has(ColID) {
		payload[ColID] = uuid.NewString()
	}

	if !skipValidation {
		if err := r.validate(ctx, payload); err != nil {
			return nil, err
		}
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var created models.Record

	err = r.gw.inTx(ctx, ext, caller, func(tx DBTX) error {
		sql, args := insertStatement(r.table(), payload)

		created, err = writeOne(ctx, tx, sql, args)
		if err != nil {
			return fmt.Errorf("creating %s: %w", r.model.Name, err)
		}

		_, err = r.gw.audit.Record(ctx, tx, r.model.Name, models.ActionCreate, nil, created, caller)

		return err
	})
	if err != nil {
		return nil, err
	}

	r.logMutation(models.ActionCreate, created.ID(), caller)
	r.model.applyComputed(created)

	return &models.RecordResult{Success: true, Data: created}, nil
}

// Update applies data to record id. The row is re-read under the caller's
// scope first; a missing row yields models.ErrNotFound and a change set that
// only touches updatedAt/updatedById yields models.ErrNoChanges. Nothing is
// written in either case.
func (r *Repository) Update(ctx context.Context, id string, data models.Record, ext DBTX) (*models.RecordResult, error) {
	cols, err := r.columns(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := r.writable(data, cols)
	if err != nil {
		return nil, err
	}

	delete(payload, ColID)

	caller := identity.FromContext(ctx)
	stamp(payload, cols.Meta(), caller, stampUpdate, time.Now().UTC())

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var updated models.Record

	err = r.gw.inTx(ctx, ext, caller, func(tx DBTX) error {
		before, err := r.findForUpdate(ctx, tx, id, cols, caller, models.ExcludeDeleted)
		if err != nil {
			return err
		}

		after := before.Clone()
		maps.Copy(after, payload)

		diff, err := Diff(before, after)
		if err != nil {
			return err
		}

		if len(without(diff, updateIgnored...)) == 0 {
			return fmt.Errorf("%s %s: %w", r.model.Name, id, models.ErrNoChanges)
		}

		sql, args := updateStatement(r.table(), id, payload)

		updated, err = writeOne(ctx, tx, sql, args)
		if err != nil {
			return fmt.Errorf("updating %s %s: %w", r.model.Name, id, err)
		}

		_, err = r.gw.audit.Record(ctx, tx, r.model.Name, models.ActionUpdate, before, updated, caller, updateIgnored...)

		return err
	})
	if err != nil {
		return nil, err
	}

	r.logMutation(models.ActionUpdate, id, caller)
	r.model.applyComputed(updated)

	return &models.RecordResult{Success: true, Data: updated}, nil
}

// Delete removes record id. Models with a deletedAt column are soft deleted
// and audited with before and after; others are physically removed and
// audited with before only.
func (r *Repository) Delete(ctx context.Context, id string, ext DBTX) (*models.DeleteResult, error) {
	cols, err := r.columns(ctx)
	if err != nil {
		return nil, err
	}

	caller := identity.FromContext(ctx)
	meta := cols.Meta()

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = r.gw.inTx(ctx, ext, caller, func(tx DBTX) error {
		before, err := r.findForUpdate(ctx, tx, id, cols, caller, models.ExcludeDeleted)
		if err != nil {
			return err
		}

		if !meta.SoftDelete {
			return r.hardDelete(ctx, tx, id, before, caller)
		}

		set := models.Record{}
		stamp(set, meta, caller, stampDelete, time.Now().UTC())

		sql, args := updateStatement(r.table(), id, set)

		after, err := writeOne(ctx, tx, sql, args)
		if err != nil {
			return fmt.Errorf("deleting %s %s: %w", r.model.Name, id, err)
		}

		_, err = r.gw.audit.Record(ctx, tx, r.model.Name, models.ActionDelete, before, after, caller)

		return err
	})
	if err != nil {
		return nil, err
	}

	r.logMutation(models.ActionDelete, id, caller)

	return &models.DeleteResult{Success: true, Message: models.DeletedMessage}, nil
}

func (r *Repository) hardDelete(ctx context.Context, tx DBTX, id string, before models.Record, caller identity.Caller) error {
	_, err := tx.Exec(ctx, "DELETE FROM "+quoteIdent(r.table())+" WHERE "+quoteIdent(ColID)+" = $1", id)
	if err != nil {
		return fmt.Errorf("deleting %s %s: %w", r.model.Name, id, mapWriteError(err))
	}

	_, err = r.gw.audit.Record(ctx, tx, r.model.Name, models.ActionDelete, before, nil, caller)

	return err
}

// Restore clears deletedAt/deletedById on a soft-deleted record and audits
// the change as an UPDATE.
func (r *Repository) Restore(ctx context.Context, id string, ext DBTX) (*models.RecordResult, error) {
	cols, err := r.columns(ctx)
	if err != nil {
		return nil, err
	}

	meta := cols.Meta()
	if !meta.SoftDelete {
		return nil, fmt.Errorf("%w: %s does not support soft delete", models.ErrInvalidQuery, r.model.Name)
	}

	caller := identity.FromContext(ctx)

	set := models.Record{ColDeletedAt: nil}
	if meta.DeletedBy {
		set[ColDeletedByID] = nil
	}

	stamp(set, meta, caller, stampUpdate, time.Now().UTC())

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var restored models.Record

	err = r.gw.inTx(ctx, ext, caller, func(tx DBTX) error {
		before, err := r.findForUpdate(ctx, tx, id, cols, caller, models.OnlyDeleted)
		if err != nil {
			return err
		}

		sql, args := updateStatement(r.table(), id, set)

		restored, err = writeOne(ctx, tx, sql, args)
		if err != nil {
			return fmt.Errorf("restoring %s %s: %w", r.model.Name, id, err)
		}

		_, err = r.gw.audit.Record(ctx, tx, r.model.Name, models.ActionUpdate, before, restored, caller, updateIgnored...)

		return err
	})
	if err != nil {
		return nil, err
	}

	r.logMutation(models.ActionUpdate, id, caller)
	r.model.applyComputed(restored)

	return &models.RecordResult{Success: true, Data: restored}, nil
}

// Purge physically removes a record that is already soft deleted.
func (r *Repository) Purge(ctx context.Context, id string, ext DBTX) (*models.DeleteResult, error) {
	cols, err := r.columns(ctx)
	if err != nil {
		return nil, err
	}

	if !cols.Meta().SoftDelete {
		return nil, fmt.Errorf("%w: %s does not support soft delete", models.ErrInvalidQuery, r.model.Name)
	}

	caller := identity.FromContext(ctx)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err = r.gw.inTx(ctx, ext, caller, func(tx DBTX) error {
		before, err := r.findForUpdate(ctx, tx, id, cols, caller, models.OnlyDeleted)
		if err != nil {
			return err
		}

		return r.hardDelete(ctx, tx, id, before, caller)
	})
	if err != nil {
		return nil, err
	}

	r.logMutation(models.ActionDelete, id, caller)

	return &models.DeleteResult{Success: true, Message: models.DeletedMessage}, nil
}
