// Package store implements the generic persistence gateway: per-model
// column introspection, visibility scoping, query translation and
// audit-logged mutations over Postgres.
//
// Every model is served by the same Repository type; model-specific
// behavior (search fields, relations, computed fields, validation) is
// declared on a Model and registered in a Registry at startup.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/models"
)

const defaultQueryTimeout = 30 * time.Second

// DBTX is the query surface shared by the pool and an open transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner is a DBTX that can open transactions (the pool).
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	DB  TxBeginner
	Log *logrus.Logger
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// setEmployee exposes the acting employee to triggers and policies for the
// lifetime of the transaction.
func setEmployee(ctx context.Context, tx DBTX, employeeID string) error {
	_, err := tx.Exec(ctx, "SELECT set_config('app.employee_id', $1, true)", employeeID)
	if err != nil {
		return fmt.Errorf("setting employee context: %w", err)
	}

	return nil
}

// beginTx starts a read-write transaction and sets the employee context.
func (b *Base) beginTx(ctx context.Context, caller identity.Caller) (pgx.Tx, error) {
	tx, err := b.DB.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	if err := setEmployee(ctx, tx, caller.ID); err != nil {
		tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on setup failure.

		return nil, err
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.DB.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// inTx runs fn inside ext when the caller supplied a transaction, otherwise
// inside a fresh one that is committed only if fn succeeds.
func (b *Base) inTx(ctx context.Context, ext DBTX, caller identity.Caller, fn func(DBTX) error) error {
	if ext != nil {
		return fn(ext)
	}

	tx, err := b.beginTx(ctx, caller)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// mapWriteError converts driver errors into model sentinels.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", models.ErrDuplicateKey, pgErr.ConstraintName)
		case "23502", "23503", "23514", "22P02":
			return fmt.Errorf("%w: %s", models.ErrValidation, pgErr.Message)
		}
	}

	return err
}
