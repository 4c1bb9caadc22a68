package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coesco/opsapi/internal/models"
)

// Typed wraps a Repository with a concrete entity type. Records are
// converted through their JSON form, so T's json tags must match the
// column names.
type Typed[T any] struct {
	repo *Repository
}

// NewTyped returns a typed view of repo.
func NewTyped[T any](repo *Repository) *Typed[T] {
	return &Typed[T]{repo: repo}
}

// Repository returns the untyped repository.
func (t *Typed[T]) Repository() *Repository { return t.repo }

// GetByID returns the record as T.
func (t *Typed[T]) GetByID(ctx context.Context, id string, params models.QueryParams, ext DBTX) (*T, error) {
	res, err := t.repo.GetByID(ctx, id, params, ext)
	if err != nil {
		return nil, err
	}

	return decodeRecord[T](res.Data)
}

// List returns a page of records as T.
func (t *Typed[T]) List(ctx context.Context, params models.QueryParams, ext DBTX) ([]T, models.ListMeta, error) {
	res, err := t.repo.GetAll(ctx, params, ext)
	if err != nil {
		return nil, models.ListMeta{}, err
	}

	out := make([]T, 0, len(res.Data))

	for _, rec := range res.Data {
		v, err := decodeRecord[T](rec)
		if err != nil {
			return nil, models.ListMeta{}, err
		}

		out = append(out, *v)
	}

	return out, res.Meta, nil
}

// Create inserts data and returns the stored row as T.
func (t *Typed[T]) Create(ctx context.Context, data models.Record, ext DBTX) (*T, error) {
	res, err := t.repo.Create(ctx, data, ext, false)
	if err != nil {
		return nil, err
	}

	return decodeRecord[T](res.Data)
}

// Update patches record id and returns the stored row as T.
func (t *Typed[T]) Update(ctx context.Context, id string, patch models.Record, ext DBTX) (*T, error) {
	res, err := t.repo.Update(ctx, id, patch, ext)
	if err != nil {
		return nil, err
	}

	return decodeRecord[T](res.Data)
}

func decodeRecord[T any](rec models.Record) (*T, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}

	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}

	return &v, nil
}
