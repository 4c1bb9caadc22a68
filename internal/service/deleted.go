package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/domain"
	"github.com/coesco/opsapi/internal/models"
)

// DeletedStore is the data-access interface DeletedRecordsService depends on.
type DeletedStore = domain.DeletedRecordsService

// Compile-time check: *DeletedRecordsService must satisfy domain.DeletedRecordsService.
var _ domain.DeletedRecordsService = (*DeletedRecordsService)(nil)

// DeletedRecordsService wraps DeletedStore with logging for restores and
// permanent deletes.
type DeletedRecordsService struct {
	store DeletedStore
	log   *logrus.Logger
}

// NewDeletedRecordsService creates a DeletedRecordsService.
func NewDeletedRecordsService(store DeletedStore, log *logrus.Logger) *DeletedRecordsService {
	return &DeletedRecordsService{store: store, log: log}
}

// List returns soft-deleted records across models (pass-through).
func (s *DeletedRecordsService) List(ctx context.Context, opts models.DeletedQueryOpts) (*models.DeletedList, error) {
	return s.store.List(ctx, opts)
}

// Restore clears the deletion marker of a record.
func (s *DeletedRecordsService) Restore(ctx context.Context, model, id string) (*models.RecordResult, error) {
	res, err := s.store.Restore(ctx, model, id)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"model":     model,
		"record_id": id,
	}).Info("deleted.restore")

	return res, nil
}

// HardDelete permanently removes a soft-deleted record.
func (s *DeletedRecordsService) HardDelete(ctx context.Context, model, id string) (*models.DeleteResult, error) {
	res, err := s.store.HardDelete(ctx, model, id)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"model":     model,
		"record_id": id,
	}).Warn("deleted.hard_delete")

	return res, nil
}

// PurgeExpired permanently removes records whose retention has passed.
func (s *DeletedRecordsService) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.store.PurgeExpired(ctx)
	if err != nil {
		return 0, err
	}

	s.log.WithField("purged", n).Info("deleted.purge_expired")

	return n, nil
}
