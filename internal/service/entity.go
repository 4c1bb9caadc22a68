package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/domain"
	"github.com/coesco/opsapi/internal/models"
)

// Compile-time check: *EntityService must satisfy domain.EntityService.
var _ domain.EntityService = (*EntityService)(nil)

// EntityService routes model-named requests to the gateway repositories.
type EntityService struct {
	gw  Gateway
	log *logrus.Logger
}

// NewEntityService creates an EntityService.
func NewEntityService(gw Gateway, log *logrus.Logger) *EntityService {
	return &EntityService{gw: gw, log: log}
}

// GetAll returns a page of records (pass-through).
func (s *EntityService) GetAll(ctx context.Context, model string, params models.QueryParams) (*models.ListResult, error) {
	return s.gw.Repo(model).GetAll(ctx, params, nil)
}

// GetByID returns one record (pass-through).
func (s *EntityService) GetByID(
	ctx context.Context, model, id string, params models.QueryParams,
) (*models.RecordResult, error) {
	return s.gw.Repo(model).GetByID(ctx, id, params, nil)
}

// Create validates and inserts a record.
func (s *EntityService) Create(ctx context.Context, model string, data models.Record) (*models.RecordResult, error) {
	res, err := s.gw.Repo(model).Create(ctx, data, nil, false)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"model":     model,
		"record_id": res.Data.ID(),
	}).Debug("entity.create")

	return res, nil
}

// Update applies a partial update.
func (s *EntityService) Update(
	ctx context.Context, model, id string, data models.Record,
) (*models.RecordResult, error) {
	res, err := s.gw.Repo(model).Update(ctx, id, data, nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"model":     model,
		"record_id": id,
		"fields":    len(data),
	}).Debug("entity.update")

	return res, nil
}

// Delete soft-deletes the record when the model supports it, otherwise
// removes it.
func (s *EntityService) Delete(ctx context.Context, model, id string) (*models.DeleteResult, error) {
	res, err := s.gw.Repo(model).Delete(ctx, id, nil)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"model":     model,
		"record_id": id,
	}).Info("entity.delete")

	return res, nil
}

// GetHistory returns the audit history of a record (pass-through).
func (s *EntityService) GetHistory(ctx context.Context, model, id string) ([]models.HistoryEntry, error) {
	return s.gw.Repo(model).GetHistory(ctx, id)
}
