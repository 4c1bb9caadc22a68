package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/domain"
	"github.com/coesco/opsapi/internal/entities"
	"github.com/coesco/opsapi/internal/models"
	"github.com/coesco/opsapi/internal/store"
)

// Compile-time check: *QuoteService must satisfy domain.QuoteService.
var _ domain.QuoteService = (*QuoteService)(nil)

// QuoteService writes a quote and its line items in one transaction.
type QuoteService struct {
	gw  Gateway
	log *logrus.Logger
}

// NewQuoteService creates a QuoteService.
func NewQuoteService(gw Gateway, log *logrus.Logger) *QuoteService {
	return &QuoteService{gw: gw, log: log}
}

// CreateWithItems creates the quote, then each item pointing at it. Items
// without a lineNumber are numbered in request order. Any failure rolls
// back the quote and every item.
func (s *QuoteService) CreateWithItems(ctx context.Context, req models.CreateQuoteRequest) (*models.RecordResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out *models.RecordResult

	err := s.gw.InTx(ctx, func(tx store.DBTX) error {
		quote, err := s.gw.Repo(entities.Quote).Create(ctx, req.Quote, tx, false)
		if err != nil {
			return fmt.Errorf("creating quote: %w", err)
		}

		quoteID := quote.Data.ID()
		items := make([]models.Record, 0, len(req.Items))

		for i, item := range req.Items {
			rec := item.Clone()
			rec["quoteId"] = quoteID

			if _, ok := rec["lineNumber"]; !ok {
				rec["lineNumber"] = i + 1
			}

			created, err := s.gw.Repo(entities.QuoteItem).Create(ctx, rec, tx, false)
			if err != nil {
				return fmt.Errorf("creating quote item %d: %w", i+1, err)
			}

			items = append(items, created.Data)
		}

		quote.Data["items"] = items
		out = quote

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"quote_id": out.Data.ID(),
		"items":    len(req.Items),
	}).Info("quote.create_with_items")

	return out, nil
}

// DeleteWithItems deletes every item of the quote and then the quote.
func (s *QuoteService) DeleteWithItems(ctx context.Context, id string) (*models.DeleteResult, error) {
	filter, err := json.Marshal(map[string]string{"quoteId": id})
	if err != nil {
		return nil, fmt.Errorf("encoding item filter: %w", err)
	}

	var (
		out     *models.DeleteResult
		removed int
	)

	err = s.gw.InTx(ctx, func(tx store.DBTX) error {
		items, err := s.gw.Repo(entities.QuoteItem).GetAll(ctx, models.QueryParams{Filter: filter}, tx)
		if err != nil {
			return fmt.Errorf("listing quote items: %w", err)
		}

		for _, item := range items.Data {
			if _, err := s.gw.Repo(entities.QuoteItem).Delete(ctx, item.ID(), tx); err != nil {
				return fmt.Errorf("deleting quote item %s: %w", item.ID(), err)
			}
			removed++
		}

		out, err = s.gw.Repo(entities.Quote).Delete(ctx, id, tx)
		if err != nil {
			return fmt.Errorf("deleting quote: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"quote_id": id,
		"items":    removed,
	}).Info("quote.delete_with_items")

	return out, nil
}
