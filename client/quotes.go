package client

import (
	"context"
	"net/url"
)

// QuoteService handles the quote endpoints that write line items too.
type QuoteService struct {
	c *Client
}

// CreateWithItems creates a quote and its items in one transaction. The
// returned record carries the created items under "items".
func (s *QuoteService) CreateWithItems(ctx context.Context, req *CreateQuoteRequest) (Record, error) {
	var resp RecordResult
	if err := s.c.post(ctx, "/api/v1/quotes/with-items", req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// DeleteWithItems deletes a quote and every one of its items.
func (s *QuoteService) DeleteWithItems(ctx context.Context, id string) (*DeleteResult, error) {
	var resp DeleteResult
	if err := s.c.del(ctx, "/api/v1/quotes/"+url.PathEscape(id)+"/with-items", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
