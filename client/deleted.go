package client

import (
	"context"
	"net/url"
	"strconv"
)

// DeletedService handles soft-deleted record administration. It needs an
// admin token.
type DeletedService struct {
	c *Client
}

// List returns one page of soft-deleted records, newest first.
func (s *DeletedService) List(ctx context.Context, opts *DeletedListOptions) (*DeletedList, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Model != "" {
			params.Set("model", opts.Model)
		}
		if opts.Page > 0 {
			params.Set("page", strconv.Itoa(opts.Page))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
	}
	var resp DeletedList
	if err := s.c.get(ctx, "/api/v1/admin/deleted", params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func deletedPath(model, id string) string {
	return "/api/v1/admin/deleted/" + url.PathEscape(model) + "/" + url.PathEscape(id)
}

// Restore clears the soft-delete markers of a record.
func (s *DeletedService) Restore(ctx context.Context, model, id string) (Record, error) {
	var resp RecordResult
	if err := s.c.post(ctx, deletedPath(model, id)+"/restore", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// HardDelete permanently removes a soft-deleted record.
func (s *DeletedService) HardDelete(ctx context.Context, model, id string) (*DeleteResult, error) {
	var resp DeleteResult
	if err := s.c.del(ctx, deletedPath(model, id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
