package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// EntityService handles CRUD for one model route.
type EntityService struct {
	c    *Client
	base string
}

func (o *ListOptions) values() (url.Values, error) {
	params := url.Values{}
	if o == nil {
		return params, nil
	}
	if o.Page > 0 {
		params.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Sort != "" {
		params.Set("sort", o.Sort)
	}
	if o.Order != "" {
		params.Set("order", o.Order)
	}
	if o.Search != "" {
		params.Set("search", o.Search)
	}
	if o.Fuzzy {
		params.Set("fuzzy", "true")
	}
	if len(o.Filter) > 0 {
		data, err := json.Marshal(o.Filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		params.Set("filter", string(data))
	}
	if len(o.Include) > 0 {
		params.Set("include", strings.Join(o.Include, ","))
	}
	if len(o.Select) > 0 {
		params.Set("select", strings.Join(o.Select, ","))
	}
	if o.IncludeDeleted != ExcludeDeleted {
		params.Set("includeDeleted", o.IncludeDeleted.String())
	}
	if o.DateFrom != nil {
		params.Set("dateFrom", o.DateFrom.Format(time.RFC3339Nano))
	}
	if o.DateTo != nil {
		params.Set("dateTo", o.DateTo.Format(time.RFC3339Nano))
	}
	return params, nil
}

func (o *GetOptions) values() url.Values {
	params := url.Values{}
	if o == nil {
		return params
	}
	if len(o.Include) > 0 {
		params.Set("include", strings.Join(o.Include, ","))
	}
	if len(o.Select) > 0 {
		params.Set("select", strings.Join(o.Select, ","))
	}
	if o.IncludeDeleted != ExcludeDeleted {
		params.Set("includeDeleted", o.IncludeDeleted.String())
	}
	return params
}

// List returns one page of records.
func (s *EntityService) List(ctx context.Context, opts *ListOptions) (*ListResult, error) {
	params, err := opts.values()
	if err != nil {
		return nil, err
	}
	var resp ListResult
	if err := s.c.get(ctx, s.base, params, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Get returns a single record by ID.
func (s *EntityService) Get(ctx context.Context, id string, opts *GetOptions) (Record, error) {
	var resp RecordResult
	if err := s.c.get(ctx, s.base+"/"+url.PathEscape(id), opts.values(), &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Create creates a record.
func (s *EntityService) Create(ctx context.Context, data Record) (Record, error) {
	var resp RecordResult
	if err := s.c.post(ctx, s.base, data, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Update applies a partial update to a record.
func (s *EntityService) Update(ctx context.Context, id string, data Record) (Record, error) {
	var resp RecordResult
	if err := s.c.put(ctx, s.base+"/"+url.PathEscape(id), data, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// Delete soft-deletes a record where the model supports it.
func (s *EntityService) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	var resp DeleteResult
	if err := s.c.del(ctx, s.base+"/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns the audit trail of a record, oldest first.
func (s *EntityService) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	var resp struct {
		Data []HistoryEntry `json:"data"`
	}
	if err := s.c.get(ctx, s.base+"/"+url.PathEscape(id)+"/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
