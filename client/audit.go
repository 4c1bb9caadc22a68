package client

import (
	"context"
	"net/url"
	"strconv"
	"time"
)

// AuditService handles audit log administration. It needs an admin token.
type AuditService struct {
	c *Client
}

type auditQueryResponse struct {
	Data    []AuditEntry `json:"data"`
	HasMore bool         `json:"has_more"`
}

// Query returns audit log entries matching the given options.
func (s *AuditService) Query(ctx context.Context, opts *AuditQueryOptions) ([]AuditEntry, bool, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Model != "" {
			params.Set("model", opts.Model)
		}
		if opts.RecordID != "" {
			params.Set("record_id", opts.RecordID)
		}
		if opts.Action != "" {
			params.Set("action", opts.Action)
		}
		if opts.ChangedBy != "" {
			params.Set("changed_by", opts.ChangedBy)
		}
		if opts.Since != nil {
			params.Set("since", opts.Since.Format(time.RFC3339))
		}
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
	}
	var resp auditQueryResponse
	if err := s.c.get(ctx, "/api/v1/admin/audit", params, &resp); err != nil {
		return nil, false, err
	}
	return resp.Data, resp.HasMore, nil
}

// Purge deletes audit entries older than retentionDays and returns the
// count deleted. 0 uses the server default.
func (s *AuditService) Purge(ctx context.Context, retentionDays int) (int, error) {
	params := url.Values{}
	if retentionDays > 0 {
		params.Set("retention_days", strconv.Itoa(retentionDays))
	}
	var resp struct {
		Deleted       int `json:"deleted"`
		RetentionDays int `json:"retention_days"`
	}
	if err := s.c.del(ctx, "/api/v1/admin/audit", params, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}
