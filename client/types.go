package client

import (
	"time"

	"github.com/coesco/opsapi/internal/models"
)

// Wire types shared with the server.
type (
	Record         = models.Record
	ListResult     = models.ListResult
	ListMeta       = models.ListMeta
	RecordResult   = models.RecordResult
	DeleteResult   = models.DeleteResult
	HistoryEntry   = models.HistoryEntry
	AuditEntry     = models.AuditEntry
	DeletedRecord  = models.DeletedRecord
	DeletedList    = models.DeletedList
	IncludeDeleted = models.IncludeDeleted
)

// Soft-delete visibility settings for ListOptions.IncludeDeleted.
const (
	ExcludeDeleted = models.ExcludeDeleted
	WithDeleted    = models.WithDeleted
	OnlyDeleted    = models.OnlyDeleted
)

// HealthResponse is returned by the liveness check.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadinessResponse is returned by the readiness check.
type ReadinessResponse struct {
	Status        string            `json:"status"`
	Checks        map[string]string `json:"checks"`
	SchemaVersion int64             `json:"schema_version"`
}

// ListOptions are the list query parameters. Filter is marshaled to a JSON
// object.
type ListOptions struct {
	Page           int
	Limit          int
	Sort           string
	Order          string
	Search         string
	Fuzzy          bool
	Filter         map[string]any
	Include        []string
	Select         []string
	IncludeDeleted IncludeDeleted
	DateFrom       *time.Time
	DateTo         *time.Time
}

// GetOptions are the single-record query parameters.
type GetOptions struct {
	Include        []string
	Select         []string
	IncludeDeleted IncludeDeleted
}

// CreateQuoteRequest creates a quote and its line items together.
type CreateQuoteRequest = models.CreateQuoteRequest

// AuditQueryOptions holds filters for querying the audit log.
type AuditQueryOptions struct {
	Model     string
	RecordID  string
	Action    string
	ChangedBy string
	Since     *time.Time
	Limit     int
	Offset    int
}

// DeletedListOptions filters the deleted-record listing.
type DeletedListOptions struct {
	Model string
	Page  int
	Limit int
}
