package models

import "time"

// Audit actions recorded by the gateway.
const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// SystemActor is recorded as changedBy when no caller is attached to the request.
const SystemActor = "system"

// Change is the before/after pair recorded for a single field.
// Before is nil for newly present fields and After is nil for removed ones.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// Diff maps changed field names to their before/after values.
type Diff map[string]Change

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string    `json:"id"`
	Model     string    `json:"model"`
	RecordID  string    `json:"recordId"`
	Action    string    `json:"action"`
	ChangedBy string    `json:"changedBy"`
	Diff      Diff      `json:"diff"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditQueryOpts holds filters for querying the audit log.
type AuditQueryOpts struct {
	Model     string
	RecordID  string
	Action    string
	ChangedBy string
	Since     *time.Time
	Limit     int
	Offset    int
}

// Actor identifies who performed an audited change.
type Actor struct {
	ID string `json:"id"`
}

// HistoryEntry is the reshaped audit record returned by history queries.
type HistoryEntry struct {
	Action    string    `json:"action"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Diff      Diff      `json:"diff"`
}
