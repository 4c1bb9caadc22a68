package models

import "time"

// DeletedRecord describes a soft-deleted row awaiting restore or purge.
type DeletedRecord struct {
	Model          string         `json:"model"`
	ID             string         `json:"id"`
	DisplayName    string         `json:"displayName"`
	DeletedAt      time.Time      `json:"deletedAt"`
	DeletedByID    *string        `json:"deletedById,omitempty"`
	HardDeleteDate time.Time      `json:"hardDeleteDate"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// DeletedQueryOpts filters the deleted-records listing.
type DeletedQueryOpts struct {
	Model string
	Page  int
	Limit int
}

// DeletedList is a page of deleted records across models.
type DeletedList struct {
	Success bool            `json:"success"`
	Data    []DeletedRecord `json:"data"`
	Meta    ListMeta        `json:"meta"`
}

// RestoredMessage and PurgedMessage are returned by deleted-record actions.
const (
	RestoredMessage = "Record restored successfully"
	PurgedMessage   = "Record permanently deleted"
)
