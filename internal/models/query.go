package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Sort directions accepted by list queries.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// IncludeDeleted controls soft-delete visibility: exclude deleted rows (the
// zero value), include them, or return only deleted rows.
type IncludeDeleted int

const (
	ExcludeDeleted IncludeDeleted = iota
	WithDeleted
	OnlyDeleted
)

// ParseIncludeDeleted maps the wire values false, true and "only".
func ParseIncludeDeleted(s string) (IncludeDeleted, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "false", "0":
		return ExcludeDeleted, nil
	case "true", "1":
		return WithDeleted, nil
	case "only":
		return OnlyDeleted, nil
	default:
		return ExcludeDeleted, fmt.Errorf("%w: includeDeleted must be true, false or only", ErrInvalidQuery)
	}
}

// String returns the wire form of the setting.
func (d IncludeDeleted) String() string {
	switch d {
	case WithDeleted:
		return "true"
	case OnlyDeleted:
		return "only"
	default:
		return "false"
	}
}

// MarshalJSON encodes the setting as false, true or "only".
func (d IncludeDeleted) MarshalJSON() ([]byte, error) {
	if d == OnlyDeleted {
		return []byte(`"only"`), nil
	}

	return json.Marshal(d == WithDeleted)
}

// UnmarshalJSON accepts a boolean or the string "only".
func (d *IncludeDeleted) UnmarshalJSON(b []byte) error {
	var flag bool
	if err := json.Unmarshal(b, &flag); err == nil {
		if flag {
			*d = WithDeleted
		} else {
			*d = ExcludeDeleted
		}

		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("%w: includeDeleted: %v", ErrInvalidQuery, err)
	}

	v, err := ParseIncludeDeleted(s)
	if err != nil {
		return err
	}

	*d = v

	return nil
}

// QueryParams is a generic list/get request. Filter holds a JSON object;
// Include and Select hold relation paths and field names (dot paths allowed).
type QueryParams struct {
	Page           int             `json:"page,omitempty"`
	Limit          int             `json:"limit,omitempty"`
	Sort           string          `json:"sort,omitempty"`
	Order          string          `json:"order,omitempty"`
	Search         string          `json:"search,omitempty"`
	Fuzzy          bool            `json:"fuzzy,omitempty"`
	Filter         json.RawMessage `json:"filter,omitempty"`
	Include        []string        `json:"include,omitempty"`
	Select         []string        `json:"select,omitempty"`
	IncludeDeleted IncludeDeleted  `json:"includeDeleted,omitempty"`
	DateFrom       *time.Time      `json:"dateFrom,omitempty"`
	DateTo         *time.Time      `json:"dateTo,omitempty"`
}

// Record is a single entity row keyed by column name.
type Record map[string]any

// ID returns the record's id as a string, or "" when absent.
func (r Record) ID() string {
	switch v := r["id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// ListMeta carries pagination details for a list result.
type ListMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ListResult is the response shape of getAll.
type ListResult struct {
	Success bool     `json:"success"`
	Data    []Record `json:"data"`
	Meta    ListMeta `json:"meta"`
}

// RecordResult is the response shape of getById, create and update.
type RecordResult struct {
	Success bool   `json:"success"`
	Data    Record `json:"data"`
}

// DeleteResult is the response shape of delete.
type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DeletedMessage is returned by successful deletes.
const DeletedMessage = "Deleted successfully"

// TotalPages returns ceil(total/limit), or 1 when limit is unrestricted.
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 1
	}

	return (total + limit - 1) / limit
}
