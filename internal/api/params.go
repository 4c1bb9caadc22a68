package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/coesco/opsapi/internal/models"
)

// Pagination caps for the admin listings.
const (
	maxPaginationLimit  = 1000
	maxPaginationOffset = 100_000
	maxPathIDLength     = 128
)

var errInvalidID = errors.New("invalid id")

// validatePathID checks that a path parameter ID is non-empty and within length limits.
func validatePathID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: id must not be empty", errInvalidID)
	}

	if len(id) > maxPathIDLength {
		return fmt.Errorf("%w: id exceeds maximum length of %d", errInvalidID, maxPathIDLength)
	}

	return nil
}

func invalidQuery(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{models.ErrInvalidQuery}, args...)...)
}

// queryInt parses an optional non-negative integer parameter.
func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, invalidQuery("%s must be a non-negative integer", key)
	}

	return v, nil
}

// parseList accepts a JSON array of strings or a comma separated list.
func parseList(key, raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	if strings.HasPrefix(raw, "[") {
		var out []string
		if err := json.Unmarshal([]byte(raw), &out); err != nil {
			return nil, invalidQuery("%s must be a JSON array of strings", key)
		}

		return out, nil
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}

	return out, nil
}

// parseTime accepts RFC3339 timestamps or plain dates.
func parseTime(key, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}

	return nil, invalidQuery("%s must be RFC3339 or YYYY-MM-DD", key)
}

// parseQueryParams reads the list/get query string into QueryParams.
func parseQueryParams(c *gin.Context) (models.QueryParams, error) {
	var (
		p   models.QueryParams
		err error
	)

	if p.Page, err = queryInt(c, "page"); err != nil {
		return p, err
	}

	if p.Limit, err = queryInt(c, "limit"); err != nil {
		return p, err
	}

	p.Sort = strings.TrimSpace(c.Query("sort"))

	switch order := strings.ToLower(strings.TrimSpace(c.Query("order"))); order {
	case "", models.OrderAsc, models.OrderDesc:
		p.Order = order
	default:
		return p, invalidQuery("order must be asc or desc")
	}

	p.Search = c.Query("search")

	if raw := c.Query("fuzzy"); raw != "" {
		if p.Fuzzy, err = strconv.ParseBool(raw); err != nil {
			return p, invalidQuery("fuzzy must be true or false")
		}
	}

	if raw := strings.TrimSpace(c.Query("filter")); raw != "" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(raw), &obj); err != nil {
			return p, invalidQuery("filter must be a JSON object")
		}

		p.Filter = json.RawMessage(raw)
	}

	if p.Include, err = parseList("include", c.Query("include")); err != nil {
		return p, err
	}

	if p.Select, err = parseList("select", c.Query("select")); err != nil {
		return p, err
	}

	if p.IncludeDeleted, err = models.ParseIncludeDeleted(c.Query("includeDeleted")); err != nil {
		return p, err
	}

	if p.DateFrom, err = parseTime("dateFrom", c.Query("dateFrom")); err != nil {
		return p, err
	}

	if p.DateTo, err = parseTime("dateTo", c.Query("dateTo")); err != nil {
		return p, err
	}

	return p, nil
}

// clampLimit applies a default and the maximum page size.
func clampLimit(v, fallback int) int {
	if v <= 0 {
		return fallback
	}

	return min(v, maxPaginationLimit)
}
