package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coesco/opsapi/internal/models"
)

// Diff returns the fields whose values differ between before and after.
// Values are compared by their JSON encoding with times normalized to UTC,
// and a missing key is treated the same as a null value.
func Diff(before, after models.Record) (models.Diff, error) {
	diff := models.Diff{}

	keys := make(map[string]struct{}, len(before)+len(after))
	for k := range before {
		keys[k] = struct{}{}
	}

	for k := range after {
		keys[k] = struct{}{}
	}

	for k := range keys {
		b, a := before[k], after[k]

		equal, err := sameValue(b, a)
		if err != nil {
			return nil, fmt.Errorf("comparing %s: %w", k, err)
		}

		if !equal {
			diff[k] = models.Change{Before: b, After: a}
		}
	}

	return diff, nil
}

func sameValue(a, b any) (bool, error) {
	a, b = normalizeTime(a), normalizeTime(b)
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}

	if ta, ok := a.(time.Time); ok {
		if tb, ok := asTime(b); ok {
			return ta.Equal(tb), nil
		}
	}

	if tb, ok := b.(time.Time); ok {
		if ta, ok := asTime(a); ok {
			return ta.Equal(tb), nil
		}
	}

	aj, err := json.Marshal(a)
	if err != nil {
		return false, err
	}

	bj, err := json.Marshal(b)
	if err != nil {
		return false, err
	}

	return bytes.Equal(aj, bj), nil
}

func normalizeTime(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case *time.Time:
		if t == nil {
			return nil
		}

		return t.UTC()
	default:
		return v
	}
}

// asTime accepts times and RFC 3339 strings, as sent by JSON clients.
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)

		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

// without returns d minus the named fields.
func without(d models.Diff, fields ...string) models.Diff {
	for _, f := range fields {
		delete(d, f)
	}

	return d
}
