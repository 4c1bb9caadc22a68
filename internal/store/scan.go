package store

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/coesco/opsapi/internal/models"
)

// collectRecords scans all rows into records keyed by result column name.
func collectRecords(rows pgx.Rows) ([]models.Record, error) {
	defer rows.Close()

	recs := make([]models.Record, 0, 16)

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	return recs, nil
}

// collectOne returns the first row, or models.ErrNotFound when there is none.
func collectOne(rows pgx.Rows) (models.Record, error) {
	recs, err := collectRecords(rows)
	if err != nil {
		return nil, err
	}

	if len(recs) == 0 {
		return nil, models.ErrNotFound
	}

	return recs[0], nil
}

// scanRecord scans the current row.
func scanRecord(rows pgx.Rows) (models.Record, error) {
	values, err := rows.Values()
	if err != nil {
		return nil, fmt.Errorf("scanning row: %w", err)
	}

	fields := rows.FieldDescriptions()
	rec := make(models.Record, len(fields))

	for i, fd := range fields {
		if i < len(values) {
			rec[fd.Name] = normalizeValue(values[i])
		}
	}

	return rec, nil
}

// normalizeValue converts driver-specific values into JSON-friendly ones.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case [16]byte:
		return uuid.UUID(val).String()
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}

		return f.Float64
	case pgtype.Interval:
		if !val.Valid {
			return nil
		}

		return val.Microseconds + int64(val.Days)*86_400_000_000
	default:
		return v
	}
}
