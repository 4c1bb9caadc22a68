package store

import (
	"testing"
	"time"

	"github.com/coesco/opsapi/internal/models"
)

func TestDiff(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)

	tests := []struct {
		name   string
		before models.Record
		after  models.Record
		want   []string
	}{
		{"identical", models.Record{"a": 1, "b": "x"}, models.Record{"a": 1, "b": "x"}, nil},
		{"changed value", models.Record{"a": 1}, models.Record{"a": 2}, []string{"a"}},
		{"absent equals null", models.Record{"a": nil}, models.Record{}, nil},
		{"added field", models.Record{}, models.Record{"a": "x"}, []string{"a"}},
		{"removed field", models.Record{"a": "x"}, models.Record{}, []string{"a"}},
		{"same instant in another zone", models.Record{"at": t0}, models.Record{"at": t0.In(berlin)}, nil},
		{"time against string", models.Record{"at": t0}, models.Record{"at": "2026-03-01T12:00:00Z"}, nil},
		{"numeric kinds", models.Record{"n": int64(5)}, models.Record{"n": 5.0}, nil},
		{"nested value", models.Record{"tags": []any{"a"}}, models.Record{"tags": []any{"a", "b"}}, []string{"tags"}},
		{"create from nothing", nil, models.Record{"id": "x", "empty": nil}, []string{"id"}},
	}

	changed, err := Diff(models.Record{"a": "old"}, models.Record{"a": "new"})
	if err != nil {
		t.Fatalf("Diff: %v", err)
	}

	if c := changed["a"]; c.Before != "old" || c.After != "new" {
		t.Errorf("change = %+v, want old -> new", c)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diff, err := Diff(tt.before, tt.after)
			if err != nil {
				t.Fatalf("Diff: %v", err)
			}

			if len(diff) != len(tt.want) {
				t.Fatalf("Diff = %v, want fields %v", diff, tt.want)
			}

			for _, f := range tt.want {
				if _, ok := diff[f]; !ok {
					t.Errorf("missing %s in %v", f, diff)
				}
			}
		})
	}
}

func TestWithout(t *testing.T) {
	d := models.Diff{
		"name":         {Before: "a", After: "b"},
		ColUpdatedAt:   {Before: t0, After: t0.Add(time.Second)},
		ColUpdatedByID: {Before: nil, After: "emp-1"},
	}

	got := without(d, updateIgnored...)
	if len(got) != 1 {
		t.Fatalf("without = %v, want only name", got)
	}

	if _, ok := got["name"]; !ok {
		t.Errorf("name dropped: %v", got)
	}
}
