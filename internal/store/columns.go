package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Metadata columns the gateway reacts to when present.
const (
	ColID          = "id"
	ColOwnerID     = "ownerId"
	ColDeletedAt   = "deletedAt"
	ColCreatedByID = "createdById"
	ColUpdatedByID = "updatedById"
	ColDeletedByID = "deletedById"
	ColCreatedAt   = "createdAt"
	ColUpdatedAt   = "updatedAt"
)

// ColumnSet is the set of physical columns backing a model.
type ColumnSet map[string]struct{}

// NewColumnSet builds a ColumnSet from names.
func NewColumnSet(names ...string) ColumnSet {
	set := make(ColumnSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}

	return set
}

// Has reports whether the column exists.
func (c ColumnSet) Has(name string) bool {
	_, ok := c[name]

	return ok
}

// Names returns the columns in sorted order.
func (c ColumnSet) Names() []string {
	out := make([]string, 0, len(c))
	for n := range c {
		out = append(out, n)
	}

	sort.Strings(out)

	return out
}

// Meta describes which optional metadata columns a model carries. A missing
// column turns the matching behavior (scoping, stamping) into a no-op.
type Meta struct {
	Owner      bool
	SoftDelete bool
	CreatedBy  bool
	UpdatedBy  bool
	DeletedBy  bool
	CreatedAt  bool
	UpdatedAt  bool
}

// Meta summarizes the metadata columns present in the set.
func (c ColumnSet) Meta() Meta {
	return Meta{
		Owner:      c.Has(ColOwnerID),
		SoftDelete: c.Has(ColDeletedAt),
		CreatedBy:  c.Has(ColCreatedByID),
		UpdatedBy:  c.Has(ColUpdatedByID),
		DeletedBy:  c.Has(ColDeletedByID),
		CreatedAt:  c.Has(ColCreatedAt),
		UpdatedAt:  c.Has(ColUpdatedAt),
	}
}

// Introspector discovers the columns of each model from the schema catalog
// and caches them for the life of the process. Schema changes require a
// restart.
type Introspector struct {
	db DBTX

	mu     sync.RWMutex
	cache  map[string]ColumnSet
	tables map[string]string
}

// NewIntrospector creates an Introspector reading information_schema via db.
func NewIntrospector(db DBTX) *Introspector {
	return &Introspector{
		db:     db,
		cache:  make(map[string]ColumnSet),
		tables: make(map[string]string),
	}
}

// Override pins the column set for model, skipping catalog queries.
func (i *Introspector) Override(model, table string, cols ColumnSet) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.cache[model] = cols
	if table != "" {
		i.tables[model] = table
	}
}

// Cached returns the cached set for model without querying.
func (i *Introspector) Cached(model string) (ColumnSet, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	cols, ok := i.cache[model]

	return cols, ok
}

// Table returns the physical table discovered for model, if any.
func (i *Introspector) Table(model string) string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.tables[model]
}

// Columns returns the union of columns across the candidate tables of model.
// Candidates default to TableNames(model). An empty model name yields an
// empty set; an unknown model yields an empty set as well.
func (i *Introspector) Columns(ctx context.Context, model string, candidates ...string) (ColumnSet, error) {
	if model == "" {
		return ColumnSet{}, nil
	}

	if cols, ok := i.Cached(model); ok {
		return cols, nil
	}

	if len(candidates) == 0 {
		candidates = TableNames(model)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := i.db.Query(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ANY($1)
		ORDER BY table_name, ordinal_position`,
		candidates,
	)
	if err != nil {
		return nil, fmt.Errorf("querying columns for %s: %w", model, err)
	}
	defer rows.Close()

	cols := ColumnSet{}
	found := make(map[string]bool, len(candidates))

	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return nil, fmt.Errorf("scanning column for %s: %w", model, err)
		}

		cols[column] = struct{}{}
		found[table] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating columns for %s: %w", model, err)
	}

	// Later candidates (plural forms) win when several tables exist.
	table := ""
	for _, c := range candidates {
		if found[c] {
			table = c
		}
	}

	i.mu.Lock()
	i.cache[model] = cols
	if table != "" {
		i.tables[model] = table
	}
	i.mu.Unlock()

	return cols, nil
}
