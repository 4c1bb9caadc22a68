package store

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"sync"

	"github.com/coesco/opsapi/internal/models"
)

// RelationKind distinguishes belongs-to from has-many relations.
type RelationKind int

const (
	ToOne RelationKind = iota
	ToMany
)

// Relation links a model to another registered model.
// For ToOne, LocalKey is the foreign key on this model and ForeignKey is the
// target's key (usually "id"). For ToMany it is the reverse.
type Relation struct {
	Model      string
	Kind       RelationKind
	LocalKey   string
	ForeignKey string
}

// BelongsTo declares a to-one relation through fk on the owning model.
func BelongsTo(model, fk string) Relation {
	return Relation{Model: model, Kind: ToOne, LocalKey: fk, ForeignKey: ColID}
}

// HasMany declares a to-many relation through fk on the child model.
func HasMany(model, fk string) Relation {
	return Relation{Model: model, Kind: ToMany, LocalKey: ColID, ForeignKey: fk}
}

// SearchField is a searchable column or computed field. Weight scales its
// trigram score (0 means 1). Fuzzy marks fields that need trigram matching.
type SearchField struct {
	Field  string
	Weight float64
	Fuzzy  bool
}

func (f SearchField) weight() float64 {
	if f.Weight <= 0 {
		return 1
	}

	return f.Weight
}

// ComputeFunc derives a virtual field from a fetched row.
type ComputeFunc func(models.Record) any

// ValidateFunc checks a create payload before anything is written.
type ValidateFunc func(ctx context.Context, data models.Record) error

// SortKey is a model's default ordering.
type SortKey struct {
	Field string
	Desc  bool
}

// Model declares how the gateway treats one entity type.
type Model struct {
	// Name is the logical model name, e.g. "quoteItem".
	Name string
	// Table overrides the physical table; derived from Name when empty.
	Table string
	// Columns pins the column set and skips catalog introspection.
	Columns []string

	SearchFields []SearchField
	Enums        []string
	Computed     map[string]ComputeFunc
	Relations    map[string]Relation
	DefaultSort  *SortKey
	// DisplayFields are joined with spaces to label the record in
	// deleted-record listings; the id is used when they are all empty.
	DisplayFields []string
	Validate     ValidateFunc
}

func (m *Model) isEnum(field string) bool {
	return slices.Contains(m.Enums, field)
}

func (m *Model) relation(name string) (Relation, bool) {
	r, ok := m.Relations[name]

	return r, ok
}

func (m *Model) isComputed(name string) bool {
	_, ok := m.Computed[name]

	return ok
}

// applyComputed attaches computed fields to each record.
func (m *Model) applyComputed(recs ...models.Record) {
	if len(m.Computed) == 0 {
		return
	}

	for _, rec := range recs {
		if rec == nil {
			continue
		}

		for name, fn := range m.Computed {
			rec[name] = fn(rec)
		}
	}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validIdent(s string) bool {
	return identRe.MatchString(s)
}

// Registry holds the models served by the gateway and resolves their
// columns and tables.
type Registry struct {
	intro *Introspector

	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates an empty Registry backed by intro.
func NewRegistry(intro *Introspector) *Registry {
	return &Registry{intro: intro, models: make(map[string]*Model)}
}

// Register adds m. Models with explicit Columns are pinned in the introspector.
func (r *Registry) Register(m Model) error {
	if m.Name == "" {
		return models.ErrModelNameRequired
	}

	if !validIdent(m.Name) {
		return fmt.Errorf("invalid model name %q", m.Name)
	}

	for name, rel := range m.Relations {
		if !validIdent(name) || rel.Model == "" || rel.LocalKey == "" || rel.ForeignKey == "" {
			return fmt.Errorf("model %s: invalid relation %q", m.Name, name)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.models[m.Name]; dup {
		return fmt.Errorf("model %s already registered", m.Name)
	}

	if len(m.Columns) > 0 {
		r.intro.Override(m.Name, m.Table, NewColumnSet(m.Columns...))
	}

	r.models[m.Name] = &m

	return nil
}

// MustRegister is Register that panics on error; for static registration.
func (r *Registry) MustRegister(ms ...Model) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Model returns the registered model by name.
func (r *Registry) Model(name string) (*Model, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[name]

	return m, ok
}

// Models returns all registered models sorted by name.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Model, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// lookup returns the registered model or a bare one for unregistered names.
func (r *Registry) lookup(name string) *Model {
	if m, ok := r.Model(name); ok {
		return m
	}

	return &Model{Name: name}
}

// Columns resolves the column set of model name.
func (r *Registry) Columns(ctx context.Context, name string) (ColumnSet, error) {
	if name == "" {
		return ColumnSet{}, nil
	}

	candidates := TableNames(name)
	if m, ok := r.Model(name); ok && m.Table != "" && !slices.Contains(candidates, m.Table) {
		candidates = append(candidates, m.Table)
	}

	return r.intro.Columns(ctx, name, candidates...)
}

// Table returns the physical table for model name.
func (r *Registry) Table(name string) string {
	if m, ok := r.Model(name); ok && m.Table != "" {
		return m.Table
	}

	if t := r.intro.Table(name); t != "" {
		return t
	}

	names := TableNames(name)
	if len(names) == 0 {
		return ""
	}

	return names[len(names)-1]
}

// Warm introspects every registered model once, typically at startup.
func (r *Registry) Warm(ctx context.Context) error {
	for _, m := range r.Models() {
		if _, err := r.Columns(ctx, m.Name); err != nil {
			return err
		}
	}

	return nil
}
