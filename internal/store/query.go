package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/coesco/opsapi/internal/models"
)

// PlanKind selects the finder strategy for a list query.
type PlanKind int

const (
	// PlanPlain runs count and find natively with SQL pagination.
	PlanPlain PlanKind = iota
	// PlanFuzzy scores rows by trigram similarity and paginates in memory.
	PlanFuzzy
	// PlanComputed matches derived fields in memory and paginates there.
	PlanComputed
)

func (k PlanKind) String() string {
	switch k {
	case PlanFuzzy:
		return "fuzzy"
	case PlanComputed:
		return "computed"
	default:
		return "plain"
	}
}

// fuzzyThreshold is the minimum summed similarity a row needs to match.
const fuzzyThreshold = 0.3

// OrderBy is one ordering term. Dot-path sorts nest one level per segment,
// with the direction carried by the innermost term.
type OrderBy struct {
	Field  string   `json:"field"`
	Desc   bool     `json:"desc,omitempty"`
	Nested *OrderBy `json:"nested,omitempty"`
}

// Depth returns the number of path segments.
func (o OrderBy) Depth() int {
	if o.Nested == nil {
		return 1
	}

	return 1 + o.Nested.Depth()
}

// Leaf returns the innermost term.
func (o OrderBy) Leaf() OrderBy {
	if o.Nested == nil {
		return o
	}

	return o.Nested.Leaf()
}

// Path returns the dot path as segments.
func (o OrderBy) Path() []string {
	if o.Nested == nil {
		return []string{o.Field}
	}

	return append([]string{o.Field}, o.Nested.Path()...)
}

// Plan is the translated form of a list or get request.
type Plan struct {
	Kind    PlanKind
	Where   Expr
	OrderBy []OrderBy
	Page    int
	Take    int
	Skip    int

	Select  *Projection
	Include *Projection

	FuzzyFields []SearchField
	FuzzyTerm   string

	// SearchTerm and SearchFields drive in-memory matching for PlanComputed.
	SearchTerm   string
	SearchFields []string

	IncludeDeleted models.IncludeDeleted
}

// ListProjection applies select when present, otherwise include.
func (p *Plan) ListProjection() *Projection {
	if !p.Select.IsEmpty() {
		return p.Select
	}

	return p.Include
}

// SingleProjection applies include when present, otherwise select.
// This is the reverse of ListProjection and is kept that way on purpose.
func (p *Plan) SingleProjection() *Projection {
	if !p.Include.IsEmpty() {
		return p.Include
	}

	return p.Select
}

// Translate converts a request into a Plan for model m with columns cols.
// When cols is empty, column names are not validated.
func (r *Registry) Translate(req models.QueryParams, m *Model, cols ColumnSet) (*Plan, error) {
	plan := &Plan{
		Page:           max(req.Page, 1),
		IncludeDeleted: req.IncludeDeleted,
	}

	if req.Limit > 0 {
		plan.Take = min(req.Limit, maxListLimit)
		plan.Skip = (plan.Page - 1) * plan.Take
	}

	t := translator{reg: r, m: m, cols: cols}

	orderBy, err := t.sort(req.Sort, req.Order)
	if err != nil {
		return nil, err
	}

	search, err := t.search(plan, req)
	if err != nil {
		return nil, err
	}

	filter, err := t.filter(req.Filter)
	if err != nil {
		return nil, err
	}

	plan.Where = AllOf(filter, search, t.dateRange(req.DateFrom, req.DateTo))

	if orderBy == nil && plan.Kind == PlanPlain && search != nil {
		orderBy = t.searchOrder()
	}

	plan.OrderBy = t.withDefaultSort(orderBy)

	if plan.Select, err = t.projection(req.Select, true); err != nil {
		return nil, err
	}

	if plan.Include, err = t.projection(req.Include, false); err != nil {
		return nil, err
	}

	return plan, nil
}

type translator struct {
	reg  *Registry
	m    *Model
	cols ColumnSet
}

func (t *translator) hasColumn(name string) bool {
	return len(t.cols) == 0 || t.cols.Has(name)
}

// sort expands "a.b.c" into nested OrderBy terms.
func (t *translator) sort(sortKey, order string) ([]OrderBy, error) {
	sortKey = strings.TrimSpace(sortKey)
	if sortKey == "" {
		return nil, nil
	}

	desc := false

	switch strings.ToLower(strings.TrimSpace(order)) {
	case "", models.OrderAsc:
	case models.OrderDesc:
		desc = true
	default:
		return nil, fmt.Errorf("%w: order must be asc or desc", models.ErrInvalidQuery)
	}

	parts := strings.Split(sortKey, ".")
	for _, p := range parts {
		if !validIdent(p) {
			return nil, fmt.Errorf("%w: invalid sort %q", models.ErrInvalidQuery, sortKey)
		}
	}

	if len(parts) == 1 {
		if t.m.isComputed(parts[0]) || !t.hasColumn(parts[0]) {
			return nil, fmt.Errorf("%w: cannot sort by %q", models.ErrInvalidQuery, parts[0])
		}
	} else if _, ok := t.m.relation(parts[0]); !ok {
		return nil, fmt.Errorf("%w: %s has no relation %q", models.ErrInvalidQuery, t.m.Name, parts[0])
	}

	leaf := &OrderBy{Field: parts[len(parts)-1], Desc: desc}
	for i := len(parts) - 2; i >= 0; i-- {
		leaf = &OrderBy{Field: parts[i], Nested: leaf}
	}

	return []OrderBy{*leaf}, nil
}

// withDefaultSort appends the model's default ordering (or createdAt desc)
// unless the request already orders by that field.
func (t *translator) withDefaultSort(orderBy []OrderBy) []OrderBy {
	var fallback *OrderBy

	switch {
	case t.m.DefaultSort != nil:
		fallback = &OrderBy{Field: t.m.DefaultSort.Field, Desc: t.m.DefaultSort.Desc}
	case t.cols.Has(ColCreatedAt):
		fallback = &OrderBy{Field: ColCreatedAt, Desc: true}
	}

	if fallback == nil {
		return orderBy
	}

	for _, o := range orderBy {
		if o.Field == fallback.Field {
			return orderBy
		}
	}

	return append(orderBy, *fallback)
}

// searchOrder orders plain searches by the highest-weighted field.
func (t *translator) searchOrder() []OrderBy {
	var best *SearchField

	for i := range t.m.SearchFields {
		f := &t.m.SearchFields[i]
		if t.m.isEnum(f.Field) || t.m.isComputed(f.Field) || !t.hasColumn(f.Field) {
			continue
		}

		if best == nil || f.weight() > best.weight() {
			best = f
		}
	}

	if best == nil {
		return nil
	}

	return []OrderBy{{Field: best.Field}}
}

// search partitions the model's search fields and chooses the plan kind.
// Fuzzy requests (or models with trigram-only fields) take the fuzzy path;
// searches touching computed fields take the computed path; everything else
// becomes an insensitive substring match in SQL.
func (t *translator) search(plan *Plan, req models.QueryParams) (Expr, error) {
	term := strings.TrimSpace(req.Search)
	if term == "" {
		return nil, nil
	}

	var plain, fuzzy []SearchField

	var computed, all []string

	trigram := req.Fuzzy

	for _, f := range t.m.SearchFields {
		if t.m.isEnum(f.Field) {
			continue
		}

		if t.m.isComputed(f.Field) {
			computed = append(computed, f.Field)
			all = append(all, f.Field)

			continue
		}

		if !t.hasColumn(f.Field) {
			continue
		}

		if f.Fuzzy {
			trigram = true
		}

		fuzzy = append(fuzzy, f)
		all = append(all, f.Field)

		if !f.Fuzzy {
			plain = append(plain, f)
		}
	}

	switch {
	case trigram:
		if len(fuzzy) == 0 {
			return nil, fmt.Errorf("%w: %s", models.ErrSearchFieldsRequired, t.m.Name)
		}

		plan.Kind = PlanFuzzy
		plan.FuzzyFields = fuzzy
		plan.FuzzyTerm = term

		return nil, nil
	case len(computed) > 0:
		plan.Kind = PlanComputed
		plan.SearchTerm = term
		plan.SearchFields = all

		return nil, nil
	case len(plain) == 0:
		return nil, nil
	}

	or := make(Or, 0, len(plain))
	for _, f := range plain {
		or = append(or, Cmp{Column: f.Field, Op: OpContains, Value: term, Fold: true})
	}

	return or, nil
}

func (t *translator) dateRange(from, to *time.Time) Expr {
	if !t.cols.Has(ColCreatedAt) {
		return nil
	}

	var exprs []Expr
	if from != nil {
		exprs = append(exprs, Cmp{Column: ColCreatedAt, Op: OpGte, Value: *from})
	}

	if to != nil {
		exprs = append(exprs, Cmp{Column: ColCreatedAt, Op: OpLte, Value: *to})
	}

	return AllOf(exprs...)
}

// projection parses dot paths into a Projection tree. Select paths name
// fields (and relations); include paths name relations only.
func (t *translator) projection(paths []string, isSelect bool) (*Projection, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	root := &Projection{}
	rootFields := 0

	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" {
			continue
		}

		parts := strings.Split(path, ".")
		for _, p := range parts {
			if !validIdent(p) {
				return nil, fmt.Errorf("%w: invalid projection path %q", models.ErrInvalidQuery, path)
			}
		}

		if !isSelect {
			if _, ok := t.m.relation(parts[0]); !ok {
				return nil, fmt.Errorf("%w: %s has no relation %q", models.ErrInvalidQuery, t.m.Name, parts[0])
			}

			node := root
			for _, p := range parts {
				node = node.child(p)
			}

			continue
		}

		if len(parts) == 1 {
			if _, ok := t.m.relation(parts[0]); ok {
				root.child(parts[0])

				continue
			}

			if !t.hasColumn(parts[0]) {
				return nil, fmt.Errorf("%w: %s has no field %q", models.ErrInvalidQuery, t.m.Name, parts[0])
			}

			if !slices.Contains(root.Fields, parts[0]) {
				root.Fields = append(root.Fields, parts[0])
			}

			rootFields++

			continue
		}

		if _, ok := t.m.relation(parts[0]); !ok {
			return nil, fmt.Errorf("%w: %s has no relation %q", models.ErrInvalidQuery, t.m.Name, parts[0])
		}

		node := root
		for _, p := range parts[:len(parts)-1] {
			node = node.child(p)
		}

		leaf := parts[len(parts)-1]
		if !slices.Contains(node.Fields, leaf) {
			node.Fields = append(node.Fields, leaf)
		}
	}

	if root.IsEmpty() {
		return nil, nil
	}

	if isSelect && rootFields == 0 {
		root.RelationsOnly = true
	}

	return root, nil
}

// filter parses a JSON filter object into an expression.
func (t *translator) filter(raw json.RawMessage) (Expr, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: filter must be a JSON object: %v", models.ErrInvalidQuery, err)
	}

	return t.parseFilter(obj, t.m, t.cols, 0)
}
