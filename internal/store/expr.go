package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/coesco/opsapi/internal/models"
)

// Expr is a serializable boolean predicate over a model's columns.
// Scope predicates and caller filters are built from the same nodes and
// combined with AllOf, never with Or.
type Expr interface {
	isExpr()
}

// And is a conjunction. An empty And is true.
type And []Expr

// Or is a disjunction. An empty Or is false.
type Or []Expr

// Not negates X.
type Not struct {
	X Expr `json:"not"`
}

// Op is a comparison operator.
type Op string

// Comparison operators understood by the renderer.
const (
	OpEq         Op = "equals"
	OpNe         Op = "not"
	OpGt         Op = "gt"
	OpGte        Op = "gte"
	OpLt         Op = "lt"
	OpLte        Op = "lte"
	OpIn         Op = "in"
	OpNotIn      Op = "notIn"
	OpContains   Op = "contains"
	OpStartsWith Op = "startsWith"
	OpEndsWith   Op = "endsWith"
	OpIsNull     Op = "isNull"
	OpNotNull    Op = "isNotNull"
)

// Cmp compares a column with a value. Fold makes string operators
// case-insensitive.
type Cmp struct {
	Column string `json:"column"`
	Op     Op     `json:"op"`
	Value  any    `json:"value,omitempty"`
	Fold   bool   `json:"fold,omitempty"`
}

// Related applies Where to rows of a relation (EXISTS semantics).
type Related struct {
	Relation string `json:"relation"`
	Where    Expr   `json:"where,omitempty"`
}

func (And) isExpr()     {}
func (Or) isExpr()      {}
func (Not) isExpr()     {}
func (Cmp) isExpr()     {}
func (Related) isExpr() {}

// Eq is shorthand for an equality comparison.
func Eq(column string, v any) Cmp { return Cmp{Column: column, Op: OpEq, Value: v} }

// IsNull is shorthand for column IS NULL.
func IsNull(column string) Cmp { return Cmp{Column: column, Op: OpIsNull} }

// NotNull is shorthand for column IS NOT NULL.
func NotNull(column string) Cmp { return Cmp{Column: column, Op: OpNotNull} }

// AllOf conjoins the non-nil expressions. It returns nil when none remain
// and the single expression when only one does.
func AllOf(exprs ...Expr) Expr {
	out := make(And, 0, len(exprs))

	for _, e := range exprs {
		switch v := e.(type) {
		case nil:
			continue
		case And:
			if len(v) == 0 {
				continue
			}
		}

		out = append(out, e)
	}

	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// sqlBuilder renders expressions into parameterized SQL.
type sqlBuilder struct {
	ctx     context.Context //nolint:containedctx // builder lives for a single query.
	reg     *Registry
	args    []any
	aliases int
	deleted models.IncludeDeleted
}

func newSQLBuilder(ctx context.Context, reg *Registry, deleted models.IncludeDeleted) *sqlBuilder {
	return &sqlBuilder{ctx: ctx, reg: reg, deleted: deleted}
}

// arg appends a positional argument and returns its placeholder.
func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)

	return "$" + strconv.Itoa(len(b.args))
}

// alias returns a fresh table alias.
func (b *sqlBuilder) alias() string {
	b.aliases++

	return "r" + strconv.Itoa(b.aliases)
}

// where renders e against model m aliased as alias. A nil e renders TRUE.
func (b *sqlBuilder) where(e Expr, m *Model, alias string) (string, error) {
	switch v := e.(type) {
	case nil:
		return "TRUE", nil
	case And:
		return b.join(v, m, alias, " AND ", "TRUE")
	case Or:
		return b.join(v, m, alias, " OR ", "FALSE")
	case Not:
		inner, err := b.where(v.X, m, alias)
		if err != nil {
			return "", err
		}

		return "NOT (" + inner + ")", nil
	case Cmp:
		return b.cmp(v, alias)
	case Related:
		return b.related(v, m, alias)
	default:
		return "", fmt.Errorf("%w: unsupported expression %T", models.ErrInvalidQuery, e)
	}
}

func (b *sqlBuilder) join(list []Expr, m *Model, alias, sep, empty string) (string, error) {
	if len(list) == 0 {
		return empty, nil
	}

	parts := make([]string, 0, len(list))

	for _, e := range list {
		s, err := b.where(e, m, alias)
		if err != nil {
			return "", err
		}

		parts = append(parts, "("+s+")")
	}

	return strings.Join(parts, sep), nil
}

func (b *sqlBuilder) cmp(c Cmp, alias string) (string, error) {
	if !validIdent(c.Column) {
		return "", fmt.Errorf("%w: invalid column %q", models.ErrInvalidQuery, c.Column)
	}

	column := col(alias, c.Column)

	switch c.Op {
	case OpIsNull:
		return column + " IS NULL", nil
	case OpNotNull:
		return column + " IS NOT NULL", nil
	case OpEq:
		if c.Value == nil {
			return column + " IS NULL", nil
		}

		if c.Fold {
			return "lower(CAST(" + column + " AS TEXT)) = lower(" + b.arg(fmt.Sprint(c.Value)) + ")", nil
		}

		return column + " = " + b.arg(c.Value), nil
	case OpNe:
		if c.Value == nil {
			return column + " IS NOT NULL", nil
		}

		return column + " IS DISTINCT FROM " + b.arg(c.Value), nil
	case OpGt:
		return column + " > " + b.arg(c.Value), nil
	case OpGte:
		return column + " >= " + b.arg(c.Value), nil
	case OpLt:
		return column + " < " + b.arg(c.Value), nil
	case OpLte:
		return column + " <= " + b.arg(c.Value), nil
	case OpIn, OpNotIn:
		return b.in(c, column)
	case OpContains, OpStartsWith, OpEndsWith:
		s, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("%w: %s on %s requires a string", models.ErrInvalidQuery, c.Op, c.Column)
		}

		pattern := escapeLike(s)

		switch c.Op {
		case OpContains:
			pattern = "%" + pattern + "%"
		case OpStartsWith:
			pattern += "%"
		default:
			pattern = "%" + pattern
		}

		like := " LIKE "
		if c.Fold {
			like = " ILIKE "
		}

		return "CAST(" + column + " AS TEXT)" + like + b.arg(pattern), nil
	default:
		return "", fmt.Errorf("%w: unknown operator %q", models.ErrInvalidQuery, c.Op)
	}
}

func (b *sqlBuilder) in(c Cmp, column string) (string, error) {
	values, ok := c.Value.([]any)
	if !ok {
		return "", fmt.Errorf("%w: %s on %s requires a list", models.ErrInvalidQuery, c.Op, c.Column)
	}

	if len(values) == 0 {
		if c.Op == OpIn {
			return "FALSE", nil
		}

		return "TRUE", nil
	}

	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.arg(v)
	}

	op := " IN ("
	if c.Op == OpNotIn {
		op = " NOT IN ("
	}

	return column + op + strings.Join(placeholders, ", ") + ")", nil
}

func (b *sqlBuilder) related(r Related, m *Model, alias string) (string, error) {
	rel, ok := m.relation(r.Relation)
	if !ok {
		return "", fmt.Errorf("%w: %s has no relation %q", models.ErrInvalidQuery, m.Name, r.Relation)
	}

	target := b.reg.lookup(rel.Model)
	a := b.alias()

	inner, err := b.where(r.Where, target, a)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s = %s AND (%s))",
		quoteIdent(b.reg.Table(target.Name)), a,
		col(a, rel.ForeignKey), col(alias, rel.LocalKey), inner,
	), nil
}

// escapeLike escapes LIKE metacharacters in s.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

	return r.Replace(s)
}

// orderBy renders the ordering list. Nested entries walk to-one relations.
func (b *sqlBuilder) orderBy(list []OrderBy, m *Model, alias string) (string, error) {
	if len(list) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(list))

	for _, o := range list {
		expr, err := b.orderExpr(o, m, alias)
		if err != nil {
			return "", err
		}

		dir := " ASC"
		if o.Leaf().Desc {
			dir = " DESC"
		}

		parts = append(parts, expr+dir)
	}

	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (b *sqlBuilder) orderExpr(o OrderBy, m *Model, alias string) (string, error) {
	if !validIdent(o.Field) {
		return "", fmt.Errorf("%w: invalid sort field %q", models.ErrInvalidQuery, o.Field)
	}

	if o.Nested == nil {
		return col(alias, o.Field), nil
	}

	rel, ok := m.relation(o.Field)
	if !ok || rel.Kind != ToOne {
		return "", fmt.Errorf("%w: cannot sort %s through %q", models.ErrInvalidQuery, m.Name, o.Field)
	}

	target := b.reg.lookup(rel.Model)
	a := b.alias()

	inner, err := b.orderExpr(*o.Nested, target, a)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("(SELECT %s FROM %s %s WHERE %s = %s LIMIT 1)",
		inner, quoteIdent(b.reg.Table(target.Name)), a,
		col(a, rel.ForeignKey), col(alias, rel.LocalKey),
	), nil
}

// selectList renders the projection for the root model aliased as alias.
func (b *sqlBuilder) selectList(p *Projection, m *Model, alias string) (string, error) {
	if p.IsEmpty() {
		return alias + ".*", nil
	}

	parts := make([]string, 0, len(p.Fields)+len(p.Relations))

	if len(p.Fields) == 0 && len(p.Relations) > 0 && !p.RelationsOnly {
		parts = append(parts, alias+".*")
	}

	for _, f := range p.Fields {
		parts = append(parts, col(alias, f))
	}

	for _, name := range p.relationNames() {
		expr, err := b.relationJSON(name, p.Relations[name], m, alias)
		if err != nil {
			return "", err
		}

		parts = append(parts, expr+" AS "+quoteIdent(name))
	}

	return strings.Join(parts, ", "), nil
}

// rowJSON renders one row of m (aliased alias) as jsonb, including nested relations.
func (b *sqlBuilder) rowJSON(p *Projection, m *Model, alias string) (string, error) {
	base := "to_jsonb(" + alias + ".*)"

	if p != nil && len(p.Fields) > 0 {
		pairs := make([]string, 0, len(p.Fields))
		for _, f := range p.Fields {
			pairs = append(pairs, "'"+f+"', "+col(alias, f))
		}

		base = "jsonb_build_object(" + strings.Join(pairs, ", ") + ")"
	}

	if p == nil {
		return base, nil
	}

	for _, name := range p.relationNames() {
		expr, err := b.relationJSON(name, p.Relations[name], m, alias)
		if err != nil {
			return "", err
		}

		base += " || jsonb_build_object('" + name + "', " + expr + ")"
	}

	return base, nil
}

// relationJSON renders a to-one relation as a jsonb object and a to-many
// relation as a jsonb array. Soft-deleted children are hidden unless the
// request includes deleted rows.
func (b *sqlBuilder) relationJSON(name string, p *Projection, m *Model, alias string) (string, error) {
	rel, ok := m.relation(name)
	if !ok {
		return "", fmt.Errorf("%w: %s has no relation %q", models.ErrInvalidQuery, m.Name, name)
	}

	target := b.reg.lookup(rel.Model)
	a := b.alias()

	body, err := b.rowJSON(p, target, a)
	if err != nil {
		return "", err
	}

	cond := col(a, rel.ForeignKey) + " = " + col(alias, rel.LocalKey)
	table := quoteIdent(b.reg.Table(target.Name))

	if rel.Kind == ToOne {
		return fmt.Sprintf("(SELECT %s FROM %s %s WHERE %s LIMIT 1)", body, table, a, cond), nil
	}

	cols, err := b.reg.Columns(b.ctx, target.Name)
	if err != nil {
		return "", err
	}

	if cols.Has(ColDeletedAt) && b.deleted == models.ExcludeDeleted {
		cond += " AND " + col(a, ColDeletedAt) + " IS NULL"
	}

	agg := "jsonb_agg(" + body + ")"
	if cols.Has(ColCreatedAt) {
		agg = "jsonb_agg(" + body + " ORDER BY " + col(a, ColCreatedAt) + ")"
	}

	return fmt.Sprintf("(SELECT COALESCE(%s, '[]'::jsonb) FROM %s %s WHERE %s)", agg, table, a, cond), nil
}

// Projection selects fields and relations. An empty projection selects all
// columns of the root and no relations.
type Projection struct {
	Fields    []string
	Relations map[string]*Projection
	// RelationsOnly is set for select projections naming only relations,
	// so the root's own columns are not returned.
	RelationsOnly bool
}

// IsEmpty reports whether the projection selects nothing specific.
func (p *Projection) IsEmpty() bool {
	return p == nil || (len(p.Fields) == 0 && len(p.Relations) == 0)
}

func (p *Projection) relationNames() []string {
	names := make([]string, 0, len(p.Relations))
	for n := range p.Relations {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}

func (p *Projection) child(name string) *Projection {
	if p.Relations == nil {
		p.Relations = make(map[string]*Projection)
	}

	c, ok := p.Relations[name]
	if !ok {
		c = &Projection{}
		p.Relations[name] = c
	}

	return c
}
