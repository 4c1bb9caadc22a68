package store

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/coesco/opsapi/internal/models"
)

// maxFilterDepth bounds nesting of AND/OR/NOT and relation filters.
const maxFilterDepth = 8

// parseFilter turns a filter object into an expression. Keys are columns,
// relation names, dot paths through relations, or the combinators AND, OR
// and NOT. Scalar values mean equality; objects hold operators such as
// gte, in or contains (with mode "insensitive").
func (t *translator) parseFilter(obj map[string]any, m *Model, cols ColumnSet, depth int) (Expr, error) {
	if depth > maxFilterDepth {
		return nil, fmt.Errorf("%w: filter nested too deeply", models.ErrInvalidQuery)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	exprs := make([]Expr, 0, len(keys))

	for _, key := range keys {
		e, err := t.filterKey(key, obj[key], m, cols, depth)
		if err != nil {
			return nil, err
		}

		exprs = append(exprs, e)
	}

	return AllOf(exprs...), nil
}

func (t *translator) filterKey(key string, v any, m *Model, cols ColumnSet, depth int) (Expr, error) {
	switch key {
	case "AND", "OR", "NOT":
		list, err := t.filterList(v, m, cols, depth)
		if err != nil {
			return nil, err
		}

		switch key {
		case "AND":
			return AllOf(list...), nil
		case "OR":
			return Or(list), nil
		default:
			return Not{X: AllOf(list...)}, nil
		}
	}

	if head, rest, ok := strings.Cut(key, "."); ok {
		return t.relationFilter(head, map[string]any{rest: v}, m, depth)
	}

	if _, ok := m.relation(key); ok {
		inner, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: relation filter %q must be an object", models.ErrInvalidQuery, key)
		}

		return t.relationFilter(key, inner, m, depth)
	}

	if !validIdent(key) {
		return nil, fmt.Errorf("%w: invalid filter key %q", models.ErrInvalidQuery, key)
	}

	if m.isComputed(key) || (len(cols) > 0 && !cols.Has(key)) {
		return nil, fmt.Errorf("%w: %s has no filterable field %q", models.ErrInvalidQuery, m.Name, key)
	}

	return columnFilter(key, v)
}

func (t *translator) filterList(v any, m *Model, cols ColumnSet, depth int) ([]Expr, error) {
	var objs []map[string]any

	switch val := v.(type) {
	case map[string]any:
		objs = []map[string]any{val}
	case []any:
		for _, item := range val {
			o, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: combinator entries must be objects", models.ErrInvalidQuery)
			}

			objs = append(objs, o)
		}
	default:
		return nil, fmt.Errorf("%w: combinator value must be an object or array", models.ErrInvalidQuery)
	}

	out := make([]Expr, 0, len(objs))

	for _, o := range objs {
		e, err := t.parseFilter(o, m, cols, depth+1)
		if err != nil {
			return nil, err
		}

		if e == nil {
			e = And{}
		}

		out = append(out, e)
	}

	return out, nil
}

// relationFilter handles some/every/none/is/isNot wrappers, defaulting to some.
func (t *translator) relationFilter(name string, inner map[string]any, m *Model, depth int) (Expr, error) {
	rel, ok := m.relation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no relation %q", models.ErrInvalidQuery, m.Name, name)
	}

	target := t.reg.lookup(rel.Model)
	targetCols, _ := t.reg.intro.Cached(target.Name)

	parse := func(v any) (Expr, error) {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: relation filter %q must be an object", models.ErrInvalidQuery, name)
		}

		return t.parseFilter(obj, target, targetCols, depth+1)
	}

	if len(inner) == 1 {
		for wrapper, v := range inner {
			switch wrapper {
			case "some", "is":
				where, err := parse(v)
				if err != nil {
					return nil, err
				}

				return Related{Relation: name, Where: where}, nil
			case "none", "isNot":
				where, err := parse(v)
				if err != nil {
					return nil, err
				}

				return Not{X: Related{Relation: name, Where: where}}, nil
			case "every":
				where, err := parse(v)
				if err != nil {
					return nil, err
				}

				return Not{X: Related{Relation: name, Where: Not{X: where}}}, nil
			}
		}
	}

	where, err := parse(inner)
	if err != nil {
		return nil, err
	}

	return Related{Relation: name, Where: where}, nil
}

// columnFilter builds comparisons for a single column.
func columnFilter(column string, v any) (Expr, error) {
	switch val := v.(type) {
	case nil:
		return IsNull(column), nil
	case []any:
		return Cmp{Column: column, Op: OpIn, Value: coerceList(val)}, nil
	case map[string]any:
		return operatorFilter(column, val)
	default:
		return Eq(column, coerce(val)), nil
	}
}

func operatorFilter(column string, ops map[string]any) (Expr, error) {
	fold := false
	if mode, ok := ops["mode"].(string); ok {
		fold = strings.EqualFold(mode, "insensitive")
	}

	keys := make([]string, 0, len(ops))
	for k := range ops {
		if k != "mode" {
			keys = append(keys, k)
		}
	}

	sort.Strings(keys)

	exprs := make([]Expr, 0, len(keys))

	for _, k := range keys {
		v := ops[k]
		op := Op(k)

		switch op {
		case OpNe:
			if nested, ok := v.(map[string]any); ok {
				inner, err := operatorFilter(column, nested)
				if err != nil {
					return nil, err
				}

				exprs = append(exprs, Not{X: inner})

				continue
			}

			exprs = append(exprs, Cmp{Column: column, Op: OpNe, Value: coerce(v)})
		case OpIn, OpNotIn:
			list, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s on %s requires a list", models.ErrInvalidQuery, k, column)
			}

			exprs = append(exprs, Cmp{Column: column, Op: op, Value: coerceList(list)})
		case OpEq, OpGt, OpGte, OpLt, OpLte:
			exprs = append(exprs, Cmp{Column: column, Op: op, Value: coerce(v), Fold: fold && op == OpEq})
		case OpContains, OpStartsWith, OpEndsWith:
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s on %s requires a string", models.ErrInvalidQuery, k, column)
			}

			exprs = append(exprs, Cmp{Column: column, Op: op, Value: s, Fold: fold})
		default:
			return nil, fmt.Errorf("%w: unknown operator %q on %s", models.ErrInvalidQuery, k, column)
		}
	}

	if len(exprs) == 0 {
		return nil, fmt.Errorf("%w: empty operator object on %s", models.ErrInvalidQuery, column)
	}

	return AllOf(exprs...), nil
}

// coerce maps JSON scalars onto driver-friendly values: "true"/"false"
// become booleans, RFC 3339 strings become times and whole numbers become
// integers.
func coerce(v any) any {
	switch val := v.(type) {
	case string:
		switch val {
		case "true":
			return true
		case "false":
			return false
		}

		if ts, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return ts
		}

		return val
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1<<53 {
			return int64(val)
		}

		return val
	default:
		return v
	}
}

func coerceList(list []any) []any {
	out := make([]any, len(list))
	for i, v := range list {
		out[i] = coerce(v)
	}

	return out
}
