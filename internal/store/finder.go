package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/coesco/opsapi/internal/models"
)

// rootAlias is the alias of the queried model's table in every statement.
const rootAlias = "r0"

// scoreColumn carries the fuzzy similarity score on returned rows.
const scoreColumn = "similarityScore"

// listQuery is everything a finder needs to execute one list plan.
type listQuery struct {
	db  DBTX
	reg *Registry

	model *Model
	table string
	plan  *Plan
	scope Expr

	// concurrent allows count and find to run on separate connections.
	// It is false inside a caller transaction.
	concurrent bool
	// cap bounds in-memory candidate sets; 0 means unbounded.
	cap int
}

// where is the plan filter ANDed with the visibility scope.
func (q *listQuery) where() Expr {
	return AllOf(q.scope, q.plan.Where)
}

// finder executes a list plan and returns the page of records plus the
// total number of matches.
type finder interface {
	find(ctx context.Context, q *listQuery) ([]models.Record, int, error)
}

// finderFor returns the strategy for kind.
func finderFor(kind PlanKind) finder {
	switch kind {
	case PlanFuzzy:
		return fuzzyFinder{}
	case PlanComputed:
		return computedFinder{}
	default:
		return plainFinder{}
	}
}

// plainFinder counts and pages natively in SQL.
type plainFinder struct{}

func (plainFinder) find(ctx context.Context, q *listQuery) ([]models.Record, int, error) {
	countSQL, countArgs, err := q.countStatement(ctx)
	if err != nil {
		return nil, 0, err
	}

	findSQL, findArgs, err := q.findStatement(ctx, q.plan.ListProjection(), true)
	if err != nil {
		return nil, 0, err
	}

	var (
		recs  []models.Record
		total int64
	)

	count := func(ctx context.Context) error {
		if err := q.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("counting %s: %w", q.model.Name, err)
		}

		return nil
	}

	list := func(ctx context.Context) error {
		rows, err := q.db.Query(ctx, findSQL, findArgs...)
		if err != nil {
			return fmt.Errorf("listing %s: %w", q.model.Name, err)
		}

		recs, err = collectRecords(rows)

		return err
	}

	if !q.concurrent {
		if err := list(ctx); err != nil {
			return nil, 0, err
		}

		if err := count(ctx); err != nil {
			return nil, 0, err
		}

		return recs, int(total), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return list(gctx) })
	g.Go(func() error { return count(gctx) })

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return recs, int(total), nil
}

// countStatement renders SELECT COUNT(*) for the scoped plan filter.
func (q *listQuery) countStatement(ctx context.Context) (string, []any, error) {
	b := newSQLBuilder(ctx, q.reg, q.plan.IncludeDeleted)

	where, err := b.where(q.where(), q.model, rootAlias)
	if err != nil {
		return "", nil, err
	}

	sql := "SELECT COUNT(*) FROM " + quoteIdent(q.table) + " " + rootAlias + " WHERE " + where

	return sql, b.args, nil
}

// findStatement renders the data query. With paged set, Take and Skip are
// applied in SQL; otherwise the candidate cap is.
func (q *listQuery) findStatement(ctx context.Context, p *Projection, paged bool) (string, []any, error) {
	b := newSQLBuilder(ctx, q.reg, q.plan.IncludeDeleted)

	sel, err := b.selectList(p, q.model, rootAlias)
	if err != nil {
		return "", nil, err
	}

	where, err := b.where(q.where(), q.model, rootAlias)
	if err != nil {
		return "", nil, err
	}

	order, err := b.orderBy(q.plan.OrderBy, q.model, rootAlias)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + sel + " FROM " + quoteIdent(q.table) + " " + rootAlias)
	sb.WriteString(" WHERE " + where + order)

	switch {
	case paged && q.plan.Take > 0:
		sb.WriteString(" LIMIT " + b.arg(q.plan.Take) + " OFFSET " + b.arg(q.plan.Skip))
	case !paged && q.cap > 0:
		sb.WriteString(" LIMIT " + b.arg(q.cap+1))
	}

	return sb.String(), b.args, nil
}

// checkCap fails when an in-memory candidate set exceeded the cap.
func (q *listQuery) checkCap(n int) error {
	if q.cap > 0 && n > q.cap {
		return fmt.Errorf("%w: %s matched more than %d rows", models.ErrCandidateLimit, q.model.Name, q.cap)
	}

	return nil
}

// paginate slices recs to the plan's page window.
func paginate(recs []models.Record, plan *Plan) []models.Record {
	if plan.Take <= 0 {
		return recs
	}

	if plan.Skip >= len(recs) {
		return []models.Record{}
	}

	end := min(plan.Skip+plan.Take, len(recs))

	return recs[plan.Skip:end]
}

// fuzzyFinder scores rows by weighted trigram similarity in SQL, keeps rows
// scoring at least fuzzyThreshold and pages the candidates in memory.
type fuzzyFinder struct{}

func (fuzzyFinder) find(ctx context.Context, q *listQuery) ([]models.Record, int, error) {
	if len(q.plan.FuzzyFields) == 0 {
		return nil, 0, models.ErrSearchFieldsRequired
	}

	b := newSQLBuilder(ctx, q.reg, q.plan.IncludeDeleted)
	term := b.arg(q.plan.FuzzyTerm)

	terms := make([]string, 0, len(q.plan.FuzzyFields))
	for _, f := range q.plan.FuzzyFields {
		text := "CAST(" + col(rootAlias, f.Field) + " AS TEXT)"
		terms = append(terms, fmt.Sprintf(
			"COALESCE(GREATEST(similarity(%s, %s), word_similarity(%s, %s)), 0) * %s",
			text, term, term, text, strconv.FormatFloat(f.weight(), 'f', -1, 64),
		))
	}

	score := "(" + strings.Join(terms, " + ") + ")"

	sel, err := b.selectList(q.plan.ListProjection(), q.model, rootAlias)
	if err != nil {
		return nil, 0, err
	}

	where, err := b.where(q.where(), q.model, rootAlias)
	if err != nil {
		return nil, 0, err
	}

	order, err := b.orderBy(q.plan.OrderBy, q.model, rootAlias)
	if err != nil {
		return nil, 0, err
	}

	if order == "" {
		order = " ORDER BY " + quoteIdent(scoreColumn) + " DESC"
	} else {
		order = " ORDER BY " + quoteIdent(scoreColumn) + " DESC, " + strings.TrimPrefix(order, " ORDER BY ")
	}

	sql := "SELECT " + sel + ", " + score + " AS " + quoteIdent(scoreColumn) +
		" FROM " + quoteIdent(q.table) + " " + rootAlias +
		" WHERE (" + where + ") AND " + score + " >= " + strconv.FormatFloat(fuzzyThreshold, 'f', -1, 64) +
		order

	if q.cap > 0 {
		sql += " LIMIT " + b.arg(q.cap+1)
	}

	rows, err := q.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("fuzzy searching %s: %w", q.model.Name, err)
	}

	recs, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := q.checkCap(len(recs)); err != nil {
		return nil, 0, err
	}

	return paginate(recs, q.plan), len(recs), nil
}

// computedFinder fetches every scoped candidate, derives computed fields and
// matches the search term against them in memory.
type computedFinder struct{}

func (computedFinder) find(ctx context.Context, q *listQuery) ([]models.Record, int, error) {
	p := q.plan.ListProjection()

	// Matching needs the full row; the projection's fields are applied after.
	var fetch *Projection
	if !p.IsEmpty() && len(p.Relations) > 0 {
		fetch = &Projection{Relations: p.Relations}
	}

	sql, args, err := q.findStatement(ctx, fetch, false)
	if err != nil {
		return nil, 0, err
	}

	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing %s: %w", q.model.Name, err)
	}

	recs, err := collectRecords(rows)
	if err != nil {
		return nil, 0, err
	}

	if err := q.checkCap(len(recs)); err != nil {
		return nil, 0, err
	}

	q.model.applyComputed(recs...)

	term := strings.ToLower(q.plan.SearchTerm)
	matched := make([]models.Record, 0, len(recs))

	for _, rec := range recs {
		if matchesAny(rec, q.plan.SearchFields, term) {
			matched = append(matched, project(rec, p))
		}
	}

	return paginate(matched, q.plan), len(matched), nil
}

// matchesAny reports whether any field's text contains term, case-insensitively.
func matchesAny(rec models.Record, fields []string, term string) bool {
	if term == "" {
		return true
	}

	for _, f := range fields {
		v, ok := rec[f]
		if !ok || v == nil {
			continue
		}

		if strings.Contains(strings.ToLower(fmt.Sprint(v)), term) {
			return true
		}
	}

	return false
}

// project keeps only the projection's fields and relations on rec.
func project(rec models.Record, p *Projection) models.Record {
	if p.IsEmpty() || (len(p.Fields) == 0 && !p.RelationsOnly) {
		return rec
	}

	out := make(models.Record, len(p.Fields)+len(p.Relations))
	for _, f := range p.Fields {
		out[f] = rec[f]
	}

	for name := range p.Relations {
		out[name] = rec[name]
	}

	return out
}
