package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/metrics"
	"github.com/coesco/opsapi/internal/models"
)

// auditExempt lists models whose mutations are never audited.
var auditExempt = map[string]bool{
	"auditLog":      true,
	"emailLog":      true,
	"bugReport":     true,
	"session":       true,
	"loginHistory":  true,
	"machineStatus": true,
}

// IsAuditExempt reports whether mutations of model skip the audit log.
func IsAuditExempt(model string) bool {
	return auditExempt[model]
}

// AuditStore provides data access for the audit_logs table.
type AuditStore struct {
	Base
}

// NewAuditStore creates an AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

// changedBy returns the caller id, or the system actor for anonymous work.
func changedBy(caller identity.Caller) string {
	if caller.IsAnonymous() {
		return models.SystemActor
	}

	return caller.ID
}

// Record writes one audit row for a mutation inside db, the mutation's own
// transaction. Exempt models, rows without an id and empty diffs write
// nothing. The ignore fields are dropped from the stored diff. It reports
// whether a row was written.
func (s *AuditStore) Record(
	ctx context.Context,
	db DBTX,
	model, action string,
	before, after models.Record,
	caller identity.Caller,
	ignore ...string,
) (bool, error) {
	if model == "" || IsAuditExempt(model) {
		return false, nil
	}

	recordID := after.ID()
	if recordID == "" {
		recordID = before.ID()
	}

	if recordID == "" {
		return false, nil
	}

	diff, err := Diff(before, after)
	if err != nil {
		return false, fmt.Errorf("computing audit diff: %w", err)
	}

	diff = without(diff, ignore...)
	if len(diff) == 0 {
		return false, nil
	}

	diffJSON, err := json.Marshal(diff)
	if err != nil {
		return false, fmt.Errorf("marshaling audit diff: %w", err)
	}

	_, err = db.Exec(ctx, `
		INSERT INTO audit_logs (id, model, "recordId", action, "changedBy", diff, "createdAt")
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), model, recordID, action, changedBy(caller), diffJSON, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting audit entry: %w", err)
	}

	metrics.AuditWrites.WithLabelValues(model, action).Inc()

	return true, nil
}

// buildAuditFilter builds WHERE clause and args from AuditQueryOpts.
func buildAuditFilter(opts models.AuditQueryOpts) (where string, args []any, nextArg int) {
	var conditions []string
	argIdx := 1

	add := func(clause string, v any) {
		conditions = append(conditions, clause+" = $"+strconv.Itoa(argIdx))
		args = append(args, v)
		argIdx++
	}

	if opts.Model != "" {
		add("model", opts.Model)
	}
	if opts.RecordID != "" {
		add(`"recordId"`, opts.RecordID)
	}
	if opts.Action != "" {
		add("action", strings.ToUpper(opts.Action))
	}
	if opts.ChangedBy != "" {
		add(`"changedBy"`, opts.ChangedBy)
	}
	if opts.Since != nil {
		conditions = append(conditions, `"createdAt" >= $`+strconv.Itoa(argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}

	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	return where, args, argIdx
}

// QueryAudit returns audit entries matching the given filters, newest first.
// Returns entries, hasMore flag, and any error.
func (s *AuditStore) QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditEntry, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginReadTx(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // read-only transaction.

	where, args, argIdx := buildAuditFilter(opts)

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	query := fmt.Sprintf(
		`SELECT id, model, "recordId", action, "changedBy", diff, "createdAt" FROM audit_logs %s ORDER BY "createdAt" DESC LIMIT $%d OFFSET $%d`,
		where, argIdx, argIdx+1,
	)
	args = append(args, limit+1, max(opts.Offset, 0))

	entries, err := scanAuditRows(ctx, tx, query, args, s.Log)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}

	return entries, hasMore, nil
}

// scanAuditRows executes a query and scans audit entries from the result.
func scanAuditRows(ctx context.Context, db DBTX, query string, args []any, log *logrus.Logger) ([]models.AuditEntry, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var diffJSON []byte

		if err := rows.Scan(&e.ID, &e.Model, &e.RecordID, &e.Action, &e.ChangedBy, &diffJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}

		if diffJSON != nil {
			if err := json.Unmarshal(diffJSON, &e.Diff); err != nil {
				log.WithError(err).WithField("audit_id", e.ID).Warn("failed to unmarshal audit diff")
			}
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit log: %w", err)
	}

	return entries, nil
}

// purgeBatchSize limits the number of rows deleted per transaction to avoid
// holding long locks on audit_logs.
const purgeBatchSize = 5000

// PurgeOldEntries deletes audit entries older than retentionDays in batches.
// Returns the number of deleted entries.
func (s *AuditStore) PurgeOldEntries(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays < 1 {
		return 0, fmt.Errorf("retention must be at least one day, got %d", retentionDays)
	}

	var totalDeleted int

	for {
		batchCtx, cancel := withTimeout(ctx)

		deleted, err := s.purgeOldEntriesBatch(batchCtx, retentionDays)
		cancel()

		if err != nil {
			return totalDeleted, err
		}

		totalDeleted += deleted
		if deleted < purgeBatchSize {
			break
		}
	}

	return totalDeleted, nil
}

// purgeOldEntriesBatch deletes a single batch of expired audit entries.
func (s *AuditStore) purgeOldEntriesBatch(ctx context.Context, retentionDays int) (int, error) {
	tx, err := s.beginTx(ctx, identity.Caller{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback on early return.

	tag, err := tx.Exec(ctx,
		`DELETE FROM audit_logs WHERE ctid IN (
			SELECT ctid FROM audit_logs
			WHERE "createdAt" < NOW() - make_interval(days => $1)
			LIMIT $2
		)`,
		retentionDays, purgeBatchSize,
	)
	if err != nil {
		return 0, fmt.Errorf("purging audit entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing audit purge: %w", err)
	}

	return int(tag.RowsAffected()), nil
}
