package store

import (
	"context"
	"fmt"

	"github.com/coesco/opsapi/internal/models"
)

// HistoryStore reads the audit trail of individual records.
type HistoryStore struct {
	Base
}

// NewHistoryStore creates a new HistoryStore.
func NewHistoryStore(base Base) *HistoryStore {
	return &HistoryStore{Base: base}
}

// GetHistory returns every audit record for (model, id), oldest first,
// reshaped for display. An empty model name is a programming error.
func (s *HistoryStore) GetHistory(ctx context.Context, model, id string) ([]models.HistoryEntry, error) {
	if model == "" {
		return nil, models.ErrModelNameRequired
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	entries, err := scanAuditRows(ctx, s.DB, `
		SELECT id, model, "recordId", action, "changedBy", diff, "createdAt"
		FROM audit_logs
		WHERE model = $1 AND "recordId" = $2
		ORDER BY "createdAt" ASC`,
		[]any{model, id}, s.Log,
	)
	if err != nil {
		return nil, fmt.Errorf("getting history for %s %s: %w", model, id, err)
	}

	history := make([]models.HistoryEntry, 0, len(entries))
	for _, e := range entries {
		history = append(history, models.HistoryEntry{
			Action:    e.Action,
			Actor:     models.Actor{ID: e.ChangedBy},
			Timestamp: e.CreatedAt,
			Diff:      e.Diff,
		})
	}

	return history, nil
}
