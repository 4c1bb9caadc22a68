package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultRetentionInterval = 6 * time.Hour

// Purger removes data whose retention has passed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// AuditPurger removes audit entries older than a retention window.
type AuditPurger interface {
	PurgeOldEntries(ctx context.Context, retentionDays int) (int, error)
}

// RetentionWorker periodically purges expired soft-deleted records and,
// when auditRetentionDays > 0, old audit entries.
type RetentionWorker struct {
	deleted            Purger
	audit              AuditPurger
	auditRetentionDays int
	interval           time.Duration
	log                *logrus.Logger
}

// NewRetentionWorker creates a RetentionWorker. A non-positive interval
// falls back to six hours.
func NewRetentionWorker(
	deleted Purger, audit AuditPurger, auditRetentionDays int, interval time.Duration, log *logrus.Logger,
) *RetentionWorker {
	if interval <= 0 {
		interval = defaultRetentionInterval
	}

	return &RetentionWorker{
		deleted:            deleted,
		audit:              audit,
		auditRetentionDays: auditRetentionDays,
		interval:           interval,
		log:                log,
	}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (w *RetentionWorker) Run(ctx context.Context) {
	w.Sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// SweepResult counts the rows removed by one sweep.
type SweepResult struct {
	Records      int
	AuditEntries int
}

// Sweep runs one purge pass. Failures are logged and do not stop the
// other purge.
func (w *RetentionWorker) Sweep(ctx context.Context) SweepResult {
	var res SweepResult

	if w.deleted != nil {
		n, err := w.deleted.PurgeExpired(ctx)
		if err != nil {
			w.log.WithError(err).Warn("retention: purging deleted records failed")
		}
		res.Records = n
	}

	if w.audit != nil && w.auditRetentionDays > 0 {
		n, err := w.audit.PurgeOldEntries(ctx, w.auditRetentionDays)
		if err != nil {
			w.log.WithError(err).Warn("retention: purging audit entries failed")
		}
		res.AuditEntries = n
	}

	return res
}
