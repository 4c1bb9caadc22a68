package dbpool

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/metrics"
)

// maxLoggedSQL truncates statements in log lines.
const maxLoggedSQL = 512

type traceKey struct{}

type traceStart struct {
	sql   string
	start time.Time
}

// SlowQueryTracer is a pgx.QueryTracer that observes query durations and
// logs statements slower than its threshold. Arguments are never logged.
type SlowQueryTracer struct {
	log       *logrus.Logger
	threshold time.Duration
	now       func() time.Time
}

var _ pgx.QueryTracer = (*SlowQueryTracer)(nil)

// NewSlowQueryTracer creates a tracer. A zero threshold disables logging.
func NewSlowQueryTracer(log *logrus.Logger, threshold time.Duration) *SlowQueryTracer {
	return &SlowQueryTracer{log: log, threshold: threshold, now: time.Now}
}

// TraceQueryStart records the statement and its start time.
func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceStart{sql: data.SQL, start: t.now()})
}

// TraceQueryEnd observes the duration and logs slow or failed statements.
func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(traceKey{}).(traceStart)
	if !ok {
		return
	}

	elapsed := t.now().Sub(st.start)

	outcome := "ok"
	if data.Err != nil {
		outcome = "error"
	}

	metrics.QueryDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if t.threshold <= 0 || elapsed < t.threshold {
		return
	}

	metrics.SlowQueries.Inc()

	sql := st.sql
	if len(sql) > maxLoggedSQL {
		sql = sql[:maxLoggedSQL] + "..."
	}

	entry := t.log.WithFields(logrus.Fields{
		"duration_ms": elapsed.Milliseconds(),
		"sql":         sql,
		"rows":        data.CommandTag.RowsAffected(),
	})

	if elapsed >= time.Second {
		entry.Error("slow query")

		return
	}

	entry.Warn("slow query")
}
