package store

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/identity"
	"github.com/coesco/opsapi/internal/models"
)

var errBlankName = errors.New("name must not be blank")

// t0 is a fixed timestamp for fixture rows.
var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// taskColumns is a model with ownership, soft delete and timestamps.
var taskColumns = []string{ColID, "name", ColOwnerID, ColDeletedAt, ColCreatedAt, ColUpdatedAt, ColUpdatedByID}

func testModels() []Model {
	return []Model{
		{
			Name:         "task",
			Columns:      taskColumns,
			SearchFields: []SearchField{{Field: "name", Weight: 2}, {Field: "status"}},
			Enums:        []string{"status"},
		},
		{
			Name:    "note",
			Columns: []string{ColID, "body", ColCreatedAt},
		},
		{
			Name:    "widget",
			Columns: []string{ColID, "name", ColCreatedByID, ColUpdatedByID, ColCreatedAt, ColUpdatedAt},
			Validate: func(_ context.Context, data models.Record) error {
				if data["name"] == "" {
					return errBlankName
				}

				return nil
			},
		},
		{
			Name:    "emailLog",
			Columns: []string{ColID, "recipient", ColCreatedAt},
		},
		{
			Name:    "part",
			Columns: []string{ColID, "code", "name", ColDeletedAt, ColCreatedAt},
			SearchFields: []SearchField{
				{Field: "code", Weight: 3, Fuzzy: true},
				{Field: "name", Fuzzy: true},
			},
		},
		{
			Name:         "person",
			Columns:      []string{ColID, "firstName", "lastName", ColCreatedAt},
			SearchFields: []SearchField{{Field: "fullName"}, {Field: "lastName"}},
			Computed: map[string]ComputeFunc{
				"fullName": func(r models.Record) any {
					first, _ := r["firstName"].(string)
					last, _ := r["lastName"].(string)

					return first + " " + last
				},
			},
		},
	}
}

func newMockGateway(t *testing.T, opts Options) (*Gateway, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("creating mock pool: %v", err)
	}

	t.Cleanup(mock.Close)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	reg := NewRegistry(NewIntrospector(mock))
	reg.MustRegister(testModels()...)

	return NewGateway(Base{DB: mock, Log: log}, reg, opts), mock
}

func asCaller(id string) context.Context {
	return identity.WithCaller(context.Background(), identity.Caller{ID: id})
}

// q quotes a literal SQL fragment for regexp matching.
func q(s string) string { return regexp.QuoteMeta(s) }

func expectBegin(mock pgxmock.PgxPoolIface, caller string) {
	mock.ExpectBegin()
	mock.ExpectExec(q("SELECT set_config('app.employee_id', $1, true)")).
		WithArgs(caller).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
}

// diffKeys matches a JSON-encoded audit diff by its exact set of fields.
type diffKeys []string

func (d diffKeys) Match(v any) bool {
	b, ok := v.([]byte)
	if !ok {
		return false
	}

	var diff models.Diff
	if err := json.Unmarshal(b, &diff); err != nil || len(diff) != len(d) {
		return false
	}

	for _, k := range d {
		if _, ok := diff[k]; !ok {
			return false
		}
	}

	return true
}

func expectAudit(mock pgxmock.PgxPoolIface, model, id, action, actor string, diff any) {
	mock.ExpectExec(q("INSERT INTO audit_logs")).
		WithArgs(pgxmock.AnyArg(), model, id, action, actor, diff, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func checkExpectations(t *testing.T, mock pgxmock.PgxPoolIface) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func asCallerValue(id string) identity.Caller {
	return identity.FromContext(asCaller(id))
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	return log
}
