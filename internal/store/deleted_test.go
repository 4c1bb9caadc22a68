package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"

	"github.com/coesco/opsapi/internal/models"
)

var partColumns = []string{ColID, "code", "name", ColDeletedAt, ColCreatedAt}

func TestDeletedListMergesModels(t *testing.T) {
	gw, mock := newMockGateway(t, Options{})
	mock.MatchExpectationsInOrder(false)

	const taskDeleted = `((r0."ownerId" IS NULL) OR (r0."ownerId" = $1)) AND (r0."deletedAt" IS NOT NULL)`

	mock.ExpectQuery(q(`SELECT COUNT(*) FROM "parts" r0 WHERE (r0."deletedAt" IS NOT NULL)`)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery(q(`SELECT r0.* FROM "parts" r0 WHERE (r0."deletedAt" IS NOT NULL) ORDER BY r0."deletedAt" DESC LIMIT $1`)).
		WithArgs(2).
		WillReturnRows(pgxmock.NewRows(partColumns).AddRow("p1", "BLT", "Bolt", t0.Add(2*time.Hour), t0))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM "tasks" r0 WHERE ` + taskDeleted)).
		WithArgs("emp-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(q(`SELECT r0.* FROM "tasks" r0 WHERE ` + taskDeleted + ` ORDER BY r0."deletedAt" DESC LIMIT $2`)).
		WithArgs("emp-1", 2).
		WillReturnRows(pgxmock.NewRows(taskColumns).
			AddRow("t2", "Second", "emp-1", t0.Add(3*time.Hour), t0, t0, nil).
			AddRow("t1", "First", nil, t0.Add(time.Hour), t0, t0, nil))

	store := NewDeletedStore(gw, 30)

	list, err := store.List(asCaller("emp-1"), models.DeletedQueryOpts{Limit: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	want := models.ListMeta{Page: 1, Limit: 2, Total: 3, TotalPages: 2}
	if list.Meta != want {
		t.Errorf("Meta = %+v, want %+v", list.Meta, want)
	}

	if len(list.Data) != 2 || list.Data[0].ID != "t2" || list.Data[1].ID != "p1" {
		t.Fatalf("Data = %+v, want t2 then p1", list.Data)
	}

	first := list.Data[0]
	if first.Model != "task" || first.DisplayName != "t2" {
		t.Errorf("first = %+v", first)
	}

	if got := first.HardDeleteDate.Sub(first.DeletedAt); got != 30*24*time.Hour {
		t.Errorf("hard delete after %v, want 30 days", got)
	}

	checkExpectations(t, mock)
}

func TestDeletedListRejectsModelWithoutSoftDelete(t *testing.T) {
	gw, mock := newMockGateway(t, Options{})

	_, err := NewDeletedStore(gw, 30).List(context.Background(), models.DeletedQueryOpts{Model: "note"})
	if !errors.Is(err, models.ErrUnknownModel) {
		t.Fatalf("List err = %v, want ErrUnknownModel", err)
	}

	checkExpectations(t, mock)
}

func TestDisplayName(t *testing.T) {
	m := &Model{Name: "contact", DisplayFields: []string{"firstName", "lastName"}}

	if got := displayName(m, models.Record{"id": "c1", "firstName": "Ada", "lastName": " Lovelace "}); got != "Ada Lovelace" {
		t.Errorf("displayName = %q", got)
	}

	if got := displayName(m, models.Record{"id": "c1", "firstName": nil}); got != "c1" {
		t.Errorf("displayName fallback = %q, want c1", got)
	}
}

func TestDeletedHardDelete(t *testing.T) {
	gw, mock := newMockGateway(t, Options{})

	expectBegin(mock, "emp-1")
	mock.ExpectQuery(q(`SELECT r0.* FROM "parts" r0 WHERE (r0."id" = $1) AND ((r0."deletedAt" IS NOT NULL)) LIMIT 1 FOR UPDATE`)).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows(partColumns).AddRow("p1", "BLT", "Bolt", t0, t0))
	mock.ExpectExec(q(`DELETE FROM "parts" WHERE "id" = $1`)).
		WithArgs("p1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	expectAudit(mock, "part", "p1", models.ActionDelete, "emp-1", diffKeys(partColumns))
	mock.ExpectCommit()

	if _, err := NewDeletedStore(gw, 30).HardDelete(asCaller("emp-1"), "part", "p1"); err != nil {
		t.Fatalf("HardDelete: %v", err)
	}

	checkExpectations(t, mock)
}

func TestPurgeExpired(t *testing.T) {
	gw, mock := newMockGateway(t, Options{})

	expectBegin(mock, "")
	mock.ExpectQuery(q(`DELETE FROM "parts" WHERE "deletedAt" < $1 RETURNING *`)).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(partColumns).AddRow("p9", "OLD", "Old part", t0, t0))
	expectAudit(mock, "part", "p9", models.ActionDelete, models.SystemActor, diffKeys(partColumns))
	mock.ExpectCommit()

	expectBegin(mock, "")
	mock.ExpectQuery(q(`DELETE FROM "tasks" WHERE "deletedAt" < $1 RETURNING *`)).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(taskColumns))
	mock.ExpectCommit()

	n, err := NewDeletedStore(gw, 30).PurgeExpired(context.Background())
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}

	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}

	checkExpectations(t, mock)
}

func TestPurgeExpiredRequiresRetention(t *testing.T) {
	gw, mock := newMockGateway(t, Options{})

	if _, err := NewDeletedStore(gw, 0).PurgeExpired(context.Background()); err == nil {
		t.Fatal("PurgeExpired succeeded without retention")
	}

	checkExpectations(t, mock)
}
