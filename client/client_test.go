package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// newTestServer creates a test server that routes to the given handler map.
// Keys are "METHOD /path", values are handler funcs.
func newTestServer(t *testing.T, routes map[string]http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL+"/", WithToken("test-token"))
	return srv, c
}

func jsonResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func TestHealth(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/health": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, HealthResponse{Status: "ok", Version: "1.2.0", Database: "ok"})
		},
		"GET /api/v1/ready": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 503, map[string]any{"status": "not_ready"})
		},
	})
	resp, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error: %v", err)
	}
	if resp.Status != "ok" || resp.Version != "1.2.0" {
		t.Errorf("got %+v", resp)
	}

	if _, err := c.Ready(context.Background()); !hasStatus(err, http.StatusServiceUnavailable) {
		t.Errorf("Ready() err = %v, want 503", err)
	}
}

func TestEntityCRUD(t *testing.T) {
	var gotCreate Record
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/companies": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, ListResult{
				Success: true,
				Data:    []Record{{"id": "c1", "name": "Acme"}},
				Meta:    ListMeta{Page: 1, Limit: 25, Total: 1, TotalPages: 1},
			})
		},
		"POST /api/v1/companies": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotCreate) //nolint:errcheck
			jsonResponse(w, 201, RecordResult{Success: true, Data: Record{"id": "c2", "name": gotCreate["name"]}})
		},
		"GET /api/v1/companies/c1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, RecordResult{Success: true, Data: Record{"id": "c1", "name": "Acme"}})
		},
		"PUT /api/v1/companies/c1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, RecordResult{Success: true, Data: Record{"id": "c1", "name": "Acme Corp"}})
		},
		"DELETE /api/v1/companies/c1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, DeleteResult{Success: true, Message: "Deleted successfully"})
		},
		"GET /api/v1/companies/c1/history": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"success": true, "data": []HistoryEntry{{Action: "CREATE"}}})
		},
	})

	ctx := context.Background()
	companies := c.Entity("companies")

	list, err := companies.List(ctx, nil)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(list.Data) != 1 || list.Meta.Total != 1 {
		t.Errorf("List: got %+v", list)
	}

	rec, err := companies.Create(ctx, Record{"name": "Globex"})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if rec.ID() != "c2" || gotCreate["name"] != "Globex" {
		t.Errorf("Create: got %v, sent %v", rec, gotCreate)
	}

	rec, err = companies.Get(ctx, "c1", nil)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if rec["name"] != "Acme" {
		t.Errorf("Get: got %v", rec)
	}

	rec, err = companies.Update(ctx, "c1", Record{"name": "Acme Corp"})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if rec["name"] != "Acme Corp" {
		t.Errorf("Update: got %v", rec)
	}

	del, err := companies.Delete(ctx, "c1")
	if err != nil || !del.Success {
		t.Fatalf("Delete: err=%v, res=%+v", err, del)
	}

	hist, err := companies.History(ctx, "c1")
	if err != nil || len(hist) != 1 || hist[0].Action != "CREATE" {
		t.Fatalf("History: err=%v, entries=%+v", err, hist)
	}
}

func TestListOptionsQuery(t *testing.T) {
	var got map[string]string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/quote-items": func(w http.ResponseWriter, r *http.Request) {
			got = map[string]string{}
			for k := range r.URL.Query() {
				got[k] = r.URL.Query().Get(k)
			}
			jsonResponse(w, 200, ListResult{Success: true})
		},
	})

	from := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := c.Entity("quote-items").List(context.Background(), &ListOptions{
		Page:           2,
		Limit:          10,
		Sort:           "lineNumber",
		Order:          "asc",
		Search:         "bolt",
		Fuzzy:          true,
		Filter:         map[string]any{"quoteId": "q1"},
		Include:        []string{"quote", "item"},
		Select:         []string{"id", "description"},
		IncludeDeleted: OnlyDeleted,
		DateFrom:       &from,
	})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}

	want := map[string]string{
		"page":           "2",
		"limit":          "10",
		"sort":           "lineNumber",
		"order":          "asc",
		"search":         "bolt",
		"fuzzy":          "true",
		"filter":         `{"quoteId":"q1"}`,
		"include":        "quote,item",
		"select":         "id,description",
		"includeDeleted": "only",
		"dateFrom":       "2026-01-02T00:00:00Z",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("param %s = %q, want %q", k, got[k], v)
		}
	}
	if _, ok := got["dateTo"]; ok {
		t.Error("dateTo should be omitted")
	}
}

func TestQuotes(t *testing.T) {
	var gotReq CreateQuoteRequest
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"POST /api/v1/quotes/with-items": func(w http.ResponseWriter, r *http.Request) {
			json.NewDecoder(r.Body).Decode(&gotReq) //nolint:errcheck
			jsonResponse(w, 201, RecordResult{Success: true, Data: Record{
				"id":    "q1",
				"items": []Record{{"id": "i1", "lineNumber": 1}},
			}})
		},
		"DELETE /api/v1/quotes/q1/with-items": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, DeleteResult{Success: true, Message: "Deleted successfully"})
		},
	})

	ctx := context.Background()

	rec, err := c.Quotes.CreateWithItems(ctx, &CreateQuoteRequest{
		Quote: Record{"status": "DRAFT"},
		Items: []Record{{"description": "Feeder"}},
	})
	if err != nil {
		t.Fatalf("CreateWithItems error: %v", err)
	}
	if rec.ID() != "q1" {
		t.Errorf("CreateWithItems: got %v", rec)
	}
	if len(gotReq.Items) != 1 || gotReq.Quote["status"] != "DRAFT" {
		t.Errorf("request body = %+v", gotReq)
	}

	res, err := c.Quotes.DeleteWithItems(ctx, "q1")
	if err != nil || !res.Success {
		t.Fatalf("DeleteWithItems: err=%v, res=%+v", err, res)
	}
}

func TestAudit(t *testing.T) {
	var gotQuery, gotPurge string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/admin/audit": func(w http.ResponseWriter, r *http.Request) {
			gotQuery = r.URL.RawQuery
			jsonResponse(w, 200, map[string]any{
				"data":     []AuditEntry{{ID: "a1", Model: "company", Action: "UPDATE"}},
				"has_more": true,
			})
		},
		"DELETE /api/v1/admin/audit": func(w http.ResponseWriter, r *http.Request) {
			gotPurge = r.URL.Query().Get("retention_days")
			jsonResponse(w, 200, map[string]int{"deleted": 7, "retention_days": 30})
		},
	})

	ctx := context.Background()

	entries, hasMore, err := c.Audit.Query(ctx, &AuditQueryOptions{Model: "company", Limit: 5})
	if err != nil {
		t.Fatalf("Query error: %v", err)
	}
	if len(entries) != 1 || !hasMore {
		t.Errorf("Query: got %d entries, hasMore=%v", len(entries), hasMore)
	}
	if gotQuery != "limit=5&model=company" {
		t.Errorf("query = %q", gotQuery)
	}

	n, err := c.Audit.Purge(ctx, 30)
	if err != nil || n != 7 {
		t.Fatalf("Purge: err=%v, n=%d", err, n)
	}
	if gotPurge != "30" {
		t.Errorf("retention_days = %q, want 30", gotPurge)
	}
}

func TestDeleted(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/admin/deleted": func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("model") != "contact" {
				jsonResponse(w, 400, map[string]string{"code": "invalid_request", "message": "bad model"})
				return
			}
			jsonResponse(w, 200, DeletedList{Success: true, Data: []DeletedRecord{{Model: "contact", ID: "k1"}}})
		},
		"POST /api/v1/admin/deleted/contact/k1/restore": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, map[string]any{"success": true, "message": "restored", "data": Record{"id": "k1"}})
		},
		"DELETE /api/v1/admin/deleted/contact/k1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 200, DeleteResult{Success: true, Message: "purged"})
		},
	})

	ctx := context.Background()

	list, err := c.Deleted.List(ctx, &DeletedListOptions{Model: "contact"})
	if err != nil || len(list.Data) != 1 {
		t.Fatalf("List: err=%v, list=%+v", err, list)
	}

	rec, err := c.Deleted.Restore(ctx, "contact", "k1")
	if err != nil || rec.ID() != "k1" {
		t.Fatalf("Restore: err=%v, rec=%v", err, rec)
	}

	res, err := c.Deleted.HardDelete(ctx, "contact", "k1")
	if err != nil || !res.Success {
		t.Fatalf("HardDelete: err=%v, res=%+v", err, res)
	}
}

func TestAPIError(t *testing.T) {
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/contacts/missing": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 404, map[string]string{"code": "not_found", "message": "record not found", "request_id": "r1"})
		},
		"POST /api/v1/contacts": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 400, map[string]string{"code": "validation_error", "message": "email: invalid"})
		},
		"PUT /api/v1/contacts/k1": func(w http.ResponseWriter, _ *http.Request) {
			jsonResponse(w, 409, map[string]string{"code": "no_changes", "message": "no changes"})
		},
		"GET /api/v1/contacts": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("slow down")) //nolint:errcheck
		},
	})

	ctx := context.Background()
	contacts := c.Entity("contacts")

	_, err := contacts.Get(ctx, "missing", nil)
	if !IsNotFound(err) {
		t.Errorf("expected not found, got: %v", err)
	}
	if want := "opsapi: 404 not_found: record not found (request_id=r1)"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	_, err = contacts.Create(ctx, Record{"email": "nope"})
	if !IsValidation(err) {
		t.Errorf("expected validation error, got: %v", err)
	}

	_, err = contacts.Update(ctx, "k1", Record{})
	if !IsConflict(err) {
		t.Errorf("expected conflict, got: %v", err)
	}

	_, err = contacts.List(ctx, nil)
	if !IsRateLimited(err) {
		t.Errorf("expected rate limited, got: %v", err)
	}
	var apiErr *APIError
	if ok := asAPIError(err, &apiErr); !ok || apiErr.Code != "unknown" || apiErr.Message != "slow down" {
		t.Errorf("fallback error = %+v", apiErr)
	}
}

func asAPIError(err error, target **APIError) bool {
	e, ok := err.(*APIError)
	if ok {
		*target = e
	}
	return ok
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	_, c := newTestServer(t, map[string]http.HandlerFunc{
		"GET /api/v1/health": func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			jsonResponse(w, 200, HealthResponse{Status: "ok"})
		},
	})

	c.Health(context.Background()) //nolint:errcheck
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth header: got %q, want %q", gotAuth, "Bearer test-token")
	}
}
