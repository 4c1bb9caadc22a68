package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/coesco/opsapi/internal/api"
	"github.com/coesco/opsapi/internal/httputil"
	"github.com/coesco/opsapi/internal/models"
)

func entityRouter(svc api.EntityService, model string) *gin.Engine {
	r := gin.New()
	api.NewEntityHandler(svc, model, testLogger()).Register(r.Group("/companies"))

	return r
}

func decodeError(t *testing.T, body []byte) httputil.ErrorBody {
	t.Helper()

	var e httputil.ErrorBody
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	return e
}

func TestEntityList_ParsesQuery(t *testing.T) {
	t.Parallel()

	var got models.QueryParams
	svc := &mockEntityService{
		getAllFn: func(_ context.Context, model string, params models.QueryParams) (*models.ListResult, error) {
			if model != "company" {
				t.Errorf("model = %q, want company", model)
			}
			got = params

			return &models.ListResult{Success: true, Data: []models.Record{{"id": "c1"}}, Meta: models.ListMeta{Page: 2, Limit: 10, Total: 11, TotalPages: 2}}, nil
		},
	}

	path := `/companies?page=2&limit=10&sort=name&order=DESC&search=acme&fuzzy=true` +
		`&filter=%7B%22active%22%3Atrue%7D&include=contacts,journeys&select=%5B%22name%22%5D` +
		`&includeDeleted=only&dateFrom=2026-01-01&dateTo=2026-02-01T00:00:00Z`

	w := doRequest(entityRouter(svc, "company"), http.MethodGet, path, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if got.Page != 2 || got.Limit != 10 || got.Sort != "name" || got.Order != models.OrderDesc {
		t.Errorf("paging = %+v", got)
	}

	if got.Search != "acme" || !got.Fuzzy {
		t.Errorf("search = %q fuzzy = %v", got.Search, got.Fuzzy)
	}

	if string(got.Filter) != `{"active":true}` {
		t.Errorf("filter = %s", got.Filter)
	}

	if fmt.Sprint(got.Include) != "[contacts journeys]" || fmt.Sprint(got.Select) != "[name]" {
		t.Errorf("include = %v select = %v", got.Include, got.Select)
	}

	if got.IncludeDeleted != models.OnlyDeleted {
		t.Errorf("includeDeleted = %v", got.IncludeDeleted)
	}

	if got.DateFrom == nil || got.DateFrom.Format("2006-01-02") != "2026-01-01" || got.DateTo == nil {
		t.Errorf("dates = %v %v", got.DateFrom, got.DateTo)
	}

	var res models.ListResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if res.Meta.TotalPages != 2 || len(res.Data) != 1 {
		t.Errorf("response = %+v", res)
	}
}

func TestEntityList_RejectsBadQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
	}{
		{"negative page", "page=-1"},
		{"non-numeric limit", "limit=ten"},
		{"bad order", "order=sideways"},
		{"bad fuzzy", "fuzzy=maybe"},
		{"filter not object", "filter=%5B1%5D"},
		{"filter not json", "filter=name"},
		{"include bad json", "include=%5Bcontacts"},
		{"includeDeleted bad", "includeDeleted=sometimes"},
		{"bad date", "dateFrom=yesterday"},
	}

	svc := &mockEntityService{
		getAllFn: func(context.Context, string, models.QueryParams) (*models.ListResult, error) {
			t.Error("service must not be called")
			return nil, nil
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(entityRouter(svc, "company"), http.MethodGet, "/companies?"+tc.query, "")
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}

			if e := decodeError(t, w.Body.Bytes()); e.Code != httputil.CodeInvalidRequest {
				t.Errorf("code = %q, want invalid_request", e.Code)
			}
		})
	}
}

func TestEntityHandler_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"get not found", http.MethodGet, "/companies/c1", "", models.ErrNotFound, http.StatusNotFound, httputil.CodeNotFound},
		{"update no changes", http.MethodPut, "/companies/c1", `{"name":"Same"}`, models.ErrNoChanges, http.StatusConflict, httputil.CodeNoChanges},
		{"create invalid", http.MethodPost, "/companies", `{"name":""}`, models.ErrFieldRequired("name"), http.StatusBadRequest, httputil.CodeValidationError},
		{"create duplicate", http.MethodPost, "/companies", `{"name":"Acme"}`, models.ErrDuplicateKey, http.StatusConflict, httputil.CodeConflict},
		{"list candidate cap", http.MethodGet, "/companies?search=x&fuzzy=true", "", models.ErrCandidateLimit, http.StatusUnprocessableEntity, httputil.CodeCandidateLimit},
		{"delete internal", http.MethodDelete, "/companies/c1", "", fmt.Errorf("pool closed"), http.StatusInternalServerError, httputil.CodeInternalError},
		{"history unknown field", http.MethodGet, "/companies/c1/history", "", models.ErrUnknownField, http.StatusBadRequest, httputil.CodeInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockEntityService{
				getAllFn: func(context.Context, string, models.QueryParams) (*models.ListResult, error) { return nil, tc.err },
				getByIDFn: func(context.Context, string, string, models.QueryParams) (*models.RecordResult, error) {
					return nil, tc.err
				},
				createFn: func(context.Context, string, models.Record) (*models.RecordResult, error) { return nil, tc.err },
				updateFn: func(context.Context, string, string, models.Record) (*models.RecordResult, error) {
					return nil, tc.err
				},
				deleteFn:     func(context.Context, string, string) (*models.DeleteResult, error) { return nil, tc.err },
				getHistoryFn: func(context.Context, string, string) ([]models.HistoryEntry, error) { return nil, tc.err },
			}

			w := doRequest(entityRouter(svc, "company"), tc.method, tc.path, tc.body)
			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, w.Code, w.Body.String())
			}

			e := decodeError(t, w.Body.Bytes())
			if e.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", e.Code, tc.wantCode)
			}

			if tc.wantCode == httputil.CodeInternalError && e.Message != "internal server error" {
				t.Errorf("internal message leaked: %q", e.Message)
			}
		})
	}
}

func TestEntityCreate_Returns201(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		createFn: func(_ context.Context, _ string, data models.Record) (*models.RecordResult, error) {
			rec := data.Clone()
			rec["id"] = "c9"

			return &models.RecordResult{Success: true, Data: rec}, nil
		},
	}

	w := doRequest(entityRouter(svc, "company"), http.MethodPost, "/companies", `{"name":"Acme"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var res models.RecordResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if res.Data.ID() != "c9" || res.Data["name"] != "Acme" {
		t.Errorf("data = %v", res.Data)
	}
}

func TestEntityCreate_RejectsNonObjectBody(t *testing.T) {
	t.Parallel()

	for _, body := range []string{`[1,2]`, `"name"`, `{bad`} {
		w := doRequest(entityRouter(&mockEntityService{}, "company"), http.MethodPost, "/companies", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %s: expected 400, got %d", body, w.Code)
		}
	}
}

func TestEntityHistory_EmptyIsArray(t *testing.T) {
	t.Parallel()

	svc := &mockEntityService{
		getHistoryFn: func(context.Context, string, string) ([]models.HistoryEntry, error) { return nil, nil },
	}

	w := doRequest(entityRouter(svc, "company"), http.MethodGet, "/companies/c1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if got := w.Body.String(); got != `{"data":[],"success":true}` {
		t.Errorf("body = %s", got)
	}
}
