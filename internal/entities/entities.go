// Package entities declares the models served by the gateway: their
// routes, search fields, relations, computed fields and validation hooks.
package entities

import (
	"context"
	"fmt"
	"strings"

	"github.com/coesco/opsapi/internal/models"
	"github.com/coesco/opsapi/internal/store"
)

// Definition pairs a model with the REST route it is served under.
type Definition struct {
	Route string
	Model store.Model
}

// Definitions returns every model exposed over the API.
func Definitions() []Definition {
	return []Definition{
		{Route: "companies", Model: company()},
		{Route: "contacts", Model: contact()},
		{Route: "journeys", Model: journey()},
		{Route: "quotes", Model: quote()},
		{Route: "quote-items", Model: quoteItem()},
		{Route: "items", Model: item()},
		{Route: "product-classes", Model: productClass()},
		{Route: "option-rules", Model: optionRule()},
		{Route: "forms", Model: form()},
		{Route: "form-submissions", Model: formSubmission()},
		{Route: "email-logs", Model: emailLog()},
		{Route: "bug-reports", Model: bugReport()},
		{Route: "machine-statuses", Model: machineStatus()},
	}
}

// Register adds every definition to reg.
func Register(reg *store.Registry) error {
	for _, d := range Definitions() {
		if err := reg.Register(d.Model); err != nil {
			return fmt.Errorf("registering %s: %w", d.Model.Name, err)
		}
	}

	return nil
}

// Model names referenced across packages.
const (
	Company   = "company"
	Contact   = "contact"
	Quote     = "quote"
	QuoteItem = "quoteItem"
)

func company() store.Model {
	return store.Model{
		Name: Company,
		SearchFields: []store.SearchField{
			{Field: "name", Weight: 2},
			{Field: "website"},
			{Field: "status"},
		},
		Enums: []string{"status"},
		Relations: map[string]store.Relation{
			"contacts": store.HasMany(Contact, "companyId"),
			"journeys": store.HasMany("journey", "companyId"),
			"quotes":   store.HasMany(Quote, "companyId"),
		},
		DisplayFields: []string{"name"},
		Validate:      requireText("name", 200),
	}
}

func contact() store.Model {
	return store.Model{
		Name: Contact,
		SearchFields: []store.SearchField{
			{Field: "fullName"},
			{Field: "email"},
			{Field: "phone"},
		},
		Computed: map[string]store.ComputeFunc{
			"fullName": func(r models.Record) any {
				return joinText(r["firstName"], r["lastName"])
			},
		},
		Relations: map[string]store.Relation{
			"company": store.BelongsTo(Company, "companyId"),
		},
		DisplayFields: []string{"firstName", "lastName"},
		Validate:      validateContact,
	}
}

func journey() store.Model {
	return store.Model{
		Name: "journey",
		SearchFields: []store.SearchField{
			{Field: "name", Weight: 2},
			{Field: "stage"},
		},
		Enums: []string{"stage"},
		Relations: map[string]store.Relation{
			"company": store.BelongsTo(Company, "companyId"),
			"quotes":  store.HasMany(Quote, "journeyId"),
		},
		DisplayFields: []string{"name"},
		Validate:      requireText("name", 200),
	}
}

func quote() store.Model {
	return store.Model{
		Name: Quote,
		SearchFields: []store.SearchField{
			{Field: "quoteNumber"},
			{Field: "status"},
		},
		Enums: []string{"status"},
		Computed: map[string]store.ComputeFunc{
			"quoteNumber": QuoteNumber,
		},
		Relations: map[string]store.Relation{
			"company": store.BelongsTo(Company, "companyId"),
			"journey": store.BelongsTo("journey", "journeyId"),
			"items":   store.HasMany(QuoteItem, "quoteId"),
		},
		DefaultSort:   &store.SortKey{Field: "number", Desc: true},
		DisplayFields: []string{"year", "number"},
	}
}

// QuoteNumber formats a quote as YEAR-NUMBER with the revision letter
// appended after the first revision, e.g. 2026-01042 or 2026-01042B.
func QuoteNumber(r models.Record) any {
	year, ok1 := asInt(r["year"])
	number, ok2 := asInt(r["number"])

	if !ok1 || !ok2 {
		return nil
	}

	out := fmt.Sprintf("%d-%05d", year, number)
	if rev, _ := r["revision"].(string); rev != "" && rev != "A" {
		out += rev
	}

	return out
}

func quoteItem() store.Model {
	return store.Model{
		Name: QuoteItem,
		SearchFields: []store.SearchField{
			{Field: "description"},
		},
		Computed: map[string]store.ComputeFunc{
			"lineTotal": func(r models.Record) any {
				q, ok1 := asFloat(r["quantity"])
				p, ok2 := asFloat(r["unitPrice"])

				if !ok1 || !ok2 {
					return nil
				}

				return q * p
			},
		},
		Relations: map[string]store.Relation{
			"quote": store.BelongsTo(Quote, "quoteId"),
			"item":  store.BelongsTo("item", "itemId"),
		},
		DefaultSort:   &store.SortKey{Field: "lineNumber"},
		DisplayFields: []string{"description"},
		Validate:      requireText("description", 2000),
	}
}

func item() store.Model {
	return store.Model{
		Name: "item",
		SearchFields: []store.SearchField{
			{Field: "modelNumber", Weight: 3, Fuzzy: true},
			{Field: "name", Weight: 2, Fuzzy: true},
			{Field: "description", Fuzzy: true},
		},
		Relations: map[string]store.Relation{
			"productClass": store.BelongsTo("productClass", "productClassId"),
		},
		DisplayFields: []string{"modelNumber"},
		Validate:      requireText("modelNumber", 100),
	}
}

func productClass() store.Model {
	return store.Model{
		Name: "productClass",
		SearchFields: []store.SearchField{
			{Field: "code", Weight: 2},
			{Field: "name"},
		},
		Relations: map[string]store.Relation{
			"parent":   store.BelongsTo("productClass", "parentId"),
			"children": store.HasMany("productClass", "parentId"),
			"items":    store.HasMany("item", "productClassId"),
		},
		DefaultSort:   &store.SortKey{Field: "code"},
		DisplayFields: []string{"code", "name"},
	}
}

func optionRule() store.Model {
	return store.Model{
		Name:          "optionRule",
		SearchFields:  []store.SearchField{{Field: "name"}, {Field: "action"}},
		Enums:         []string{"action"},
		DefaultSort:   &store.SortKey{Field: "priority", Desc: true},
		DisplayFields: []string{"name"},
		Validate:      requireText("name", 200),
	}
}

func form() store.Model {
	return store.Model{
		Name:         "form",
		SearchFields: []store.SearchField{{Field: "name", Weight: 2}, {Field: "description"}},
		Enums:        []string{"status"},
		Relations: map[string]store.Relation{
			"submissions": store.HasMany("formSubmission", "formId"),
		},
		DisplayFields: []string{"name"},
	}
}

func formSubmission() store.Model {
	return store.Model{
		Name:  "formSubmission",
		Enums: []string{"status"},
		Relations: map[string]store.Relation{
			"form": store.BelongsTo("form", "formId"),
		},
		DisplayFields: []string{"id"},
	}
}

func emailLog() store.Model {
	return store.Model{
		Name:         "emailLog",
		SearchFields: []store.SearchField{{Field: "recipient"}, {Field: "subject"}},
	}
}

func bugReport() store.Model {
	return store.Model{
		Name:         "bugReport",
		SearchFields: []store.SearchField{{Field: "title"}},
		Enums:        []string{"status"},
		Validate:     requireText("title", 300),
	}
}

func machineStatus() store.Model {
	return store.Model{
		Name:  "machineStatus",
		Table: "machine_statuses",
		Enums: []string{"state"},
	}
}

// requireText returns a validation hook that requires field to be a
// non-empty string of at most maxLen characters.
func requireText(field string, maxLen int) store.ValidateFunc {
	return func(_ context.Context, data models.Record) error {
		s, _ := data[field].(string)
		if strings.TrimSpace(s) == "" {
			return models.ErrFieldRequired(field)
		}

		if len(s) > maxLen {
			return models.ErrFieldTooLong(field, maxLen)
		}

		return nil
	}
}

func validateContact(ctx context.Context, data models.Record) error {
	if err := requireText("firstName", 100)(ctx, data); err != nil {
		return err
	}

	if email, ok := data["email"].(string); ok && email != "" && !strings.Contains(email, "@") {
		return fmt.Errorf("%w: email %q is not an address", models.ErrValidation, email)
	}

	return nil
}

func joinText(vals ...any) string {
	parts := make([]string, 0, len(vals))

	for _, v := range vals {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}

	return strings.Join(parts, " ")
}

func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
