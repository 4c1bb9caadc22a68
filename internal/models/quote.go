package models

import (
	"strconv"
	"time"
)

// Quote statuses.
const (
	QuoteDraft    = "DRAFT"
	QuoteSent     = "SENT"
	QuoteAccepted = "ACCEPTED"
	QuoteRejected = "REJECTED"
)

// Quote is the typed view of a sales quote row.
type Quote struct {
	ID          string      `json:"id"`
	Number      int         `json:"number"`
	Revision    string      `json:"revision"`
	Status      string      `json:"status"`
	CompanyID   *string     `json:"companyId,omitempty"`
	JourneyID   *string     `json:"journeyId,omitempty"`
	OwnerID     *string     `json:"ownerId,omitempty"`
	QuoteNumber string      `json:"quoteNumber,omitempty"`
	CreatedByID *string     `json:"createdById,omitempty"`
	UpdatedByID *string     `json:"updatedById,omitempty"`
	DeletedByID *string     `json:"deletedById,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DeletedAt   *time.Time  `json:"deletedAt,omitempty"`
	Items       []QuoteItem `json:"items,omitempty"`
}

// QuoteItem is a line item on a quote.
type QuoteItem struct {
	ID          string     `json:"id"`
	QuoteID     string     `json:"quoteId"`
	ItemID      *string    `json:"itemId,omitempty"`
	Description string     `json:"description"`
	Quantity    float64    `json:"quantity"`
	UnitPrice   float64    `json:"unitPrice"`
	LineNumber  int        `json:"lineNumber"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`
}

// CreateQuoteRequest creates a quote together with its line items.
type CreateQuoteRequest struct {
	Quote Record   `json:"quote"`
	Items []Record `json:"items"`
}

// Validate checks required fields.
func (r *CreateQuoteRequest) Validate() error {
	if len(r.Quote) == 0 {
		return ErrFieldRequired("quote")
	}

	for i, item := range r.Items {
		if d, _ := item["description"].(string); d == "" {
			return ErrFieldRequired("items[" + strconv.Itoa(i) + "].description")
		}
	}

	return nil
}

