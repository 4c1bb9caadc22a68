package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/httputil"
	"github.com/coesco/opsapi/internal/models"
)

// QuoteHandler serves the quote endpoints that write line items too.
type QuoteHandler struct {
	svc QuoteService
	log *logrus.Logger
}

// NewQuoteHandler creates a QuoteHandler.
func NewQuoteHandler(svc QuoteService, log *logrus.Logger) *QuoteHandler {
	return &QuoteHandler{svc: svc, log: log}
}

// CreateWithItems handles POST /api/v1/quotes/with-items.
func (h *QuoteHandler) CreateWithItems(c *gin.Context) {
	var req models.CreateQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "invalid request body")
		return
	}

	res, err := h.svc.CreateWithItems(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, h.log, "quote.create_with_items", err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// DeleteWithItems handles DELETE /api/v1/quotes/:id/with-items.
func (h *QuoteHandler) DeleteWithItems(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	res, err := h.svc.DeleteWithItems(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, h.log, "quote.delete_with_items", err)
		return
	}

	c.JSON(http.StatusOK, res)
}
