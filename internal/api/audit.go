package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/httputil"
	"github.com/coesco/opsapi/internal/models"
)

const (
	defaultAuditLimit     = 50
	defaultAuditRetention = 90
)

// AuditHandler serves audit log administration.
type AuditHandler struct {
	svc AuditService
	log *logrus.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(svc AuditService, log *logrus.Logger) *AuditHandler {
	return &AuditHandler{svc: svc, log: log}
}

// Query handles GET /api/v1/admin/audit.
func (h *AuditHandler) Query(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		respondServiceError(c, h.log, "audit.query", err)
		return
	}

	offset, err := queryInt(c, "offset")
	if err != nil {
		respondServiceError(c, h.log, "audit.query", err)
		return
	}

	since, err := parseTime("since", c.Query("since"))
	if err != nil {
		respondServiceError(c, h.log, "audit.query", err)
		return
	}

	opts := models.AuditQueryOpts{
		Model:     c.Query("model"),
		RecordID:  c.Query("record_id"),
		Action:    c.Query("action"),
		ChangedBy: c.Query("changed_by"),
		Since:     since,
		Limit:     clampLimit(limit, defaultAuditLimit),
		Offset:    min(offset, maxPaginationOffset),
	}

	entries, hasMore, err := h.svc.QueryAudit(c.Request.Context(), opts)
	if err != nil {
		respondServiceError(c, h.log, "audit.query", err)
		return
	}

	if entries == nil {
		entries = []models.AuditEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     entries,
		"has_more": hasMore,
	})
}

// Purge handles DELETE /api/v1/admin/audit.
func (h *AuditHandler) Purge(c *gin.Context) {
	retentionDays := defaultAuditRetention
	if rd := c.Query("retention_days"); rd != "" {
		v, err := strconv.Atoi(rd)
		if err != nil || v < 1 {
			respondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "retention_days must be a positive integer")
			return
		}
		retentionDays = v
	}

	deleted, err := h.svc.PurgeOldEntries(c.Request.Context(), retentionDays)
	if err != nil {
		respondServiceError(c, h.log, "audit.purge", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted":        deleted,
		"retention_days": retentionDays,
	})
}
