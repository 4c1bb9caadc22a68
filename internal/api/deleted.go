package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/httputil"
	"github.com/coesco/opsapi/internal/models"
)

const defaultDeletedLimit = 25

// DeletedHandler serves soft-deleted record administration.
type DeletedHandler struct {
	svc DeletedRecordsService
	log *logrus.Logger
}

// NewDeletedHandler creates a DeletedHandler.
func NewDeletedHandler(svc DeletedRecordsService, log *logrus.Logger) *DeletedHandler {
	return &DeletedHandler{svc: svc, log: log}
}

// List handles GET /api/v1/admin/deleted.
func (h *DeletedHandler) List(c *gin.Context) {
	page, err := queryInt(c, "page")
	if err != nil {
		respondServiceError(c, h.log, "deleted.list", err)
		return
	}

	limit, err := queryInt(c, "limit")
	if err != nil {
		respondServiceError(c, h.log, "deleted.list", err)
		return
	}

	res, err := h.svc.List(c.Request.Context(), models.DeletedQueryOpts{
		Model: c.Query("model"),
		Page:  max(page, 1),
		Limit: clampLimit(limit, defaultDeletedLimit),
	})
	if err != nil {
		respondServiceError(c, h.log, "deleted.list", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// modelAndID reads the :model and :id path parameters.
func modelAndID(c *gin.Context) (string, string, bool) {
	model := c.Param("model")
	if model == "" {
		respondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "model must not be empty")
		return "", "", false
	}

	id, ok := pathID(c)

	return model, id, ok
}

// Restore handles POST /api/v1/admin/deleted/:model/:id/restore.
func (h *DeletedHandler) Restore(c *gin.Context) {
	model, id, ok := modelAndID(c)
	if !ok {
		return
	}

	res, err := h.svc.Restore(c.Request.Context(), model, id)
	if err != nil {
		respondServiceError(c, h.log, "deleted.restore", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": models.RestoredMessage, "data": res.Data})
}

// HardDelete handles DELETE /api/v1/admin/deleted/:model/:id.
func (h *DeletedHandler) HardDelete(c *gin.Context) {
	model, id, ok := modelAndID(c)
	if !ok {
		return
	}

	res, err := h.svc.HardDelete(c.Request.Context(), model, id)
	if err != nil {
		respondServiceError(c, h.log, "deleted.hard_delete", err)
		return
	}

	c.JSON(http.StatusOK, res)
}
