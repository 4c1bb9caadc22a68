package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/coesco/opsapi/internal/httputil"
	"github.com/coesco/opsapi/internal/models"
)

// EntityRoute binds a model to the URL segment it is served under.
type EntityRoute struct {
	Path  string
	Model string
}

// EntityHandler serves the generic CRUD and history endpoints of one model.
type EntityHandler struct {
	svc   EntityService
	model string
	log   *logrus.Logger
}

// NewEntityHandler creates an EntityHandler for model.
func NewEntityHandler(svc EntityService, model string, log *logrus.Logger) *EntityHandler {
	return &EntityHandler{svc: svc, model: model, log: log}
}

// Register mounts the model's routes on g.
func (h *EntityHandler) Register(g *gin.RouterGroup) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
	g.GET("/:id/history", h.History)
}

// pathID reads and validates the :id parameter.
func pathID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := validatePathID(id); err != nil {
		respondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, err.Error())
		return "", false
	}

	return id, true
}

// bindRecord decodes a JSON object body.
func bindRecord(c *gin.Context) (models.Record, bool) {
	var data models.Record
	if err := json.NewDecoder(c.Request.Body).Decode(&data); err != nil || data == nil {
		respondError(c, http.StatusBadRequest, httputil.CodeInvalidRequest, "request body must be a JSON object")
		return nil, false
	}

	return data, true
}

// List handles GET /api/v1/<route>.
func (h *EntityHandler) List(c *gin.Context) {
	params, err := parseQueryParams(c)
	if err != nil {
		respondServiceError(c, h.log, h.model+".list", err)
		return
	}

	res, err := h.svc.GetAll(c.Request.Context(), h.model, params)
	if err != nil {
		respondServiceError(c, h.log, h.model+".list", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Get handles GET /api/v1/<route>/:id.
func (h *EntityHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	params, err := parseQueryParams(c)
	if err != nil {
		respondServiceError(c, h.log, h.model+".get", err)
		return
	}

	res, err := h.svc.GetByID(c.Request.Context(), h.model, id, params)
	if err != nil {
		respondServiceError(c, h.log, h.model+".get", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Create handles POST /api/v1/<route>.
func (h *EntityHandler) Create(c *gin.Context) {
	data, ok := bindRecord(c)
	if !ok {
		return
	}

	res, err := h.svc.Create(c.Request.Context(), h.model, data)
	if err != nil {
		respondServiceError(c, h.log, h.model+".create", err)
		return
	}

	c.JSON(http.StatusCreated, res)
}

// Update handles PUT /api/v1/<route>/:id.
func (h *EntityHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	data, ok := bindRecord(c)
	if !ok {
		return
	}

	res, err := h.svc.Update(c.Request.Context(), h.model, id, data)
	if err != nil {
		respondServiceError(c, h.log, h.model+".update", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /api/v1/<route>/:id.
func (h *EntityHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	res, err := h.svc.Delete(c.Request.Context(), h.model, id)
	if err != nil {
		respondServiceError(c, h.log, h.model+".delete", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// History handles GET /api/v1/<route>/:id/history.
func (h *EntityHandler) History(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	entries, err := h.svc.GetHistory(c.Request.Context(), h.model, id)
	if err != nil {
		respondServiceError(c, h.log, h.model+".history", err)
		return
	}

	if entries == nil {
		entries = []models.HistoryEntry{}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": entries})
}
