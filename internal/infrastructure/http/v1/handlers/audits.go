package handlers

import (
	"github.com/gin-gonic/gin"

	"shucway/internal/audits"
	"shucway/internal/core/apperror"
	"shucway/internal/core/id"
	"shucway/internal/infrastructure/http/v1/dto"
)

// AuditsHandler handles physical-count audit requests.
type AuditsHandler struct {
	*BaseHandler
	service *audits.Service
}

// NewAuditsHandler creates a new audits handler.
func NewAuditsHandler(base *BaseHandler, service *audits.Service) *AuditsHandler {
	return &AuditsHandler{BaseHandler: base, service: service}
}

// Start handles POST /audits. Snapshots expected stock for every active
// item at open time.
func (h *AuditsHandler) Start(c *gin.Context) {
	var req dto.StartAuditRequest
	if !h.BindJSON(c, &req) {
		return
	}

	audit, err := h.service.StartAudit(c.Request.Context(), req.Label, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, audit)
}

// Get handles GET /audits/:id.
func (h *AuditsHandler) Get(c *gin.Context) {
	auditID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	audit, err := h.service.GetAudit(c.Request.Context(), auditID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, audit)
}

// RecordCount handles POST /audits/:id/counts.
func (h *AuditsHandler) RecordCount(c *gin.Context) {
	auditID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.RecordCountRequest
	if !h.BindJSON(c, &req) {
		return
	}
	itemID, err := id.Parse(req.ItemID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid item id").WithDetail("itemId", req.ItemID))
		return
	}

	line, err := h.service.RecordCount(c.Request.Context(), auditID, itemID, req.Counted, req.CauseCode, req.Notes)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, line)
}

// Complete handles POST /audits/:id/complete. Applies adjustment
// movements for every justified difference and closes the audit.
func (h *AuditsHandler) Complete(c *gin.Context) {
	auditID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	audit, err := h.service.CompleteAudit(c.Request.Context(), auditID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, audit)
}

// Cancel handles POST /audits/:id/cancel.
func (h *AuditsHandler) Cancel(c *gin.Context) {
	auditID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.CancelAudit(c.Request.Context(), auditID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "audit cancelled")
}

// RegisterRoutes registers audit routes.
func (h *AuditsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Start)
	rg.GET("/:id", h.Get)
	rg.POST("/:id/counts", h.RecordCount)
	rg.POST("/:id/complete", h.Complete)
	rg.POST("/:id/cancel", h.Cancel)
}
