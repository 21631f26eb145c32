package handlers

import (
	"github.com/gin-gonic/gin"

	"shucway/internal/kardex"
)

// KardexHandler handles running-balance and turnover projections.
type KardexHandler struct {
	*BaseHandler
	service *kardex.Service
}

// NewKardexHandler creates a new kardex handler.
func NewKardexHandler(base *BaseHandler, service *kardex.Service) *KardexHandler {
	return &KardexHandler{BaseHandler: base, service: service}
}

// Ledger handles GET /kardex/:itemId. Optional from/to query parameters
// (RFC3339) bound the window; the balance column restarts from zero at
// the window start.
func (h *KardexHandler) Ledger(c *gin.Context) {
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}
	from, ok := h.ParseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := h.ParseTimeQuery(c, "to")
	if !ok {
		return
	}

	ledger, err := h.service.GetLedger(c.Request.Context(), itemID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, ledger)
}

// Turnover handles GET /kardex/:itemId/turnover.
func (h *KardexHandler) Turnover(c *gin.Context) {
	itemID, ok := h.ParseID(c, "itemId")
	if !ok {
		return
	}
	from, ok := h.ParseTimeQuery(c, "from")
	if !ok {
		return
	}
	to, ok := h.ParseTimeQuery(c, "to")
	if !ok {
		return
	}

	turnover, err := h.service.GetTurnover(c.Request.Context(), itemID, from, to)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, turnover)
}

// RegisterRoutes registers kardex routes.
func (h *KardexHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:itemId", h.Ledger)
	rg.GET("/:itemId/turnover", h.Turnover)
}
