package handlers

import (
	"github.com/gin-gonic/gin"

	"shucway/internal/catalog/supply"
	"shucway/internal/infrastructure/http/v1/dto"
	"shucway/internal/ledger"
)

// SupplyHandler handles supply item catalog requests.
type SupplyHandler struct {
	*BaseHandler
	items  *supply.Service
	ledger *ledger.Service
}

// NewSupplyHandler creates a new supply item handler.
func NewSupplyHandler(base *BaseHandler, items *supply.Service, ldg *ledger.Service) *SupplyHandler {
	return &SupplyHandler{BaseHandler: base, items: items, ledger: ldg}
}

// Create handles POST /catalog/supply-items.
func (h *SupplyHandler) Create(c *gin.Context) {
	var req dto.CreateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item := supply.NewItem(req.Name, req.Unit, req.Category)
	item.MinStock = req.MinStock
	item.MaxStock = req.MaxStock

	if err := h.items.Create(c.Request.Context(), item); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, item.ID.String())
}

// Get handles GET /catalog/supply-items/:id.
func (h *SupplyHandler) Get(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	item, err := h.items.GetByID(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// Update handles PUT /catalog/supply-items/:id.
func (h *SupplyHandler) Update(c *gin.Context) {
	ctx := c.Request.Context()
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateItemRequest
	if !h.BindJSON(c, &req) {
		return
	}

	item, err := h.items.GetByID(ctx, itemID)
	if err != nil {
		h.Error(c, err)
		return
	}

	item.Name = req.Name
	item.Unit = req.Unit
	item.Category = req.Category
	item.MinStock = req.MinStock
	item.MaxStock = req.MaxStock
	item.Version = req.Version

	if err := h.items.Update(ctx, item); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, item)
}

// List handles GET /catalog/supply-items.
func (h *SupplyHandler) List(c *gin.Context) {
	filter := supply.DefaultListFilter()
	filter.Search = c.Query("search")
	filter.Category = c.Query("category")
	filter.OnlyActive = c.Query("onlyActive") == "true"
	filter.OrderBy = c.DefaultQuery("orderBy", "name")
	filter.Limit = h.ParseIntQuery(c, "limit", 50)
	filter.Offset = h.ParseIntQuery(c, "offset", 0)

	result, err := h.items.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// Deactivate handles POST /catalog/supply-items/:id/deactivate.
func (h *SupplyHandler) Deactivate(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.items.Deactivate(c.Request.Context(), itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "item deactivated")
}

// Activate handles POST /catalog/supply-items/:id/activate.
func (h *SupplyHandler) Activate(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.items.Activate(c.Request.Context(), itemID); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "item activated")
}

// Stock handles GET /catalog/supply-items/:id/stock. Stock is always
// derived from lots, never stored on the item.
func (h *SupplyHandler) Stock(c *gin.Context) {
	itemID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	stock, err := h.ledger.GetItemStock(c.Request.Context(), itemID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.StockResponse{ItemID: itemID.String(), StockActual: stock})
}

// RegisterRoutes registers supply item routes.
func (h *SupplyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.POST("/:id/deactivate", h.Deactivate)
	rg.POST("/:id/activate", h.Activate)
	rg.GET("/:id/stock", h.Stock)
}
