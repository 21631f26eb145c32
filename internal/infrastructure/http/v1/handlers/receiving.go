package handlers

import (
	"github.com/gin-gonic/gin"

	"shucway/internal/core/apperror"
	"shucway/internal/core/id"
	"shucway/internal/infrastructure/http/v1/dto"
	"shucway/internal/receiving"
)

// ReceivingHandler handles purchase order and goods receipt requests.
type ReceivingHandler struct {
	*BaseHandler
	service *receiving.Service
}

// NewReceivingHandler creates a new receiving handler.
func NewReceivingHandler(base *BaseHandler, service *receiving.Service) *ReceivingHandler {
	return &ReceivingHandler{BaseHandler: base, service: service}
}

// CreateOrder handles POST /orders.
func (h *ReceivingHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	order := receiving.NewPurchaseOrder(req.Supplier)
	order.Comment = req.Comment
	for _, line := range req.Lines {
		itemID, err := id.Parse(line.ItemID)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid item id").WithDetail("itemId", line.ItemID))
			return
		}
		order.AddLine(itemID, line.Quantity, line.UnitPrice)
	}

	if err := h.service.CreateOrder(c.Request.Context(), order); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// GetOrder handles GET /orders/:id.
func (h *ReceivingHandler) GetOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	order, err := h.service.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, order)
}

// TransitionOrder handles POST /orders/:id/transition.
func (h *ReceivingHandler) TransitionOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.TransitionOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}
	target, err := receiving.ParseOrderStatus(req.Status)
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.service.TransitionOrderStatus(c.Request.Context(), orderID, target); err != nil {
		h.Error(c, err)
		return
	}
	h.Success(c, "order transitioned to "+req.Status)
}

// DeleteOrder handles DELETE /orders/:id. Removes the order with all its
// receipts and their movements.
func (h *ReceivingHandler) DeleteOrder(c *gin.Context) {
	orderID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(c.Request.Context(), orderID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// CreateReceipt handles POST /receipts.
func (h *ReceivingHandler) CreateReceipt(c *gin.Context) {
	var req dto.CreateReceiptRequest
	if !h.BindJSON(c, &req) {
		return
	}
	orderID, err := id.Parse(req.OrderID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid order id").WithDetail("orderId", req.OrderID))
		return
	}

	receipt, err := h.service.CreateReceipt(c.Request.Context(), orderID, req.Comment)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, receipt)
}

// GetReceipt handles GET /receipts/:id.
func (h *ReceivingHandler) GetReceipt(c *gin.Context) {
	receiptID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	receipt, err := h.service.GetReceipt(c.Request.Context(), receiptID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, receipt)
}

// RecordLine handles POST /receipts/:id/lines. Retrying the same order
// line on the same receipt replays the stored line without moving stock
// again.
func (h *ReceivingHandler) RecordLine(c *gin.Context) {
	receiptID, ok := h.ParseID(c, "id")
	if !ok {
		return
	}

	var req dto.RecordReceiptLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	orderLineID, err := id.Parse(req.OrderLineID)
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid order line id").WithDetail("orderLineId", req.OrderLineID))
		return
	}

	line, err := h.service.RecordReceiptLine(c.Request.Context(), receiving.RecordReceiptLineInput{
		ReceiptID:   receiptID,
		OrderLineID: orderLineID,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		Lot: receiving.LotAttributes{
			ExpiresAt: req.ExpiresAt,
			Location:  req.Location,
		},
	})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, line)
}

// RegisterOrderRoutes registers purchase order routes.
func (h *ReceivingHandler) RegisterOrderRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateOrder)
	rg.GET("/:id", h.GetOrder)
	rg.POST("/:id/transition", h.TransitionOrder)
	rg.DELETE("/:id", h.DeleteOrder)
}

// RegisterReceiptRoutes registers goods receipt routes.
func (h *ReceivingHandler) RegisterReceiptRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.CreateReceipt)
	rg.GET("/:id", h.GetReceipt)
	rg.POST("/:id/lines", h.RecordLine)
}
