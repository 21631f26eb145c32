package dto

import (
	"time"

	"shucway/internal/core/types"
)

// OrderLineRequest is one line of a new purchase order.
type OrderLineRequest struct {
	ItemID    string         `json:"itemId" binding:"required"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	UnitPrice types.Money    `json:"unitPrice"`
}

// CreateOrderRequest creates a purchase order.
type CreateOrderRequest struct {
	Supplier string             `json:"supplier" binding:"required"`
	Comment  string             `json:"comment"`
	Lines    []OrderLineRequest `json:"lines" binding:"required"`
}

// TransitionOrderRequest moves an order to a new status.
type TransitionOrderRequest struct {
	Status string `json:"status" binding:"required"`
}

// CreateReceiptRequest opens a goods receipt for an order.
type CreateReceiptRequest struct {
	OrderID string `json:"orderId" binding:"required"`
	Comment string `json:"comment"`
}

// RecordReceiptLineRequest records a received delivery against an order
// line. ExpiresAt and Location identify the batch; a combination not seen
// before creates a new lot.
type RecordReceiptLineRequest struct {
	OrderLineID string         `json:"orderLineId" binding:"required"`
	Quantity    types.Quantity `json:"quantity" binding:"required"`
	UnitCost    types.Money    `json:"unitCost"`
	ExpiresAt   *time.Time     `json:"expiresAt,omitempty"`
	Location    string         `json:"location,omitempty"`
}
