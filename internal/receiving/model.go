// Package receiving provides purchase-order and goods-receipt
// reconciliation: it translates receipts into ledger movements and keeps
// order state consistent.
package receiving

import (
	"context"
	"time"

	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
)

// OrderStatus represents the status of a purchase order.
type OrderStatus string

const (
	StatusPendiente OrderStatus = "pendiente"
	StatusAprobada  OrderStatus = "aprobada"
	StatusRecibida  OrderStatus = "recibida"
	StatusCancelada OrderStatus = "cancelada"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusRecibida || s == StatusCancelada
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusPendiente, StatusAprobada, StatusRecibida, StatusCancelada:
		return OrderStatus(s), nil
	}
	return "", apperror.NewValidation("unknown order status").WithDetail("status", s)
}

// PurchaseOrder is an order placed with a supplier (orden de compra).
type PurchaseOrder struct {
	entity.Document

	Supplier string      `db:"supplier" json:"supplier"`
	Status   OrderStatus `db:"status" json:"status"`

	Lines []OrderLine `db:"-" json:"lines"`
}

// OrderLine is a line of a purchase order with its running received
// quantity (cantidad recibida).
type OrderLine struct {
	LineID  id.ID `db:"line_id" json:"lineId"`
	OrderID id.ID `db:"order_id" json:"orderId"`
	LineNo  int   `db:"line_no" json:"lineNo"`
	ItemID  id.ID `db:"item_id" json:"itemId"`

	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	UnitPrice        types.Money    `db:"unit_price" json:"unitPrice"`
	ReceivedQuantity types.Quantity `db:"received_quantity" json:"receivedQuantity"`
}

// NewPurchaseOrder creates a pending order.
func NewPurchaseOrder(supplier string) *PurchaseOrder {
	return &PurchaseOrder{
		Document: entity.NewDocument(),
		Supplier: supplier,
		Status:   StatusPendiente,
		Lines:    make([]OrderLine, 0),
	}
}

// AddLine adds a line to the order.
func (o *PurchaseOrder) AddLine(itemID id.ID, quantity types.Quantity, unitPrice types.Money) *OrderLine {
	line := OrderLine{
		LineID:    id.New(),
		OrderID:   o.ID,
		LineNo:    len(o.Lines) + 1,
		ItemID:    itemID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
	}
	o.Lines = append(o.Lines, line)
	return &o.Lines[len(o.Lines)-1]
}

// Validate implements entity.Validatable.
func (o *PurchaseOrder) Validate(ctx context.Context) error {
	if o.Supplier == "" {
		return apperror.NewValidation("supplier is required").
			WithDetail("field", "supplier")
	}
	if len(o.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	for i, line := range o.Lines {
		if id.IsNil(line.ItemID) {
			return apperror.NewValidation("item is required").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("field", "lines").
				WithDetail("lineNo", i+1)
		}
	}
	return nil
}

// CanTransition checks the status machine without side conditions.
// The receipt-existence gates for recibida/cancelada live in the service.
func (o *PurchaseOrder) CanTransition(target OrderStatus) bool {
	switch target {
	case StatusAprobada:
		return o.Status == StatusPendiente
	case StatusRecibida, StatusCancelada:
		return !o.Status.IsTerminal()
	default:
		return false
	}
}

// GoodsReceipt records physically receiving ordered supplies
// (recepción de mercadería).
type GoodsReceipt struct {
	entity.Document

	OrderID id.ID `db:"order_id" json:"orderId"`

	Lines []ReceiptLine `db:"-" json:"lines"`
}

// ReceiptLine links a received quantity to an order line and the lot it
// materialized or augmented.
type ReceiptLine struct {
	LineID      id.ID `db:"line_id" json:"lineId"`
	ReceiptID   id.ID `db:"receipt_id" json:"receiptId"`
	OrderLineID id.ID `db:"order_line_id" json:"orderLineId"`
	ItemID      id.ID `db:"item_id" json:"itemId"`

	Quantity types.Quantity `db:"quantity" json:"quantity"`
	UnitCost types.Money    `db:"unit_cost" json:"unitCost"`
	LotID    id.ID          `db:"lot_id" json:"lotId"`
}

// NewGoodsReceipt creates a receipt for an order.
func NewGoodsReceipt(orderID id.ID) *GoodsReceipt {
	return &GoodsReceipt{
		Document: entity.NewDocument(),
		OrderID:  orderID,
		Lines:    make([]ReceiptLine, 0),
	}
}

// Validate implements entity.Validatable.
func (g *GoodsReceipt) Validate(ctx context.Context) error {
	if id.IsNil(g.OrderID) {
		return apperror.NewValidation("order is required").
			WithDetail("field", "orderId")
	}
	return nil
}

// LotAttributes describes the batch a receipt line lands in. A line with
// attributes matching an existing lot augments it; otherwise a new lot is
// created.
type LotAttributes struct {
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Location  string     `json:"location,omitempty"`
}
