package receiving

import (
	"context"
	"time"

	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
)

// Repository defines persistence for orders, receipts and their lines.
// Movement deletion is exact-match by typed reference; no free-text scans.
type Repository interface {
	// --- Purchase orders ---

	CreateOrder(ctx context.Context, order *PurchaseOrder) error
	GetOrder(ctx context.Context, orderID id.ID) (*PurchaseOrder, error)
	UpdateOrderStatus(ctx context.Context, orderID id.ID, status OrderStatus) error
	DeleteOrder(ctx context.Context, orderID id.ID) error

	GetOrderLine(ctx context.Context, lineID id.ID) (*OrderLine, error)
	UpdateOrderLineReceived(ctx context.Context, lineID id.ID, received types.Quantity) error
	DeleteOrderLines(ctx context.Context, orderID id.ID) error

	// --- Goods receipts ---

	CreateReceipt(ctx context.Context, receipt *GoodsReceipt) error
	GetReceipt(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error)
	ListReceiptsByOrder(ctx context.Context, orderID id.ID) ([]*GoodsReceipt, error)
	DeleteReceipt(ctx context.Context, receiptID id.ID) error

	CreateReceiptLine(ctx context.Context, line *ReceiptLine) error
	GetReceiptLineByOrderLine(ctx context.Context, receiptID, orderLineID id.ID) (*ReceiptLine, error)
	CountReceiptLinesByOrder(ctx context.Context, orderID id.ID) (int, error)
	DeleteReceiptLines(ctx context.Context, receiptID id.ID) error

	// DeleteResidualReceiptLines removes receipt lines that reference the
	// order's lines directly, covering receipts whose own cleanup
	// previously failed part way.
	DeleteResidualReceiptLines(ctx context.Context, orderID id.ID) error

	// --- Lots ---

	// FindLotByAttributes locates an existing lot of the item with the
	// same expiration and location. Returns NotFound when the attributes
	// describe a new batch.
	FindLotByAttributes(ctx context.Context, itemID id.ID, expiresAt *time.Time, location string) (*entity.Lot, error)
	CreateLot(ctx context.Context, lot *entity.Lot) error

	// --- Movements ---

	// DeleteMovementsByReference removes movements whose reference points
	// at the given record (all lines included).
	DeleteMovementsByReference(ctx context.Context, kind entity.ReferenceKind, refID string) error
}
