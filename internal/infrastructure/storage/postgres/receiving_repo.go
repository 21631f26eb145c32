package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
	"shucway/internal/receiving"
)

// Compile-time check.
var _ receiving.Repository = (*ReceivingRepo)(nil)

var orderColumns = []string{
	"id", "version", "created_at", "updated_at", "created_by", "updated_by",
	"number", "date", "comment", "supplier", "status",
}

var orderLineColumns = []string{
	"line_id", "order_id", "line_no", "item_id",
	"quantity", "unit_price", "received_quantity",
}

var receiptColumns = []string{
	"id", "version", "created_at", "updated_at", "created_by", "updated_by",
	"number", "date", "comment", "order_id",
}

var receiptLineColumns = []string{
	"line_id", "receipt_id", "order_line_id", "item_id",
	"quantity", "unit_cost", "lot_id",
}

// ReceivingRepo implements receiving.Repository.
type ReceivingRepo struct {
	txManager *TxManager
}

// NewReceivingRepo creates a receiving repository.
func NewReceivingRepo(txManager *TxManager) *ReceivingRepo {
	return &ReceivingRepo{txManager: txManager}
}

// --- Purchase orders ---

func (r *ReceivingRepo) CreateOrder(ctx context.Context, order *receiving.PurchaseOrder) error {
	q := qb.Insert(ordersTable).
		Columns(orderColumns...).
		Values(
			order.ID, order.Version, order.CreatedAt, order.UpdatedAt,
			order.CreatedBy, order.UpdatedBy,
			order.Number, order.Date, order.Comment, order.Supplier, order.Status,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	if len(order.Lines) == 0 {
		return nil
	}
	lq := qb.Insert(orderLinesTable).Columns(orderLineColumns...)
	for _, line := range order.Lines {
		lq = lq.Values(
			line.LineID, order.ID, line.LineNo, line.ItemID,
			line.Quantity, line.UnitPrice, line.ReceivedQuantity,
		)
	}
	sql, args, err = lq.ToSql()
	if err != nil {
		return fmt.Errorf("build insert lines: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert order lines: %w", err)
	}
	return nil
}

func (r *ReceivingRepo) GetOrder(ctx context.Context, orderID id.ID) (*receiving.PurchaseOrder, error) {
	q := qb.Select(orderColumns...).
		From(ordersTable).
		Where(squirrel.Eq{"id": orderID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var order receiving.PurchaseOrder
	if err := pgxscan.Get(ctx, querier, &order, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("purchase_order", orderID.String())
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	lq := qb.Select(orderLineColumns...).
		From(orderLinesTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("line_no")
	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &order.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	return &order, nil
}

func (r *ReceivingRepo) UpdateOrderStatus(ctx context.Context, orderID id.ID, status receiving.OrderStatus) error {
	q := qb.Update(ordersTable).
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": orderID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase_order", orderID.String())
	}
	return nil
}

func (r *ReceivingRepo) DeleteOrder(ctx context.Context, orderID id.ID) error {
	sql := "DELETE FROM " + ordersTable + " WHERE id = $1"
	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, orderID)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase_order", orderID.String())
	}
	return nil
}

func (r *ReceivingRepo) GetOrderLine(ctx context.Context, lineID id.ID) (*receiving.OrderLine, error) {
	q := qb.Select(orderLineColumns...).
		From(orderLinesTable).
		Where(squirrel.Eq{"line_id": lineID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line receiving.OrderLine
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("order_line", lineID.String())
		}
		return nil, fmt.Errorf("get order line: %w", err)
	}
	return &line, nil
}

func (r *ReceivingRepo) UpdateOrderLineReceived(ctx context.Context, lineID id.ID, received types.Quantity) error {
	q := qb.Update(orderLinesTable).
		Set("received_quantity", received).
		Where(squirrel.Eq{"line_id": lineID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update received quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("order_line", lineID.String())
	}
	return nil
}

func (r *ReceivingRepo) DeleteOrderLines(ctx context.Context, orderID id.ID) error {
	sql := "DELETE FROM " + orderLinesTable + " WHERE order_id = $1"
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, orderID); err != nil {
		return fmt.Errorf("delete order lines: %w", err)
	}
	return nil
}

// --- Goods receipts ---

func (r *ReceivingRepo) CreateReceipt(ctx context.Context, receipt *receiving.GoodsReceipt) error {
	q := qb.Insert(receiptsTable).
		Columns(receiptColumns...).
		Values(
			receipt.ID, receipt.Version, receipt.CreatedAt, receipt.UpdatedAt,
			receipt.CreatedBy, receipt.UpdatedBy,
			receipt.Number, receipt.Date, receipt.Comment, receipt.OrderID,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}
	return nil
}

func (r *ReceivingRepo) GetReceipt(ctx context.Context, receiptID id.ID) (*receiving.GoodsReceipt, error) {
	q := qb.Select(receiptColumns...).
		From(receiptsTable).
		Where(squirrel.Eq{"id": receiptID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var receipt receiving.GoodsReceipt
	if err := pgxscan.Get(ctx, querier, &receipt, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("goods_receipt", receiptID.String())
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	lq := qb.Select(receiptLineColumns...).
		From(receiptLinesTable).
		Where(squirrel.Eq{"receipt_id": receiptID}).
		OrderBy("line_id")
	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &receipt.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get receipt lines: %w", err)
	}
	return &receipt, nil
}

func (r *ReceivingRepo) ListReceiptsByOrder(ctx context.Context, orderID id.ID) ([]*receiving.GoodsReceipt, error) {
	q := qb.Select(receiptColumns...).
		From(receiptsTable).
		Where(squirrel.Eq{"order_id": orderID}).
		OrderBy("created_at")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var receipts []*receiving.GoodsReceipt
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &receipts, sql, args...); err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	return receipts, nil
}

func (r *ReceivingRepo) DeleteReceipt(ctx context.Context, receiptID id.ID) error {
	sql := "DELETE FROM " + receiptsTable + " WHERE id = $1"
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, receiptID); err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	return nil
}

func (r *ReceivingRepo) CreateReceiptLine(ctx context.Context, line *receiving.ReceiptLine) error {
	q := qb.Insert(receiptLinesTable).
		Columns(receiptLineColumns...).
		Values(
			line.LineID, line.ReceiptID, line.OrderLineID, line.ItemID,
			line.Quantity, line.UnitCost, line.LotID,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert receipt line: %w", err)
	}
	return nil
}

func (r *ReceivingRepo) GetReceiptLineByOrderLine(ctx context.Context, receiptID, orderLineID id.ID) (*receiving.ReceiptLine, error) {
	q := qb.Select(receiptLineColumns...).
		From(receiptLinesTable).
		Where(squirrel.Eq{"receipt_id": receiptID, "order_line_id": orderLineID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line receiving.ReceiptLine
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("receipt_line", orderLineID.String())
		}
		return nil, fmt.Errorf("get receipt line: %w", err)
	}
	return &line, nil
}

func (r *ReceivingRepo) CountReceiptLinesByOrder(ctx context.Context, orderID id.ID) (int, error) {
	sql := `
		SELECT COUNT(*)
		FROM ` + receiptLinesTable + ` rl
		JOIN ` + receiptsTable + ` r ON r.id = rl.receipt_id
		WHERE r.order_id = $1
	`
	var count int
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, orderID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count receipt lines: %w", err)
	}
	return count, nil
}

func (r *ReceivingRepo) DeleteReceiptLines(ctx context.Context, receiptID id.ID) error {
	sql := "DELETE FROM " + receiptLinesTable + " WHERE receipt_id = $1"
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, receiptID); err != nil {
		return fmt.Errorf("delete receipt lines: %w", err)
	}
	return nil
}

func (r *ReceivingRepo) DeleteResidualReceiptLines(ctx context.Context, orderID id.ID) error {
	sql := `
		DELETE FROM ` + receiptLinesTable + `
		WHERE order_line_id IN (
			SELECT line_id FROM ` + orderLinesTable + ` WHERE order_id = $1
		)
	`
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, orderID); err != nil {
		return fmt.Errorf("delete residual receipt lines: %w", err)
	}
	return nil
}

// --- Lots ---

func (r *ReceivingRepo) FindLotByAttributes(ctx context.Context, itemID id.ID, expiresAt *time.Time, location string) (*entity.Lot, error) {
	q := qb.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"item_id": itemID, "location": location})
	if expiresAt == nil {
		q = q.Where(squirrel.Eq{"expires_at": nil})
	} else {
		q = q.Where(squirrel.Eq{"expires_at": *expiresAt})
	}
	q = q.OrderBy("id DESC").Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot entity.Lot
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", itemID.String())
		}
		return nil, fmt.Errorf("find lot: %w", err)
	}
	return &lot, nil
}

func (r *ReceivingRepo) CreateLot(ctx context.Context, lot *entity.Lot) error {
	q := qb.Insert(lotsTable).
		Columns(lotColumns...).
		Values(
			lot.ID, lot.Version, lot.ItemID,
			lot.InitialQuantity, lot.CurrentQuantity,
			lot.UnitCost, lot.ExpiresAt, lot.Location, lot.CreatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// --- Movements ---

func (r *ReceivingRepo) DeleteMovementsByReference(ctx context.Context, kind entity.ReferenceKind, refID string) error {
	sql := "DELETE FROM " + movementsTable + " WHERE ref_kind = $1 AND ref_id = $2"
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, kind, refID); err != nil {
		return fmt.Errorf("delete movements by reference: %w", err)
	}
	return nil
}
