package receiving

import (
	"context"
	"fmt"

	"shucway/internal/core/appctx"
	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/tx"
	"shucway/internal/core/types"
	"shucway/internal/ledger"
	"shucway/pkg/logger"
	"shucway/pkg/numerator"
)

// Ledger is the slice of the ledger manager the receiving service uses.
type Ledger interface {
	ApplyMovement(ctx context.Context, in ledger.ApplyInput) (ledger.ApplySummary, error)
	HasReference(ctx context.Context, ref entity.Reference) (bool, error)
}

// CleanupRecorder persists the outcome of each deleteOrder cleanup step so
// partial failures stay observable. Implementations must not fail the
// deletion; errors are logged and swallowed.
type CleanupRecorder interface {
	RecordStep(ctx context.Context, orderID id.ID, step string, stepErr error, details map[string]any)
}

// Config tunes reconciliation behavior.
type Config struct {
	// Tolerance is the over-receipt slack in units. Zero means the
	// cumulative received quantity may never exceed the ordered quantity.
	Tolerance types.Quantity
}

// Service reconciles goods receipts against purchase orders.
type Service struct {
	repo      Repository
	ledger    Ledger
	txManager tx.Manager
	numerator *numerator.Service
	recorder  CleanupRecorder
	cfg       Config
}

// NewService creates the receiving service. recorder may be nil.
func NewService(repo Repository, ldg Ledger, txManager tx.Manager, num *numerator.Service, recorder CleanupRecorder, cfg Config) *Service {
	return &Service{
		repo:      repo,
		ledger:    ldg,
		txManager: txManager,
		numerator: num,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// CreateOrder validates and persists a new pending purchase order with an
// auto-generated number.
func (s *Service) CreateOrder(ctx context.Context, order *PurchaseOrder) error {
	order.Status = StatusPendiente
	if err := order.Validate(ctx); err != nil {
		return err
	}

	order.CreatedBy = appctx.GetActorID(ctx)
	order.UpdatedBy = order.CreatedBy

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("OC"), nil, order.Date)
		if err != nil {
			return fmt.Errorf("generate order number: %w", err)
		}
		order.Number = number

		if err := s.repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		logger.Info(ctx, "purchase order created",
			"order_id", order.ID, "number", order.Number, "lines", len(order.Lines))
		return nil
	})
}

// GetOrder returns an order with its lines.
func (s *Service) GetOrder(ctx context.Context, orderID id.ID) (*PurchaseOrder, error) {
	return s.repo.GetOrder(ctx, orderID)
}

// CreateReceipt opens a goods receipt against a non-terminal order.
func (s *Service) CreateReceipt(ctx context.Context, orderID id.ID, comment string) (*GoodsReceipt, error) {
	receipt := NewGoodsReceipt(orderID)
	receipt.Comment = comment
	receipt.CreatedBy = appctx.GetActorID(ctx)
	receipt.UpdatedBy = receipt.CreatedBy

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return apperror.NewInvalidStateTransition(
				"purchase_order", orderID.String(), string(order.Status), "receiving")
		}

		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("RM"), nil, receipt.Date)
		if err != nil {
			return fmt.Errorf("generate receipt number: %w", err)
		}
		receipt.Number = number

		return s.repo.CreateReceipt(ctx, receipt)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "goods receipt created",
		"receipt_id", receipt.ID, "number", receipt.Number, "order_id", orderID)
	return receipt, nil
}

// GetReceipt returns a receipt with its lines.
func (s *Service) GetReceipt(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error) {
	return s.repo.GetReceipt(ctx, receiptID)
}

// RecordReceiptLineInput is one received delivery against an order line.
type RecordReceiptLineInput struct {
	ReceiptID   id.ID
	OrderLineID id.ID
	Quantity    types.Quantity
	UnitCost    types.Money
	Lot         LotAttributes
}

// RecordReceiptLine records a received quantity: it lands the goods in a
// lot (augmenting a matching batch or creating a new one), posts an entry
// movement referenced receipt:{receiptId}:{orderLineId}, and advances the
// order line's cumulative received quantity.
//
// The cumulative quantity may not exceed the ordered quantity beyond the
// configured tolerance. Repeating the call for the same receipt and order
// line returns the previously recorded line without double-counting.
func (s *Service) RecordReceiptLine(ctx context.Context, in RecordReceiptLineInput) (*ReceiptLine, error) {
	if !in.Quantity.IsPositive() {
		return nil, apperror.NewValidation("received quantity must be positive").
			WithDetail("quantity", in.Quantity.String())
	}

	var result *ReceiptLine
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		receipt, err := s.repo.GetReceipt(ctx, in.ReceiptID)
		if err != nil {
			return err
		}
		line, err := s.repo.GetOrderLine(ctx, in.OrderLineID)
		if err != nil {
			return err
		}
		if line.OrderID != receipt.OrderID {
			return apperror.NewValidation("order line does not belong to the receipt's order").
				WithDetail("order_line_id", in.OrderLineID.String()).
				WithDetail("receipt_id", in.ReceiptID.String())
		}

		ref := entity.Reference{
			Kind: entity.RefKindReceipt,
			ID:   in.ReceiptID.String(),
			Line: in.OrderLineID.String(),
		}

		// Retry of an already-recorded delivery: return the stored line.
		applied, err := s.ledger.HasReference(ctx, ref)
		if err != nil {
			return err
		}
		if applied {
			result, err = s.repo.GetReceiptLineByOrderLine(ctx, in.ReceiptID, in.OrderLineID)
			if err == nil {
				logger.Debug(ctx, "receipt line already recorded",
					"receipt_id", in.ReceiptID, "order_line_id", in.OrderLineID)
			}
			return err
		}

		cumulative := line.ReceivedQuantity + in.Quantity
		if cumulative > line.Quantity+s.cfg.Tolerance {
			return apperror.NewOverReceipt(
				line.LineID.String(),
				line.Quantity.Float64(),
				cumulative.Float64(),
				s.cfg.Tolerance.Float64(),
			)
		}

		lot, err := s.resolveLot(ctx, line.ItemID, in)
		if err != nil {
			return err
		}

		lotID := lot.ID
		unitCost := in.UnitCost
		if _, err := s.ledger.ApplyMovement(ctx, ledger.ApplyInput{
			ItemID:    line.ItemID,
			Direction: entity.DirectionEntrada,
			LotID:     &lotID,
			Quantity:  in.Quantity,
			UnitCost:  &unitCost,
			Reference: ref,
			Actor:     appctx.GetActorID(ctx),
		}); err != nil {
			return err
		}

		rl := &ReceiptLine{
			LineID:      id.New(),
			ReceiptID:   in.ReceiptID,
			OrderLineID: in.OrderLineID,
			ItemID:      line.ItemID,
			Quantity:    in.Quantity,
			UnitCost:    in.UnitCost,
			LotID:       lot.ID,
		}
		if err := s.repo.CreateReceiptLine(ctx, rl); err != nil {
			return fmt.Errorf("create receipt line: %w", err)
		}

		if err := s.repo.UpdateOrderLineReceived(ctx, line.LineID, cumulative); err != nil {
			return fmt.Errorf("update received quantity: %w", err)
		}

		result = rl
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "receipt line recorded",
		"receipt_id", in.ReceiptID,
		"order_line_id", in.OrderLineID,
		"quantity", in.Quantity.String(),
		"lot_id", result.LotID,
	)
	return result, nil
}

// resolveLot finds the lot matching the delivery's batch attributes or
// creates a new empty one. Quantities are filled in by the ledger entry.
func (s *Service) resolveLot(ctx context.Context, itemID id.ID, in RecordReceiptLineInput) (*entity.Lot, error) {
	lot, err := s.repo.FindLotByAttributes(ctx, itemID, in.Lot.ExpiresAt, in.Lot.Location)
	if err == nil {
		return lot, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	lot = entity.NewLot(itemID, in.UnitCost, in.Lot.ExpiresAt, in.Lot.Location)
	if err := s.repo.CreateLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("create lot: %w", err)
	}
	return lot, nil
}

// TransitionOrderStatus moves an order through its lifecycle.
//
// Rules: pendiente -> aprobada freely; any non-terminal status -> recibida
// only when the order has at least one receipt with at least one line;
// any non-terminal status -> cancelada only when no receipt lines exist.
// Terminal statuses (recibida, cancelada) admit no further changes.
func (s *Service) TransitionOrderStatus(ctx context.Context, orderID id.ID, target OrderStatus) error {
	switch target {
	case StatusAprobada, StatusRecibida, StatusCancelada:
	default:
		return apperror.NewValidation("unknown order status").
			WithDetail("status", string(target))
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		order, err := s.repo.GetOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.CanTransition(target) {
			return apperror.NewInvalidStateTransition(
				"purchase_order", orderID.String(), string(order.Status), string(target))
		}

		switch target {
		case StatusRecibida:
			lines, err := s.repo.CountReceiptLinesByOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if lines == 0 {
				return apperror.NewReceiptMissing(orderID.String())
			}
		case StatusCancelada:
			lines, err := s.repo.CountReceiptLinesByOrder(ctx, orderID)
			if err != nil {
				return err
			}
			if lines > 0 {
				return apperror.NewInvalidStateTransition(
					"purchase_order", orderID.String(), string(order.Status), string(target)).
					WithDetail("reason", "order has recorded receipt lines")
			}
		}

		return s.repo.UpdateOrderStatus(ctx, orderID, target)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "purchase order status changed",
		"order_id", orderID, "status", target)
	return nil
}

// DeleteOrder removes an order and everything hanging off it: receipts,
// receipt lines and the movements their references point at. Cleanup is
// best effort so an order never becomes undeletable because one receipt is
// in a bad state; per-receipt failures are logged and recorded, and a
// second defensive pass retries them. Only a failure to delete the order
// row itself fails the call.
func (s *Service) DeleteOrder(ctx context.Context, orderID id.ID) error {
	if _, err := s.repo.GetOrder(ctx, orderID); err != nil {
		return err
	}

	s.cleanupReceipts(ctx, orderID, "cleanup")

	// Receipt lines left behind by partially failed receipt cleanups.
	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.DeleteResidualReceiptLines(ctx, orderID)
	}); err != nil {
		logger.Warn(ctx, "residual receipt line cleanup failed",
			"order_id", orderID, "error", err)
		s.recordStep(ctx, orderID, "residual_lines", err, nil)
	}

	if err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.DeleteOrderLines(ctx, orderID)
	}); err != nil {
		logger.Warn(ctx, "order line cleanup failed",
			"order_id", orderID, "error", err)
		s.recordStep(ctx, orderID, "order_lines", err, nil)
	}

	s.cleanupReceipts(ctx, orderID, "cleanup_retry")

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.DeleteOrder(ctx, orderID)
	})
	if err != nil {
		s.recordStep(ctx, orderID, "order_row", err, nil)
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}

	s.recordStep(ctx, orderID, "order_row", nil, nil)
	logger.Info(ctx, "purchase order deleted", "order_id", orderID)
	return nil
}

// cleanupReceipts deletes each receipt of the order in its own
// transaction so one failure does not roll back the others.
func (s *Service) cleanupReceipts(ctx context.Context, orderID id.ID, pass string) {
	receipts, err := s.repo.ListReceiptsByOrder(ctx, orderID)
	if err != nil {
		logger.Warn(ctx, "list receipts for cleanup failed",
			"order_id", orderID, "pass", pass, "error", err)
		s.recordStep(ctx, orderID, pass+":list_receipts", err, nil)
		return
	}

	for _, receipt := range receipts {
		receiptID := receipt.ID
		err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
			if err := s.repo.DeleteReceiptLines(ctx, receiptID); err != nil {
				return fmt.Errorf("delete receipt lines: %w", err)
			}
			if err := s.repo.DeleteMovementsByReference(ctx, entity.RefKindReceipt, receiptID.String()); err != nil {
				return fmt.Errorf("delete movements: %w", err)
			}
			if err := s.repo.DeleteReceipt(ctx, receiptID); err != nil {
				return fmt.Errorf("delete receipt: %w", err)
			}
			return nil
		})

		details := map[string]any{"receipt_id": receiptID.String()}
		if err != nil {
			logger.Warn(ctx, "receipt cleanup failed",
				"order_id", orderID, "receipt_id", receiptID, "pass", pass, "error", err)
		}
		s.recordStep(ctx, orderID, pass+":receipt", err, details)
	}
}

func (s *Service) recordStep(ctx context.Context, orderID id.ID, step string, stepErr error, details map[string]any) {
	if s.recorder == nil {
		return
	}
	s.recorder.RecordStep(ctx, orderID, step, stepErr, details)
}
