package ledger

import (
	"context"
	"fmt"

	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/tx"
	"shucway/internal/core/types"
	"shucway/pkg/logger"
)

// Service applies quantity-changing events as append-only movements.
// It owns lot current quantities and item weighted-average cost; the
// reconciliation components delegate all quantity and cost math here.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new ledger manager.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// ApplyMovement records one ledger event. Exits without an explicit lot
// consume eligible lots by ascending expiration (earliest first, NULL
// expirations last, lot id as tie-break), spilling across lots.
//
// Retries are safe: if movements for the same reference already exist the
// call is a no-op and returns the existing effect with Replayed set.
func (s *Service) ApplyMovement(ctx context.Context, in ApplyInput) (ApplySummary, error) {
	if !in.Quantity.IsPositive() {
		return ApplySummary{}, apperror.NewValidation("movement quantity must be positive").
			WithDetail("quantity", in.Quantity.String())
	}
	if in.Reference.IsZero() {
		return ApplySummary{}, apperror.NewValidation("movement reference is required")
	}
	if in.Direction != entity.DirectionEntrada && in.Direction != entity.DirectionSalida {
		return ApplySummary{}, apperror.NewValidation("unknown movement direction").
			WithDetail("direction", string(in.Direction))
	}

	var summary ApplySummary
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.repo.GetMovementsByReference(ctx, in.Reference)
		if err != nil {
			return fmt.Errorf("check reference: %w", err)
		}
		if len(existing) > 0 {
			summary = summaryFromMovements(in.ItemID, existing, true)
			return nil
		}

		item, err := s.repo.GetItem(ctx, in.ItemID)
		if err != nil {
			return err
		}

		switch in.Direction {
		case entity.DirectionEntrada:
			summary, err = s.applyEntry(ctx, item.ID, item.AvgCost, in)
		case entity.DirectionSalida:
			summary, err = s.applyExit(ctx, item.ID, in)
		}
		return err
	})
	if err != nil {
		return ApplySummary{}, err
	}

	if summary.Replayed {
		logger.Debug(ctx, "movement reference already applied",
			"reference", in.Reference.String())
		return summary, nil
	}

	logger.Info(ctx, "ledger movement applied",
		"item_id", in.ItemID,
		"direction", in.Direction,
		"quantity", in.Quantity.String(),
		"reference", in.Reference.String(),
		"lots", len(summary.LotsTouched),
	)
	return summary, nil
}

// applyEntry increments a lot and recomputes the item's weighted-average
// cost as (oldQty*oldCost + qty*cost) / (oldQty+qty).
func (s *Service) applyEntry(ctx context.Context, itemID id.ID, avgCost types.Money, in ApplyInput) (ApplySummary, error) {
	lot, err := s.resolveEntryLot(ctx, itemID, in)
	if err != nil {
		return ApplySummary{}, err
	}

	unitCost := lot.UnitCost
	if in.UnitCost != nil {
		unitCost = *in.UnitCost
	}

	// Stock before the entry, needed for the weighted mean.
	oldQty, err := s.repo.GetItemStock(ctx, itemID)
	if err != nil {
		return ApplySummary{}, fmt.Errorf("get item stock: %w", err)
	}

	lot.InitialQuantity += in.Quantity
	lot.CurrentQuantity += in.Quantity
	if err := s.repo.UpdateLotQuantities(ctx, lot); err != nil {
		return ApplySummary{}, fmt.Errorf("update lot: %w", err)
	}

	newAvg := weightedAverage(oldQty, avgCost, in.Quantity, unitCost)
	if err := s.repo.UpdateItemAvgCost(ctx, itemID, newAvg); err != nil {
		return ApplySummary{}, fmt.Errorf("update avg cost: %w", err)
	}

	lotID := lot.ID
	movement := entity.NewMovement(
		itemID, &lotID, entity.DirectionEntrada,
		in.Quantity, unitCost, in.Reference, in.Actor, in.Note,
	)
	if err := s.repo.CreateMovements(ctx, []entity.Movement{movement}); err != nil {
		return ApplySummary{}, fmt.Errorf("create movement: %w", err)
	}

	return summaryFromMovements(itemID, []entity.Movement{movement}, false), nil
}

// resolveEntryLot locks the target lot for an entry. Without an explicit
// lot the entry lands on the most recent lot; an item with no lots gets a
// fresh adjustment lot.
func (s *Service) resolveEntryLot(ctx context.Context, itemID id.ID, in ApplyInput) (*entity.Lot, error) {
	if in.LotID != nil {
		lot, err := s.repo.GetLotForUpdate(ctx, *in.LotID)
		if err != nil {
			return nil, err
		}
		if lot.ItemID != itemID {
			return nil, apperror.NewValidation("lot does not belong to item").
				WithDetail("lot_id", in.LotID.String()).
				WithDetail("item_id", itemID.String())
		}
		return lot, nil
	}

	lot, err := s.repo.GetLatestLotForUpdate(ctx, itemID)
	if err == nil {
		return lot, nil
	}
	if !apperror.IsNotFound(err) {
		return nil, err
	}

	cost := types.ZeroMoney()
	if in.UnitCost != nil {
		cost = *in.UnitCost
	}
	lot = entity.NewLot(itemID, cost, nil, "")
	if err := s.repo.CreateLot(ctx, lot); err != nil {
		return nil, fmt.Errorf("create adjustment lot: %w", err)
	}
	return lot, nil
}

// applyExit decrements one or more lots. Item average cost is unchanged
// on exits.
func (s *Service) applyExit(ctx context.Context, itemID id.ID, in ApplyInput) (ApplySummary, error) {
	if in.LotID != nil {
		lot, err := s.repo.GetLotForUpdate(ctx, *in.LotID)
		if err != nil {
			return ApplySummary{}, err
		}
		if lot.ItemID != itemID {
			return ApplySummary{}, apperror.NewValidation("lot does not belong to item").
				WithDetail("lot_id", in.LotID.String()).
				WithDetail("item_id", itemID.String())
		}
		if lot.CurrentQuantity < in.Quantity {
			return ApplySummary{}, apperror.NewInsufficientStock(
				itemID.String(), in.Quantity.Float64(), lot.CurrentQuantity.Float64())
		}
		movement, err := s.consumeLot(ctx, lot, in.Quantity, in)
		if err != nil {
			return ApplySummary{}, err
		}
		movements := []entity.Movement{movement}
		if err := s.repo.CreateMovements(ctx, movements); err != nil {
			return ApplySummary{}, fmt.Errorf("create movement: %w", err)
		}
		return summaryFromMovements(itemID, movements, false), nil
	}

	lots, err := s.repo.GetEligibleLotsForUpdate(ctx, itemID)
	if err != nil {
		return ApplySummary{}, fmt.Errorf("get eligible lots: %w", err)
	}

	var available types.Quantity
	for _, lot := range lots {
		available += lot.CurrentQuantity
	}
	if available < in.Quantity {
		return ApplySummary{}, apperror.NewInsufficientStock(
			itemID.String(), in.Quantity.Float64(), available.Float64())
	}

	remaining := in.Quantity
	var movements []entity.Movement
	for _, lot := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := lot.CurrentQuantity
		if take > remaining {
			take = remaining
		}
		movement, err := s.consumeLot(ctx, lot, take, in)
		if err != nil {
			return ApplySummary{}, err
		}
		movements = append(movements, movement)
		remaining -= take
	}

	if err := s.repo.CreateMovements(ctx, movements); err != nil {
		return ApplySummary{}, fmt.Errorf("create movements: %w", err)
	}
	return summaryFromMovements(itemID, movements, false), nil
}

// consumeLot decrements a locked lot and builds its exit movement.
func (s *Service) consumeLot(ctx context.Context, lot *entity.Lot, qty types.Quantity, in ApplyInput) (entity.Movement, error) {
	lot.CurrentQuantity -= qty
	if err := s.repo.UpdateLotQuantities(ctx, lot); err != nil {
		return entity.Movement{}, fmt.Errorf("update lot %s: %w", lot.ID, err)
	}

	unitCost := lot.UnitCost
	if in.UnitCost != nil {
		unitCost = *in.UnitCost
	}

	lotID := lot.ID
	return entity.NewMovement(
		lot.ItemID, &lotID, entity.DirectionSalida,
		qty, unitCost, in.Reference, in.Actor, in.Note,
	), nil
}

// HasReference reports whether movements were already recorded for the
// reference. Callers use it to skip side effects on retried requests.
func (s *Service) HasReference(ctx context.Context, ref entity.Reference) (bool, error) {
	movements, err := s.repo.GetMovementsByReference(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return len(movements) > 0, nil
}

// GetItemStock returns the derived stock for an item.
func (s *Service) GetItemStock(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	if _, err := s.repo.GetItem(ctx, itemID); err != nil {
		return 0, err
	}
	return s.repo.GetItemStock(ctx, itemID)
}

// weightedAverage computes the quantity-weighted mean of the prior and
// incoming unit cost. Mirrors the formula used across the back office:
// (oldQty*oldCost + qty*cost) / (oldQty + qty).
func weightedAverage(oldQty types.Quantity, oldCost types.Money, qty types.Quantity, cost types.Money) types.Money {
	total := oldQty + qty
	if !total.IsPositive() {
		return cost
	}
	num := oldQty.Decimal().Mul(oldCost).Add(qty.Decimal().Mul(cost))
	return num.DivRound(total.Decimal(), 6)
}
