package kardex

import (
	"context"
	"time"

	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
)

// GetLedger replays the item's movements within the window ascending and
// annotates each with a running balance, entries as +quantity and exits as
// -quantity, starting from zero at the earliest movement in scope.
// Re-reading the same committed data yields the same sequence.
func (s *Service) GetLedger(ctx context.Context, itemID id.ID, from, to *time.Time) (*Ledger, error) {
	if err := validateWindow(from, to); err != nil {
		return nil, err
	}

	result := &Ledger{
		ItemID:  itemID,
		From:    from,
		To:      to,
		Entries: make([]Entry, 0),
	}

	err := s.roTx.ReadOnly(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ItemExists(ctx, itemID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewNotFound("supply_item", itemID.String())
		}

		movements, err := s.repo.ListMovements(ctx, itemID, from, to)
		if err != nil {
			return err
		}

		for _, m := range movements {
			result.ClosingBalance += m.SignedQuantity()
			result.Entries = append(result.Entries, Entry{
				Movement: m,
				Balance:  result.ClosingBalance,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetTurnover sums entry and exit quantities and costs over the window.
func (s *Service) GetTurnover(ctx context.Context, itemID id.ID, from, to *time.Time) (*Turnover, error) {
	if err := validateWindow(from, to); err != nil {
		return nil, err
	}

	result := &Turnover{ItemID: itemID, From: from, To: to}

	err := s.roTx.ReadOnly(ctx, func(ctx context.Context) error {
		exists, err := s.repo.ItemExists(ctx, itemID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.NewNotFound("supply_item", itemID.String())
		}

		movements, err := s.repo.ListMovements(ctx, itemID, from, to)
		if err != nil {
			return err
		}

		result.Movements = len(movements)
		for _, m := range movements {
			switch m.Direction {
			case entity.DirectionEntrada:
				result.TotalIn += m.Quantity
				result.EntryCost = result.EntryCost.Add(m.TotalCost)
			case entity.DirectionSalida:
				result.TotalOut += m.Quantity
				result.ExitCost = result.ExitCost.Add(m.TotalCost)
			}
		}
		result.Net = result.TotalIn - result.TotalOut
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func validateWindow(from, to *time.Time) error {
	if from != nil && to != nil && from.After(*to) {
		return apperror.NewInvalidPeriod("window start is after window end").
			WithDetail("from", *from).
			WithDetail("to", *to)
	}
	return nil
}
