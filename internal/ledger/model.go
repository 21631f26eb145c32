// Package ledger provides the lot and ledger manager: the only component
// allowed to change lot quantities, item average cost, or insert movements.
package ledger

import (
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
)

// ApplyInput describes a quantity-changing event to record in the ledger.
type ApplyInput struct {
	ItemID    id.ID
	Direction entity.Direction

	// LotID targets an explicit lot. When nil, exits consume lots by the
	// FIFO expiration policy and entries go to the most recent lot (an
	// adjustment lot is created if the item has none).
	LotID *id.ID

	// Quantity must be positive.
	Quantity types.Quantity

	// UnitCost overrides the cost recorded on the movement. When nil,
	// entries use the target lot's acquisition cost and exits use each
	// consumed lot's acquisition cost.
	UnitCost *types.Money

	// Reference ties the movement to its originating record and makes
	// retries idempotent.
	Reference entity.Reference

	Actor string
	Note  string
}

// ApplySummary reports the effect of an ApplyMovement call.
type ApplySummary struct {
	ItemID        id.ID             `json:"itemId"`
	Movements     []entity.Movement `json:"movements"`
	TotalQuantity types.Quantity    `json:"totalQuantity"`
	LotsTouched   []id.ID           `json:"lotsTouched"`

	// Replayed is true when the reference had already been applied and
	// the call was a no-op returning the existing effect.
	Replayed bool `json:"replayed"`
}

func summaryFromMovements(itemID id.ID, movements []entity.Movement, replayed bool) ApplySummary {
	s := ApplySummary{
		ItemID:    itemID,
		Movements: movements,
		Replayed:  replayed,
	}
	seen := make(map[id.ID]bool)
	for _, m := range movements {
		s.TotalQuantity += m.Quantity
		if m.LotID != nil && !seen[*m.LotID] {
			seen[*m.LotID] = true
			s.LotsTouched = append(s.LotsTouched, *m.LotID)
		}
	}
	return s
}
