package ledger

import (
	"context"

	"shucway/internal/catalog/supply"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
)

// Repository defines the narrow persistence capability the ledger manager
// needs. Lot reads that precede quantity changes take row locks so
// concurrent writers to the same lot serialize.
type Repository interface {
	// GetItem retrieves a supply item.
	GetItem(ctx context.Context, itemID id.ID) (*supply.Item, error)

	// UpdateItemAvgCost persists a recomputed weighted-average cost.
	UpdateItemAvgCost(ctx context.Context, itemID id.ID, cost types.Money) error

	// GetItemStock returns the derived stock (sum of lot current
	// quantities) for an item.
	GetItemStock(ctx context.Context, itemID id.ID) (types.Quantity, error)

	// GetLotForUpdate retrieves a lot with a pessimistic row lock.
	GetLotForUpdate(ctx context.Context, lotID id.ID) (*entity.Lot, error)

	// GetEligibleLotsForUpdate returns lots of the item with positive
	// current quantity, locked, ordered by expiration ascending with NULL
	// expirations last and lot id as tie-break.
	GetEligibleLotsForUpdate(ctx context.Context, itemID id.ID) ([]*entity.Lot, error)

	// GetLatestLotForUpdate returns the most recently created lot of the
	// item, locked. Returns NotFound when the item has no lots.
	GetLatestLotForUpdate(ctx context.Context, itemID id.ID) (*entity.Lot, error)

	// CreateLot inserts a new lot row.
	CreateLot(ctx context.Context, lot *entity.Lot) error

	// UpdateLotQuantities persists initial/current quantity changes.
	UpdateLotQuantities(ctx context.Context, lot *entity.Lot) error

	// CreateMovements appends ledger movements.
	CreateMovements(ctx context.Context, movements []entity.Movement) error

	// GetMovementsByReference returns movements recorded for a reference.
	GetMovementsByReference(ctx context.Context, ref entity.Reference) ([]entity.Movement, error)
}
