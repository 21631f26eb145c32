package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shucway/internal/catalog/supply"
	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
	"shucway/internal/ledger"
)

// Compile-time check.
var _ ledger.Repository = (*LedgerRepo)(nil)

var lotColumns = []string{
	"id", "version", "item_id", "initial_quantity", "current_quantity",
	"unit_cost", "expires_at", "location", "created_at",
}

var movementColumns = []string{
	"id", "item_id", "lot_id", "direction", "quantity", "unit_cost",
	"total_cost", "period", "actor", "ref_kind", "ref_id", "ref_line",
	"note", "created_at",
}

// LedgerRepo implements ledger.Repository. All lot reads that precede a
// quantity change lock the rows so concurrent writers serialize per lot.
type LedgerRepo struct {
	txManager *TxManager
	items     *SupplyRepo
}

// NewLedgerRepo creates a ledger repository.
func NewLedgerRepo(txManager *TxManager, items *SupplyRepo) *LedgerRepo {
	return &LedgerRepo{txManager: txManager, items: items}
}

func (r *LedgerRepo) GetItem(ctx context.Context, itemID id.ID) (*supply.Item, error) {
	return r.items.GetByID(ctx, itemID)
}

func (r *LedgerRepo) UpdateItemAvgCost(ctx context.Context, itemID id.ID, cost types.Money) error {
	q := qb.Update(supplyItemsTable).
		Set("avg_cost", cost).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update avg cost: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("supply_item", itemID.String())
	}
	return nil
}

func (r *LedgerRepo) GetItemStock(ctx context.Context, itemID id.ID) (types.Quantity, error) {
	var stock types.Quantity
	sql := "SELECT COALESCE(SUM(current_quantity), 0) FROM " + lotsTable + " WHERE item_id = $1"
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, itemID).Scan(&stock); err != nil {
		return 0, fmt.Errorf("sum lot quantities: %w", err)
	}
	return stock, nil
}

func (r *LedgerRepo) GetLotForUpdate(ctx context.Context, lotID id.ID) (*entity.Lot, error) {
	q := qb.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"id": lotID}).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot entity.Lot
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return &lot, nil
}

// GetEligibleLotsForUpdate locks and returns the item's lots with stock,
// earliest expiration first, NULL expirations last, lot id as tie-break.
// The deterministic order makes FIFO consumption replayable.
func (r *LedgerRepo) GetEligibleLotsForUpdate(ctx context.Context, itemID id.ID) ([]*entity.Lot, error) {
	q := qb.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"item_id": itemID}).
		Where(squirrel.Gt{"current_quantity": 0}).
		OrderBy("expires_at ASC NULLS LAST", "id ASC").
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lots []*entity.Lot
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &lots, sql, args...); err != nil {
		return nil, fmt.Errorf("get eligible lots: %w", err)
	}
	return lots, nil
}

func (r *LedgerRepo) GetLatestLotForUpdate(ctx context.Context, itemID id.ID) (*entity.Lot, error) {
	// UUIDv7 ids sort by creation time.
	q := qb.Select(lotColumns...).
		From(lotsTable).
		Where(squirrel.Eq{"item_id": itemID}).
		OrderBy("id DESC").
		Limit(1).
		Suffix("FOR UPDATE")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lot entity.Lot
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &lot, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("lot", itemID.String())
		}
		return nil, fmt.Errorf("get latest lot: %w", err)
	}
	return &lot, nil
}

func (r *LedgerRepo) CreateLot(ctx context.Context, lot *entity.Lot) error {
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

func (r *LedgerRepo) UpdateLotQuantities(ctx context.Context, lot *entity.Lot) error {
	q := qb.Update(lotsTable).
		Set("initial_quantity", lot.InitialQuantity).
		Set("current_quantity", lot.CurrentQuantity).
		Set("version", lot.Version+1).
		Where(squirrel.Eq{"id": lot.ID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update lot quantities: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("lot", lot.ID.String())
	}
	lot.Touch()
	return nil
}

func (r *LedgerRepo) CreateMovements(ctx context.Context, movements []entity.Movement) error {
	if len(movements) == 0 {
		return nil
	}

	q := qb.Insert(movementsTable).Columns(movementColumns...)
	for _, m := range movements {
		q = q.Values(
			m.ID, m.ItemID, m.LotID, m.Direction, m.Quantity, m.UnitCost,
			m.TotalCost, m.Period, m.Actor, m.Kind, m.Reference.ID, m.Line,
			m.Note, m.CreatedAt,
		)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

func (r *LedgerRepo) GetMovementsByReference(ctx context.Context, ref entity.Reference) ([]entity.Movement, error) {
	q := qb.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{
			"ref_kind": ref.Kind,
			"ref_id":   ref.ID,
			"ref_line": ref.Line,
		}).
		OrderBy("created_at ASC", "id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.Movement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("get movements by reference: %w", err)
	}
	return movements, nil
}
