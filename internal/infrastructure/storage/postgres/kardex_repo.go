package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/kardex"
)

// Compile-time check.
var _ kardex.Repository = (*KardexRepo)(nil)

// KardexRepo implements kardex.Repository, the read-only movement
// projection.
type KardexRepo struct {
	txManager *TxManager
	items     *SupplyRepo
}

// NewKardexRepo creates a kardex repository.
func NewKardexRepo(txManager *TxManager, items *SupplyRepo) *KardexRepo {
	return &KardexRepo{txManager: txManager, items: items}
}

func (r *KardexRepo) ItemExists(ctx context.Context, itemID id.ID) (bool, error) {
	return r.items.Exists(ctx, itemID)
}

// ListMovements returns the window's movements ascending. The (created_at,
// id) order makes re-reads of the same committed data deterministic.
func (r *KardexRepo) ListMovements(ctx context.Context, itemID id.ID, from, to *time.Time) ([]entity.Movement, error) {
	q := qb.Select(movementColumns...).
		From(movementsTable).
		Where(squirrel.Eq{"item_id": itemID})
	if from != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *from})
	}
	if to != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *to})
	}
	q = q.OrderBy("created_at ASC", "id ASC")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var movements []entity.Movement
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &movements, sql, args...); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return movements, nil
}
