package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shucway/internal/catalog/supply"
	"shucway/internal/core/apperror"
	"shucway/internal/core/id"
)

// Compile-time check.
var _ supply.Repository = (*SupplyRepo)(nil)

var supplyItemColumns = []string{
	"id", "version", "created_at", "updated_at", "created_by", "updated_by",
	"name", "unit", "category", "min_stock", "max_stock", "avg_cost", "active",
}

// SupplyRepo implements supply.Repository.
type SupplyRepo struct {
	txManager *TxManager
}

// NewSupplyRepo creates a supply item repository.
func NewSupplyRepo(txManager *TxManager) *SupplyRepo {
	return &SupplyRepo{txManager: txManager}
}

func (r *SupplyRepo) baseSelect() squirrel.SelectBuilder {
	return qb.Select(supplyItemColumns...).From(supplyItemsTable)
}

func (r *SupplyRepo) Create(ctx context.Context, item *supply.Item) error {
	q := qb.Insert(supplyItemsTable).
		Columns(supplyItemColumns...).
		Values(
			item.ID, item.Version, item.CreatedAt, item.UpdatedAt,
			item.CreatedBy, item.UpdatedBy,
			item.Name, item.Unit, item.Category,
			item.MinStock, item.MaxStock, item.AvgCost, item.Active,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

func (r *SupplyRepo) GetByID(ctx context.Context, itemID id.ID) (*supply.Item, error) {
	q := r.baseSelect().Where(squirrel.Eq{"id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var item supply.Item
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &item, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("supply_item", itemID.String())
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

func (r *SupplyRepo) Update(ctx context.Context, item *supply.Item) error {
	q := qb.Update(supplyItemsTable).
		Set("name", item.Name).
		Set("unit", item.Unit).
		Set("category", item.Category).
		Set("min_stock", item.MinStock).
		Set("max_stock", item.MaxStock).
		Set("active", item.Active).
		Set("updated_at", time.Now().UTC()).
		Set("updated_by", item.UpdatedBy).
		Set("version", item.Version+1).
		Where(squirrel.Eq{"id": item.ID, "version": item.Version})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewConcurrentModification("supply_item", item.ID.String())
	}
	item.Touch()
	return nil
}

func (r *SupplyRepo) List(ctx context.Context, filter supply.ListFilter) (supply.ListResult, error) {
	result := supply.ListResult{
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}

	q := r.baseSelect()
	if filter.OnlyActive {
		q = q.Where(squirrel.Eq{"active": true})
	}
	if filter.Category != "" {
		q = q.Where(squirrel.Eq{"category": filter.Category})
	}
	if filter.Search != "" {
		q = q.Where(squirrel.ILike{"name": "%" + filter.Search + "%"})
	}

	countQ := qb.Select("COUNT(*)").FromSelect(q, "sub")
	countSQL, countArgs, err := countQ.ToSql()
	if err != nil {
		return result, fmt.Errorf("build count: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&result.TotalCount); err != nil {
		return result, fmt.Errorf("count: %w", err)
	}

	orderBy := "name"
	if filter.OrderBy != "" {
		orderBy = filter.OrderBy
	}
	q = q.OrderBy(orderBy)

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return result, fmt.Errorf("build query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &result.Items, sql, args...); err != nil {
		return result, fmt.Errorf("select: %w", err)
	}
	return result, nil
}

func (r *SupplyRepo) ListActive(ctx context.Context) ([]*supply.Item, error) {
	q := r.baseSelect().
		Where(squirrel.Eq{"active": true}).
		OrderBy("name")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var items []*supply.Item
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("list active items: %w", err)
	}
	return items, nil
}

func (r *SupplyRepo) SetActive(ctx context.Context, itemID id.ID, active bool) error {
	q := qb.Update(supplyItemsTable).
		Set("active", active).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("supply_item", itemID.String())
	}
	return nil
}

func (r *SupplyRepo) Exists(ctx context.Context, itemID id.ID) (bool, error) {
	var exists bool
	sql := "SELECT EXISTS(SELECT 1 FROM " + supplyItemsTable + " WHERE id = $1)"
	if err := r.txManager.GetQuerier(ctx).QueryRow(ctx, sql, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check item exists: %w", err)
	}
	return exists, nil
}
