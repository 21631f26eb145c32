// Package supply provides the supply item (insumo) catalog.
package supply

import (
	"context"

	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/types"
)

// StockClass is a reporting-only classification derived from category.
type StockClass string

const (
	// ClassPerpetual covers ingredients tracked continuously (perpetuo)
	ClassPerpetual StockClass = "perpetual"
	// ClassOperational covers consumables counted periodically (operativo)
	ClassOperational StockClass = "operational"
)

// operationalCategories lists categories treated as operational supplies.
// Everything else defaults to perpetual tracking.
var operationalCategories = map[string]bool{
	"limpieza":    true,
	"descartable": true,
	"empaque":     true,
}

// Item is a trackable raw material or ingredient (insumo).
// StockActual is derived from lot quantities and never stored on the item
// row; AvgCost is owned by the ledger manager.
type Item struct {
	entity.BaseDocument

	Name     string         `db:"name" json:"name"`
	Unit     string         `db:"unit" json:"unit"`
	Category string         `db:"category" json:"category"`
	MinStock types.Quantity `db:"min_stock" json:"minStock"`
	MaxStock types.Quantity `db:"max_stock" json:"maxStock"`
	AvgCost  types.Money    `db:"avg_cost" json:"avgCost"`
	Active   bool           `db:"active" json:"active"`
}

// NewItem creates an active supply item.
func NewItem(name, unit, category string) *Item {
	return &Item{
		BaseDocument: entity.NewBaseDocument(),
		Name:         name,
		Unit:         unit,
		Category:     category,
		AvgCost:      types.ZeroMoney(),
		Active:       true,
	}
}

// StockClass derives the reporting classification from the category.
func (i *Item) StockClass() StockClass {
	if operationalCategories[i.Category] {
		return ClassOperational
	}
	return ClassPerpetual
}

// Validate implements entity.Validatable.
func (i *Item) Validate(ctx context.Context) error {
	if i.Name == "" {
		return apperror.NewValidation("item name is required").
			WithDetail("field", "name")
	}
	if i.Unit == "" {
		return apperror.NewValidation("item unit is required").
			WithDetail("field", "unit")
	}
	if i.MinStock.IsNegative() || i.MaxStock.IsNegative() {
		return apperror.NewValidation("stock thresholds cannot be negative")
	}
	if !i.MaxStock.IsZero() && i.MaxStock < i.MinStock {
		return apperror.NewValidation("max stock cannot be below min stock")
	}
	return nil
}

// ItemStock pairs an item with its derived current stock.
type ItemStock struct {
	Item        *Item          `json:"item"`
	StockActual types.Quantity `json:"stockActual"`
}

// ListFilter contains filtering options for item lists.
type ListFilter struct {
	Search     string
	Category   string
	OnlyActive bool
	OrderBy    string
	Limit      int
	Offset     int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "name",
	}
}

// ListResult contains paginated items.
type ListResult struct {
	Items      []*Item `json:"items"`
	TotalCount int64   `json:"totalCount"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}
