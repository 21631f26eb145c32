package dto

import "shucway/internal/core/types"

// CreateItemRequest creates a supply item.
type CreateItemRequest struct {
	Name     string         `json:"name" binding:"required"`
	Unit     string         `json:"unit" binding:"required"`
	Category string         `json:"category"`
	MinStock types.Quantity `json:"minStock"`
	MaxStock types.Quantity `json:"maxStock"`
}

// UpdateItemRequest updates a supply item. Version is required for
// optimistic locking.
type UpdateItemRequest struct {
	Name     string         `json:"name" binding:"required"`
	Unit     string         `json:"unit" binding:"required"`
	Category string         `json:"category"`
	MinStock types.Quantity `json:"minStock"`
	MaxStock types.Quantity `json:"maxStock"`
	Version  int            `json:"version" binding:"required"`
}

// StockResponse reports an item's derived stock.
type StockResponse struct {
	ItemID      string         `json:"itemId"`
	StockActual types.Quantity `json:"stockActual"`
}
