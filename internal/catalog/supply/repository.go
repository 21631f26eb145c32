package supply

import (
	"context"

	"shucway/internal/core/id"
)

// Repository defines persistence for supply items.
type Repository interface {
	// Create inserts a new item.
	Create(ctx context.Context, item *Item) error

	// GetByID retrieves an item by ID.
	GetByID(ctx context.Context, itemID id.ID) (*Item, error)

	// Update modifies an existing item (with optimistic locking).
	Update(ctx context.Context, item *Item) error

	// List retrieves items with filtering and pagination.
	List(ctx context.Context, filter ListFilter) (ListResult, error)

	// ListActive returns all active items (for audit snapshots).
	ListActive(ctx context.Context) ([]*Item, error)

	// SetActive toggles the active flag.
	SetActive(ctx context.Context, itemID id.ID, active bool) error

	// Exists checks if an item exists.
	Exists(ctx context.Context, itemID id.ID) (bool, error)
}
