package supply

import (
	"context"
	"fmt"

	"shucway/internal/core/apperror"
	"shucway/internal/core/id"
	"shucway/internal/core/tx"
	"shucway/pkg/logger"
)

// Service provides catalog maintenance for supply items.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a new supply catalog service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{
		repo:      repo,
		txManager: txManager,
	}
}

// Create creates a new supply item.
func (s *Service) Create(ctx context.Context, item *Item) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, item); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "supply item created", "id", item.ID, "name", item.Name)
	return nil
}

// GetByID retrieves an item.
func (s *Service) GetByID(ctx context.Context, itemID id.ID) (*Item, error) {
	item, err := s.repo.GetByID(ctx, itemID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("supply item", itemID.String())
		}
		return nil, err
	}
	return item, nil
}

// Update modifies an item. The weighted-average cost field is owned by the
// ledger manager and is not overwritten here.
func (s *Service) Update(ctx context.Context, item *Item) error {
	if err := item.Validate(ctx); err != nil {
		return err
	}

	current, err := s.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	item.AvgCost = current.AvgCost

	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, item); err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	})
}

// Deactivate removes an item from active use. Deactivated items keep their
// movement history and are skipped by new audit snapshots.
func (s *Service) Deactivate(ctx context.Context, itemID id.ID) error {
	if _, err := s.GetByID(ctx, itemID); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetActive(ctx, itemID, false)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "supply item deactivated", "id", itemID)
	return nil
}

// Activate re-enables an item.
func (s *Service) Activate(ctx context.Context, itemID id.ID) error {
	if _, err := s.GetByID(ctx, itemID); err != nil {
		return err
	}
	return s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		return s.repo.SetActive(ctx, itemID, true)
	})
}

// List retrieves items with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (ListResult, error) {
	return s.repo.List(ctx, filter)
}
