// Package kardex projects the movement ledger into running-balance views.
// It only reads; all writes go through the ledger manager.
package kardex

import (
	"context"
	"time"

	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/tx"
	"shucway/internal/core/types"
)

// Repository defines the read capability the reporter needs.
type Repository interface {
	// ItemExists checks the item is known before projecting its ledger.
	ItemExists(ctx context.Context, itemID id.ID) (bool, error)

	// ListMovements returns the item's movements within [from, to],
	// ascending by creation time with movement id as tie-break. Nil bounds
	// are open.
	ListMovements(ctx context.Context, itemID id.ID, from, to *time.Time) ([]entity.Movement, error)
}

// Entry is one ledger movement annotated with the running balance after
// applying it.
type Entry struct {
	Movement entity.Movement `json:"movement"`
	Balance  types.Quantity  `json:"balance"`
}

// Ledger is the kardex for one item over a window.
type Ledger struct {
	ItemID  id.ID      `json:"itemId"`
	From    *time.Time `json:"from,omitempty"`
	To      *time.Time `json:"to,omitempty"`
	Entries []Entry    `json:"entries"`

	// ClosingBalance is the balance after the last entry in scope, zero
	// when the window holds no movements.
	ClosingBalance types.Quantity `json:"closingBalance"`
}

// Turnover aggregates a window's entry and exit totals.
type Turnover struct {
	ItemID    id.ID          `json:"itemId"`
	From      *time.Time     `json:"from,omitempty"`
	To        *time.Time     `json:"to,omitempty"`
	TotalIn   types.Quantity `json:"totalIn"`
	TotalOut  types.Quantity `json:"totalOut"`
	Net       types.Quantity `json:"net"`
	EntryCost types.Money    `json:"entryCost"`
	ExitCost  types.Money    `json:"exitCost"`
	Movements int            `json:"movements"`
}

// Service is the kardex reporter.
type Service struct {
	repo Repository
	roTx tx.ReadOnlyManager
}

// NewService creates a kardex reporter.
func NewService(repo Repository, roTx tx.ReadOnlyManager) *Service {
	return &Service{repo: repo, roTx: roTx}
}
