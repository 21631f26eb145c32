package entity

import (
	"context"
	"fmt"
	"time"

	"shucway/internal/core/apperror"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
)

// Direction defines movement direction for the stock ledger.
type Direction string

const (
	// DirectionEntrada increases lot stock (entrada)
	DirectionEntrada Direction = "entrada"
	// DirectionSalida decreases lot stock (salida)
	DirectionSalida Direction = "salida"
)

// ReferenceKind identifies the kind of record that caused a movement.
type ReferenceKind string

const (
	RefKindReceipt ReferenceKind = "receipt"
	RefKindAudit   ReferenceKind = "audit"
	RefKindSale    ReferenceKind = "sale"
)

// Reference is the typed origin of a ledger movement, stored as exact
// columns so cleanup and idempotency checks are equality matches, never
// free-text scans.
type Reference struct {
	Kind ReferenceKind `db:"ref_kind" json:"refKind"`
	ID   string        `db:"ref_id" json:"refId"`
	Line string        `db:"ref_line" json:"refLine,omitempty"`
}

// NewReference builds a reference without a line component.
func NewReference(kind ReferenceKind, refID string) Reference {
	return Reference{Kind: kind, ID: refID}
}

// NewLineReference builds a reference with a line component.
func NewLineReference(kind ReferenceKind, refID, line string) Reference {
	return Reference{Kind: kind, ID: refID, Line: line}
}

// String renders the canonical "kind:id[:line]" form used in logs and
// kardex output.
func (r Reference) String() string {
	if r.Line != "" {
		return fmt.Sprintf("%s:%s:%s", r.Kind, r.ID, r.Line)
	}
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// IsZero reports whether the reference is unset.
func (r Reference) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// Lot is a batch of a supply item with its own quantity, acquisition cost
// and expiration. Quantities are only mutated by the ledger manager.
type Lot struct {
	BaseEntity

	ItemID          id.ID          `db:"item_id" json:"itemId"`
	InitialQuantity types.Quantity `db:"initial_quantity" json:"initialQuantity"`
	CurrentQuantity types.Quantity `db:"current_quantity" json:"currentQuantity"`
	UnitCost        types.Money    `db:"unit_cost" json:"unitCost"`
	ExpiresAt       *time.Time     `db:"expires_at" json:"expiresAt,omitempty"`
	Location        string         `db:"location" json:"location,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"createdAt"`
}

// NewLot creates an empty lot for an item. The lot receives stock through
// entrada movements, never directly.
func NewLot(itemID id.ID, unitCost types.Money, expiresAt *time.Time, location string) *Lot {
	return &Lot{
		BaseEntity: NewBaseEntity(),
		ItemID:     itemID,
		UnitCost:   unitCost,
		ExpiresAt:  expiresAt,
		Location:   location,
		CreatedAt:  time.Now().UTC(),
	}
}

// Validate implements Validatable.
func (l *Lot) Validate(ctx context.Context) error {
	if id.IsNil(l.ItemID) {
		return apperror.NewValidation("lot item is required").
			WithDetail("field", "itemId")
	}
	if l.CurrentQuantity.IsNegative() {
		return apperror.NewValidation("lot current quantity cannot be negative").
			WithDetail("lot_id", l.ID.String())
	}
	if l.CurrentQuantity > l.InitialQuantity {
		return apperror.NewValidation("lot current quantity cannot exceed initial quantity").
			WithDetail("lot_id", l.ID.String())
	}
	return nil
}

// Movement is an append-only ledger entry. Once created it is never
// mutated; reversals are modeled as opposite-direction movements.
type Movement struct {
	ID        id.ID          `db:"id" json:"id"`
	ItemID    id.ID          `db:"item_id" json:"itemId"`
	LotID     *id.ID         `db:"lot_id" json:"lotId,omitempty"`
	Direction Direction      `db:"direction" json:"direction"`
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	UnitCost  types.Money    `db:"unit_cost" json:"unitCost"`
	TotalCost types.Money    `db:"total_cost" json:"totalCost"`
	Period    time.Time      `db:"period" json:"period"`
	Actor     string         `db:"actor" json:"actor"`
	Reference `json:"reference"`
	Note      string    `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewMovement creates a ledger movement with computed total cost.
func NewMovement(
	itemID id.ID,
	lotID *id.ID,
	direction Direction,
	quantity types.Quantity,
	unitCost types.Money,
	ref Reference,
	actor, note string,
) Movement {
	now := time.Now().UTC()
	return Movement{
		ID:        id.New(),
		ItemID:    itemID,
		LotID:     lotID,
		Direction: direction,
		Quantity:  quantity,
		UnitCost:  unitCost,
		TotalCost: unitCost.Mul(quantity.Decimal()),
		Period:    now,
		Actor:     actor,
		Reference: ref,
		Note:      note,
		CreatedAt: now,
	}
}

// SignedQuantity returns quantity with sign based on direction.
// Entrada = positive, salida = negative.
func (m *Movement) SignedQuantity() types.Quantity {
	if m.Direction == DirectionSalida {
		return m.Quantity.Neg()
	}
	return m.Quantity
}
