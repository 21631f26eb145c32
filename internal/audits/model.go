// Package audits provides physical-count reconciliation: expected stock is
// snapshotted, counts are recorded against it, and justified differences
// become ledger adjustments on completion.
package audits

import (
	"context"
	"time"

	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/types"
)

// AuditStatus represents the status of an inventory audit.
type AuditStatus string

const (
	StatusEnProgreso AuditStatus = "en_progreso"
	StatusCompletada AuditStatus = "completada"
	StatusCancelada  AuditStatus = "cancelada"
)

// IsTerminal reports whether the audit admits no further changes.
func (s AuditStatus) IsTerminal() bool {
	return s == StatusCompletada || s == StatusCancelada
}

// Audit is a physical stock count over a period (auditoría de inventario).
type Audit struct {
	entity.Document

	Label       string      `db:"label" json:"label"`
	PeriodStart time.Time   `db:"period_start" json:"periodStart"`
	PeriodEnd   time.Time   `db:"period_end" json:"periodEnd"`
	Status      AuditStatus `db:"status" json:"status"`

	Lines []AuditLine `db:"-" json:"lines"`
}

// AuditLine snapshots one item's expected stock and records the physical
// count against it. A nonzero difference without a cause code stays
// flagged unjustified and is excluded from completion.
type AuditLine struct {
	LineID  id.ID `db:"line_id" json:"lineId"`
	AuditID id.ID `db:"audit_id" json:"auditId"`
	ItemID  id.ID `db:"item_id" json:"itemId"`

	Expected    types.Quantity  `db:"expected" json:"expected"`
	Counted     *types.Quantity `db:"counted" json:"counted,omitempty"`
	Difference  types.Quantity  `db:"difference" json:"difference"`
	CauseCode   string          `db:"cause_code" json:"causeCode,omitempty"`
	Unjustified bool            `db:"unjustified" json:"unjustified"`
	Notes       string          `db:"notes" json:"notes,omitempty"`
}

// HasCount reports whether a physical count was recorded for the line.
func (l *AuditLine) HasCount() bool {
	return l.Counted != nil
}

// Applicable reports whether the line produces an adjustment movement on
// completion: a recorded count, a nonzero difference, and a cause code.
func (l *AuditLine) Applicable() bool {
	return l.Counted != nil && !l.Difference.IsZero() && l.CauseCode != ""
}

// NewAudit creates an in-progress audit without lines.
func NewAudit(label string, periodStart, periodEnd time.Time) *Audit {
	return &Audit{
		Document:    entity.NewDocument(),
		Label:       label,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Status:      StatusEnProgreso,
		Lines:       make([]AuditLine, 0),
	}
}

// Validate implements entity.Validatable.
func (a *Audit) Validate(ctx context.Context) error {
	if a.Label == "" {
		return apperror.NewValidation("label is required").
			WithDetail("field", "label")
	}
	if a.PeriodStart.After(a.PeriodEnd) {
		return apperror.NewInvalidPeriod("period start is after period end").
			WithDetail("periodStart", a.PeriodStart).
			WithDetail("periodEnd", a.PeriodEnd)
	}
	return nil
}
