package audits

import (
	"context"
	"fmt"
	"time"

	"shucway/internal/catalog/supply"
	"shucway/internal/core/appctx"
	"shucway/internal/core/apperror"
	"shucway/internal/core/entity"
	"shucway/internal/core/id"
	"shucway/internal/core/tx"
	"shucway/internal/core/types"
	"shucway/internal/ledger"
	"shucway/pkg/logger"
	"shucway/pkg/numerator"
)

// Ledger is the slice of the ledger manager the audit service uses.
type Ledger interface {
	ApplyMovement(ctx context.Context, in ledger.ApplyInput) (ledger.ApplySummary, error)
	GetItemStock(ctx context.Context, itemID id.ID) (types.Quantity, error)
}

// ItemSource lists the items an audit snapshot covers.
type ItemSource interface {
	ListActive(ctx context.Context) ([]*supply.Item, error)
}

// Service runs the audit lifecycle: start with a snapshot, record counts,
// complete by applying justified differences through the ledger.
type Service struct {
	repo      Repository
	items     ItemSource
	ledger    Ledger
	txManager tx.Manager
	numerator *numerator.Service
	now       func() time.Time
}

// NewService creates the audit service.
func NewService(repo Repository, items ItemSource, ldg Ledger, txManager tx.Manager, num *numerator.Service) *Service {
	return &Service{
		repo:      repo,
		items:     items,
		ledger:    ldg,
		txManager: txManager,
		numerator: num,
		now:       time.Now,
	}
}

// StartAudit opens an audit over the period and snapshots the current
// derived stock of every active item as the expected quantity.
func (s *Service) StartAudit(ctx context.Context, label string, periodStart, periodEnd time.Time) (*Audit, error) {
	audit := NewAudit(label, periodStart, periodEnd)
	audit.CreatedBy = appctx.GetActorID(ctx)
	audit.UpdatedBy = audit.CreatedBy

	if err := audit.Validate(ctx); err != nil {
		return nil, err
	}
	// Day granularity: starting an audit "today" is fine.
	today := s.now().UTC().Truncate(24 * time.Hour)
	if periodStart.UTC().Truncate(24 * time.Hour).After(today) {
		return nil, apperror.NewInvalidPeriod("period start is in the future").
			WithDetail("periodStart", periodStart)
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		number, err := s.numerator.GetNextNumber(ctx, numerator.DefaultConfig("AUD"), nil, audit.Date)
		if err != nil {
			return fmt.Errorf("generate audit number: %w", err)
		}
		audit.Number = number

		items, err := s.items.ListActive(ctx)
		if err != nil {
			return fmt.Errorf("list active items: %w", err)
		}

		for _, item := range items {
			expected, err := s.ledger.GetItemStock(ctx, item.ID)
			if err != nil {
				return fmt.Errorf("snapshot stock for %s: %w", item.ID, err)
			}
			audit.Lines = append(audit.Lines, AuditLine{
				LineID:   id.New(),
				AuditID:  audit.ID,
				ItemID:   item.ID,
				Expected: expected,
			})
		}

		return s.repo.CreateAudit(ctx, audit)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "audit started",
		"audit_id", audit.ID, "number", audit.Number, "items", len(audit.Lines))
	return audit, nil
}

// GetAudit returns an audit with its lines.
func (s *Service) GetAudit(ctx context.Context, auditID id.ID) (*Audit, error) {
	return s.repo.GetAudit(ctx, auditID)
}

// RecordCount stores a physical count on the audit line for the item.
// The difference against the snapshot is computed here; a zero difference
// needs no justification, so any cause code on it is discarded. A nonzero
// difference without a cause is kept but flagged unjustified.
func (s *Service) RecordCount(ctx context.Context, auditID, itemID id.ID, counted types.Quantity, causeCode, notes string) (*AuditLine, error) {
	if counted.IsNegative() {
		return nil, apperror.NewValidation("counted quantity cannot be negative").
			WithDetail("counted", counted.String())
	}

	var line *AuditLine
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		audit, err := s.repo.GetAuditForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		if audit.Status != StatusEnProgreso {
			return apperror.NewInvalidStateTransition(
				"audit", auditID.String(), string(audit.Status), "recording")
		}

		line, err = s.repo.GetLine(ctx, auditID, itemID)
		if err != nil {
			return err
		}

		c := counted
		line.Counted = &c
		line.Difference = counted - line.Expected
		line.Notes = notes

		if line.Difference.IsZero() {
			line.CauseCode = ""
			line.Unjustified = false
		} else {
			line.CauseCode = causeCode
			line.Unjustified = causeCode == ""
		}

		return s.repo.UpdateLine(ctx, line)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "audit count recorded",
		"audit_id", auditID,
		"item_id", itemID,
		"counted", counted.String(),
		"difference", line.Difference.String(),
		"unjustified", line.Unjustified,
	)
	return line, nil
}

// CompleteAudit closes the audit and posts one adjustment movement per
// justified nonzero difference: entrada when more was counted than
// expected, salida when less. Unjustified lines are skipped; the audit is
// a justification gate, not a stock override. Immutable once completed.
func (s *Service) CompleteAudit(ctx context.Context, auditID id.ID) (*Audit, error) {
	var audit *Audit
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		audit, err = s.repo.GetAuditForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		if audit.Status != StatusEnProgreso {
			return apperror.NewInvalidStateTransition(
				"audit", auditID.String(), string(audit.Status), string(StatusCompletada))
		}

		actor := appctx.GetActorID(ctx)
		applied := 0
		for i := range audit.Lines {
			line := &audit.Lines[i]
			if !line.Applicable() {
				continue
			}

			direction := entity.DirectionEntrada
			if line.Difference.IsNegative() {
				direction = entity.DirectionSalida
			}

			_, err := s.ledger.ApplyMovement(ctx, ledger.ApplyInput{
				ItemID:    line.ItemID,
				Direction: direction,
				Quantity:  line.Difference.Abs(),
				Reference: entity.Reference{
					Kind: entity.RefKindAudit,
					ID:   auditID.String(),
					Line: line.ItemID.String(),
				},
				Actor: actor,
				Note:  fmt.Sprintf("ajuste por auditoria (%s)", line.CauseCode),
			})
			if err != nil {
				return fmt.Errorf("apply adjustment for item %s: %w", line.ItemID, err)
			}
			applied++
		}

		if err := s.repo.UpdateStatus(ctx, auditID, StatusCompletada); err != nil {
			return err
		}
		audit.Status = StatusCompletada

		logger.Info(ctx, "audit completed",
			"audit_id", auditID, "adjustments", applied)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return audit, nil
}

// CancelAudit abandons an in-progress audit. Recorded counts are kept for
// reference but never produce movements.
func (s *Service) CancelAudit(ctx context.Context, auditID id.ID) error {
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		audit, err := s.repo.GetAuditForUpdate(ctx, auditID)
		if err != nil {
			return err
		}
		if audit.Status != StatusEnProgreso {
			return apperror.NewInvalidStateTransition(
				"audit", auditID.String(), string(audit.Status), string(StatusCancelada))
		}
		return s.repo.UpdateStatus(ctx, auditID, StatusCancelada)
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "audit cancelled", "audit_id", auditID)
	return nil
}
