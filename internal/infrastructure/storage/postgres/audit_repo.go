package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"shucway/internal/audits"
	"shucway/internal/core/apperror"
	"shucway/internal/core/id"
)

// Compile-time check.
var _ audits.Repository = (*AuditRepo)(nil)

var auditColumns = []string{
	"id", "version", "created_at", "updated_at", "created_by", "updated_by",
	"number", "date", "comment", "label", "period_start", "period_end", "status",
}

var auditLineColumns = []string{
	"line_id", "audit_id", "item_id", "expected", "counted",
	"difference", "cause_code", "unjustified", "notes",
}

// AuditRepo implements audits.Repository. Snapshot lines go in with the
// COPY protocol since an audit covers every active item at once.
type AuditRepo struct {
	txManager *TxManager
	batch     *BatchInserter
}

// NewAuditRepo creates an audit repository.
func NewAuditRepo(txManager *TxManager) *AuditRepo {
	return &AuditRepo{
		txManager: txManager,
		batch:     NewBatchInserter(txManager),
	}
}

func (r *AuditRepo) CreateAudit(ctx context.Context, audit *audits.Audit) error {
	q := qb.Insert(auditsTable).
		Columns(auditColumns...).
		Values(
			audit.ID, audit.Version, audit.CreatedAt, audit.UpdatedAt,
			audit.CreatedBy, audit.UpdatedBy,
			audit.Number, audit.Date, audit.Comment,
			audit.Label, audit.PeriodStart, audit.PeriodEnd, audit.Status,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}

	if len(audit.Lines) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(audit.Lines))
	for _, line := range audit.Lines {
		rows = append(rows, []any{
			line.LineID, line.AuditID, line.ItemID, line.Expected, line.Counted,
			line.Difference, line.CauseCode, line.Unjustified, line.Notes,
		})
	}
	if _, err := r.batch.CopyFromSlice(ctx, auditLinesTable, auditLineColumns, rows); err != nil {
		return fmt.Errorf("insert audit lines: %w", err)
	}
	return nil
}

func (r *AuditRepo) GetAudit(ctx context.Context, auditID id.ID) (*audits.Audit, error) {
	return r.getAudit(ctx, auditID, false)
}

func (r *AuditRepo) GetAuditForUpdate(ctx context.Context, auditID id.ID) (*audits.Audit, error) {
	return r.getAudit(ctx, auditID, true)
}

func (r *AuditRepo) getAudit(ctx context.Context, auditID id.ID, forUpdate bool) (*audits.Audit, error) {
	q := qb.Select(auditColumns...).
		From(auditsTable).
		Where(squirrel.Eq{"id": auditID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var audit audits.Audit
	if err := pgxscan.Get(ctx, querier, &audit, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("audit", auditID.String())
		}
		return nil, fmt.Errorf("get audit: %w", err)
	}

	lq := qb.Select(auditLineColumns...).
		From(auditLinesTable).
		Where(squirrel.Eq{"audit_id": auditID}).
		OrderBy("item_id")
	sql, args, err = lq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lines query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &audit.Lines, sql, args...); err != nil {
		return nil, fmt.Errorf("get audit lines: %w", err)
	}
	return &audit, nil
}

func (r *AuditRepo) UpdateStatus(ctx context.Context, auditID id.ID, status audits.AuditStatus) error {
	q := qb.Update(auditsTable).
		Set("status", status).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"id": auditID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update audit status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("audit", auditID.String())
	}
	return nil
}

func (r *AuditRepo) GetLine(ctx context.Context, auditID, itemID id.ID) (*audits.AuditLine, error) {
	q := qb.Select(auditLineColumns...).
		From(auditLinesTable).
		Where(squirrel.Eq{"audit_id": auditID, "item_id": itemID})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var line audits.AuditLine
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &line, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("audit_line", itemID.String())
		}
		return nil, fmt.Errorf("get audit line: %w", err)
	}
	return &line, nil
}

func (r *AuditRepo) UpdateLine(ctx context.Context, line *audits.AuditLine) error {
	q := qb.Update(auditLinesTable).
		Set("counted", line.Counted).
		Set("difference", line.Difference).
		Set("cause_code", line.CauseCode).
		Set("unjustified", line.Unjustified).
		Set("notes", line.Notes).
		Where(squirrel.Eq{"line_id": line.LineID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txManager.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update audit line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("audit_line", line.LineID.String())
	}
	return nil
}
