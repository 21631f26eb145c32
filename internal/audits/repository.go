package audits

import (
	"context"

	"shucway/internal/core/id"
)

// Repository defines persistence for audits and their lines.
type Repository interface {
	// CreateAudit inserts the audit header and its snapshot lines.
	CreateAudit(ctx context.Context, audit *Audit) error

	// GetAudit retrieves an audit with its lines.
	GetAudit(ctx context.Context, auditID id.ID) (*Audit, error)

	// GetAuditForUpdate retrieves the audit header with a row lock so
	// count recording and completion serialize.
	GetAuditForUpdate(ctx context.Context, auditID id.ID) (*Audit, error)

	// UpdateStatus persists a status change.
	UpdateStatus(ctx context.Context, auditID id.ID, status AuditStatus) error

	// GetLine retrieves the line for an item within an audit.
	GetLine(ctx context.Context, auditID, itemID id.ID) (*AuditLine, error)

	// UpdateLine persists count, difference, cause and flags.
	UpdateLine(ctx context.Context, line *AuditLine) error
}
