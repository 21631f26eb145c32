package dto

import (
	"time"

	"shucway/internal/core/types"
)

// StartAuditRequest opens a physical-count audit over a period.
type StartAuditRequest struct {
	Label       string    `json:"label" binding:"required"`
	PeriodStart time.Time `json:"periodStart" binding:"required"`
	PeriodEnd   time.Time `json:"periodEnd" binding:"required"`
}

// RecordCountRequest records a physical count for one item.
type RecordCountRequest struct {
	ItemID    string         `json:"itemId" binding:"required"`
	Counted   types.Quantity `json:"counted"`
	CauseCode string         `json:"causeCode,omitempty"`
	Notes     string         `json:"notes,omitempty"`
}
