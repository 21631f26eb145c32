package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"shucway/pkg/numerator"
)

// NumeratorQuerier adapts the transaction manager for document numbering.
// Numbers are taken inside the caller's transaction when one is active,
// so an aborted document never burns a gap in strict mode.
type NumeratorQuerier struct {
	txManager *TxManager
}

var _ numerator.Querier = (*NumeratorQuerier)(nil)

// NewNumeratorQuerier creates a querier for the numerator service.
func NewNumeratorQuerier(txManager *TxManager) *NumeratorQuerier {
	return &NumeratorQuerier{txManager: txManager}
}

func (q *NumeratorQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return q.txManager.GetQuerier(ctx).QueryRow(ctx, sql, args...)
}
