package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"shucway/internal/core/appctx"
	"shucway/internal/core/id"
	"shucway/pkg/logger"
)

// CompressionAlgo specifies the compression applied to entry details.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// OperationEntry is one step of a multi-step maintenance operation, such
// as the purchase-order delete cascade. Failed steps are recorded with
// their error so partial cleanups stay observable.
type OperationEntry struct {
	ID                id.ID           `db:"id"`
	Operation         string          `db:"operation"`
	EntityID          id.ID           `db:"entity_id"`
	Step              string          `db:"step"`
	Succeeded         bool            `db:"succeeded"`
	Error             string          `db:"error"`
	Details           json.RawMessage `db:"details"`
	DetailsCompressed []byte          `db:"details_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	UserID            string          `db:"user_id"`
	CreatedAt         time.Time       `db:"created_at"`
}

// OperationLog persists operation entries in sys_operation_log. Large
// detail payloads are zstd-compressed.
type OperationLog struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewOperationLog creates an operation log writer.
func NewOperationLog(txManager *TxManager) (*OperationLog, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &OperationLog{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record inserts one entry.
func (l *OperationLog) Record(ctx context.Context, entry OperationEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.UserID == "" {
		entry.UserID = appctx.GetActorID(ctx)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Details) > l.compressThreshold {
		entry.DetailsCompressed = l.encoder.EncodeAll(entry.Details, nil)
		entry.Details = nil
		entry.CompressionAlgo = CompressionZstd
	}

	sql := `
		INSERT INTO sys_operation_log (
			id, operation, entity_id, step, succeeded, error,
			details, details_compressed, compression_algo, user_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := l.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.Operation, entry.EntityID, entry.Step,
		entry.Succeeded, entry.Error,
		entry.Details, entry.DetailsCompressed, entry.CompressionAlgo,
		entry.UserID, entry.CreatedAt,
	)
	return err
}

// RecordStep implements receiving.CleanupRecorder for the delete-order
// cascade. It never fails the caller; write errors are only logged.
func (l *OperationLog) RecordStep(ctx context.Context, orderID id.ID, step string, stepErr error, details map[string]any) {
	entry := OperationEntry{
		Operation: "delete_order",
		EntityID:  orderID,
		Step:      step,
		Succeeded: stepErr == nil,
	}
	if stepErr != nil {
		entry.Error = stepErr.Error()
	}
	if len(details) > 0 {
		payload, err := json.Marshal(details)
		if err == nil {
			entry.Details = payload
		}
	}

	if err := l.Record(ctx, entry); err != nil {
		logger.Error(ctx, "operation log write failed",
			"operation", entry.Operation, "step", step, "error", err)
	}
}

// GetEntityHistory returns the recorded steps for an entity, newest first.
func (l *OperationLog) GetEntityHistory(ctx context.Context, operation string, entityID id.ID, limit int) ([]OperationEntry, error) {
	sql := `
		SELECT id, operation, entity_id, step, succeeded, error,
		       details, details_compressed, compression_algo, user_id, created_at
		FROM sys_operation_log
		WHERE operation = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := l.txManager.GetQuerier(ctx).Query(ctx, sql, operation, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []OperationEntry
	for rows.Next() {
		var e OperationEntry
		err := rows.Scan(
			&e.ID, &e.Operation, &e.EntityID, &e.Step, &e.Succeeded, &e.Error,
			&e.Details, &e.DetailsCompressed, &e.CompressionAlgo, &e.UserID, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}

		if e.CompressionAlgo == CompressionZstd && len(e.DetailsCompressed) > 0 {
			decompressed, err := l.decoder.DecodeAll(e.DetailsCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress details: %w", err)
			}
			e.Details = decompressed
			e.DetailsCompressed = nil
		}

		entries = append(entries, e)
	}
	return entries, rows.Err()
}
