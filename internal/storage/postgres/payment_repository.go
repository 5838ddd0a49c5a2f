package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/flash-sale/internal/domain"
)

// PaymentRepository persists webhook dedup records and order payment state.
type PaymentRepository struct {
	conn
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{conn{pool: pool}}
}

func (r *PaymentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// FindWebhookRecord returns nil when the key has never been recorded.
func (r *PaymentRepository) FindWebhookRecord(ctx context.Context, key string) (*domain.WebhookRecord, error) {
	const query = `
SELECT idempotency_key, order_id, processed_at, payload_hash, result_state
FROM webhook_records
WHERE idempotency_key = $1`

	var rec domain.WebhookRecord
	err := r.queryRow(ctx, query, key).
		Scan(&rec.IdempotencyKey, &rec.OrderID, &rec.ProcessedAt, &rec.PayloadHash, &rec.ResultState)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find webhook record: %w", err)
	}
	return &rec, nil
}

// InsertWebhookRecord reports false when another writer already owns the key.
func (r *PaymentRepository) InsertWebhookRecord(ctx context.Context, rec domain.WebhookRecord) (bool, error) {
	const stmt = `
INSERT INTO webhook_records (idempotency_key, order_id, processed_at, payload_hash, result_state)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (idempotency_key) DO NOTHING`

	tag, err := r.exec(ctx, stmt, rec.IdempotencyKey, rec.OrderID, rec.ProcessedAt, rec.PayloadHash, rec.ResultState)
	if err != nil {
		return false, fmt.Errorf("insert webhook record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PaymentRepository) GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error) {
	return getOrder(ctx, r.conn, orderID, true)
}

func (r *PaymentRepository) UpdateOrderPayment(ctx context.Context, orderID string, status domain.OrderStatus, meta map[string]any, updatedAt time.Time) error {
	const stmt = `UPDATE orders SET status = $2, payment_meta = $3, updated_at = $4 WHERE id = $1`

	raw, err := encodeMeta(meta)
	if err != nil {
		return err
	}
	tag, err := r.exec(ctx, stmt, orderID, status, raw, updatedAt)
	if err != nil {
		return fmt.Errorf("update order payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOrderNotFound
	}
	return nil
}
