package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/flash-sale/internal/domain"
)

const orderColumns = `id, hold_id, product_id, qty, status, payment_meta, created_at, updated_at`

// OrderRepository backs hold-to-order promotion.
type OrderRepository struct {
	conn
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{conn{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *OrderRepository) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	return getHoldForUpdate(ctx, r.conn, holdID)
}

func (r *OrderRepository) ExpireHold(ctx context.Context, holdID string) error {
	return updateHoldStatus(ctx, r.conn, holdID, domain.HoldStatusExpired, nil)
}

func (r *OrderRepository) MarkHoldUsed(ctx context.Context, holdID string, usedAt time.Time) error {
	return updateHoldStatus(ctx, r.conn, holdID, domain.HoldStatusUsed, &usedAt)
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order domain.Order) error {
	const stmt = `
INSERT INTO orders (id, hold_id, product_id, qty, status, payment_meta, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	meta, err := encodeMeta(order.PaymentMeta)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx, stmt,
		order.ID,
		order.HoldID,
		order.ProductID,
		order.Quantity,
		order.Status,
		meta,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// orders.hold_id is unique: the hold was already consumed.
			return domain.ErrHoldNotActive
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	return getOrder(ctx, r.conn, orderID, false)
}

// getOrder rejects a malformed id before querying: a 22P02 inside a
// transaction would abort it for every statement that follows.
func getOrder(ctx context.Context, c conn, orderID string, forUpdate bool) (domain.Order, error) {
	if uuid.Validate(orderID) != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		o      domain.Order
		holdID *string
		status string
		meta   []byte
	)
	err := c.queryRow(ctx, query, orderID).
		Scan(&o.ID, &holdID, &o.ProductID, &o.Quantity, &status, &meta, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if holdID != nil {
		o.HoldID = *holdID
	}
	o.Status = domain.OrderStatus(status)
	if o.PaymentMeta, err = decodeMeta(meta); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func encodeMeta(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode payment meta: %w", err)
	}
	return b, nil
}

func decodeMeta(b []byte) (map[string]any, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := json.Unmarshal(b, &meta); err != nil {
		return nil, fmt.Errorf("decode payment meta: %w", err)
	}
	return meta, nil
}
