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

const holdColumns = `id, product_id, qty, status, created_at, expires_at, used_at`

// firstUUID sorts before every generated id and starts keyset scans.
const firstUUID = "00000000-0000-0000-0000-000000000000"

// HoldRepository backs hold reservation and the expiry sweep.
type HoldRepository struct {
	conn
}

func NewHoldRepository(pool *pgxpool.Pool) *HoldRepository {
	return &HoldRepository{conn{pool: pool}}
}

func (r *HoldRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// GetProductForUpdate row-locks the product until the surrounding tx ends.
func (r *HoldRepository) GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error) {
	return getProduct(ctx, r.conn, productID, true)
}

func (r *HoldRepository) SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error) {
	return sumActiveHolds(ctx, r.conn, productID, now)
}

func (r *HoldRepository) SumPaidOrders(ctx context.Context, productID string) (int, error) {
	return sumPaidOrders(ctx, r.conn, productID)
}

func (r *HoldRepository) CreateHold(ctx context.Context, hold domain.Hold) error {
	const stmt = `
INSERT INTO holds (id, product_id, qty, status, created_at, expires_at, used_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.exec(ctx, stmt,
		hold.ID,
		hold.ProductID,
		hold.Quantity,
		hold.Status,
		hold.CreatedAt,
		hold.ExpiresAt,
		hold.UsedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("create hold: %w", err)
	}
	return nil
}

func (r *HoldRepository) GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error) {
	return getHoldForUpdate(ctx, r.conn, holdID)
}

func (r *HoldRepository) UpdateHoldStatus(ctx context.Context, holdID string, status domain.HoldStatus) error {
	return updateHoldStatus(ctx, r.conn, holdID, status, nil)
}

// ListExpiredHolds returns up to limit active holds whose TTL elapsed at now,
// ordered by id and starting after afterID ("" for the first page).
func (r *HoldRepository) ListExpiredHolds(ctx context.Context, now time.Time, afterID string, limit int) ([]domain.Hold, error) {
	query := `
SELECT ` + holdColumns + `
FROM holds
WHERE status = 'active' AND expires_at <= $1 AND id > $2
ORDER BY id ASC
LIMIT $3`

	if afterID == "" {
		afterID = firstUUID
	}
	rows, err := r.query(ctx, query, now, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()

	var holds []domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, fmt.Errorf("scan hold: %w", err)
		}
		holds = append(holds, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired holds: %w", err)
	}
	return holds, nil
}

func getHoldForUpdate(ctx context.Context, c conn, holdID string) (domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM holds WHERE id = $1 FOR UPDATE`

	h, err := scanHold(c.queryRow(ctx, query, holdID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Hold{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Hold{}, domain.ErrHoldNotFound
		}
		return domain.Hold{}, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

func updateHoldStatus(ctx context.Context, c conn, holdID string, status domain.HoldStatus, usedAt *time.Time) error {
	const stmt = `UPDATE holds SET status = $2, used_at = COALESCE($3, used_at) WHERE id = $1`

	tag, err := c.exec(ctx, stmt, holdID, status, usedAt)
	if err != nil {
		return fmt.Errorf("update hold status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrHoldNotFound
	}
	return nil
}

func scanHold(row pgx.Row) (domain.Hold, error) {
	var h domain.Hold
	var status string
	err := row.Scan(&h.ID, &h.ProductID, &h.Quantity, &status, &h.CreatedAt, &h.ExpiresAt, &h.UsedAt)
	if err != nil {
		return domain.Hold{}, err
	}
	h.Status = domain.HoldStatus(status)
	return h, nil
}
