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

// ProductRepository serves product reads and the stock sums behind the ledger.
type ProductRepository struct {
	conn
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{conn{pool: pool}}
}

func (r *ProductRepository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	return getProduct(ctx, r.conn, id, false)
}

func (r *ProductRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	const query = `
SELECT id, name, price, total_stock, created_at
FROM products
ORDER BY created_at ASC, id ASC`

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.TotalStock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return products, nil
}

// CreateProduct inserts a product. Only seeding and tests call it.
func (r *ProductRepository) CreateProduct(ctx context.Context, p domain.Product) error {
	const stmt = `
INSERT INTO products (id, name, price, total_stock, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := r.exec(ctx, stmt, p.ID, p.Name, p.Price, p.TotalStock, p.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *ProductRepository) SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error) {
	return sumActiveHolds(ctx, r.conn, productID, now)
}

func (r *ProductRepository) SumPaidOrders(ctx context.Context, productID string) (int, error) {
	return sumPaidOrders(ctx, r.conn, productID)
}

func getProduct(ctx context.Context, c conn, id string, forUpdate bool) (domain.Product, error) {
	query := `SELECT id, name, price, total_stock, created_at FROM products WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var p domain.Product
	err := c.queryRow(ctx, query, id).Scan(&p.ID, &p.Name, &p.Price, &p.TotalStock, &p.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Product{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

func sumActiveHolds(ctx context.Context, c conn, productID string, now time.Time) (int, error) {
	const query = `
SELECT COALESCE(SUM(qty), 0)
FROM holds
WHERE product_id = $1 AND status = 'active' AND expires_at > $2`

	var total int
	if err := c.queryRow(ctx, query, productID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum active holds: %w", err)
	}
	return total, nil
}

func sumPaidOrders(ctx context.Context, c conn, productID string) (int, error) {
	const query = `
SELECT COALESCE(SUM(qty), 0)
FROM orders
WHERE product_id = $1 AND status = 'paid'`

	var total int
	if err := c.queryRow(ctx, query, productID).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum paid orders: %w", err)
	}
	return total, nil
}
