// Command seed inserts demo products for local runs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/config"
	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/observability"
	"github.com/cimillas/flash-sale/internal/storage/postgres"
	"github.com/cimillas/flash-sale/migrations"
)

var demoProducts = []struct {
	name  string
	price string
	stock int
}{
	{"Limited Edition Sneakers", "149.99", 100},
	{"Signed Vinyl", "59.00", 25},
	{"Collector Hoodie", "89.50", 10},
}

func main() {
	stock := flag.Int("stock", 0, "override stock for every demo product")
	flag.Parse()

	if err := run(*stock); err != nil {
		fmt.Fprintf(os.Stderr, "seed: %v\n", err)
		os.Exit(1)
	}
}

func run(stockOverride int) error {
	if _, err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger("flash-sale-seed", cfg.Log.Level)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect to db: %w", err)
	}
	defer pool.Close()

	if err := migrations.Apply(ctx, pool); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	repo := postgres.NewProductRepository(pool)
	now := time.Now().UTC()
	for _, p := range demoProducts {
		stock := p.stock
		if stockOverride > 0 {
			stock = stockOverride
		}
		product := domain.Product{
			ID:         uuid.NewString(),
			Name:       p.name,
			Price:      decimal.RequireFromString(p.price),
			TotalStock: stock,
			CreatedAt:  now,
		}
		if err := repo.CreateProduct(ctx, product); err != nil {
			return err
		}
		logger.Info("product created",
			zap.String("id", product.ID),
			zap.String("name", product.Name),
			zap.Int("stock", product.TotalStock),
		)
	}
	return nil
}
