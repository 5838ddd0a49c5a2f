package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cimillas/flash-sale/internal/cache"
	"github.com/cimillas/flash-sale/internal/clock"
	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/observability"
)

// StockReader exposes the live rows available stock is derived from.
type StockReader interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error)
	SumPaidOrders(ctx context.Context, productID string) (int, error)
}

// Invalidator drops a product's cached available stock.
type Invalidator interface {
	Invalidate(ctx context.Context, productID string)
}

const defaultLedgerCacheTTL = 5 * time.Second

// StockLedger answers "how many units can still be held" for display. Hold
// creation never trusts it and recomputes under the product lock instead.
type StockLedger struct {
	repo    StockReader
	cache   cache.IntCache
	clock   clock.Clock
	ttl     time.Duration
	group   singleflight.Group
	logger  *zap.Logger
	metrics *observability.Metrics
}

type StockLedgerOption func(*StockLedger)

func WithLedgerCacheTTL(d time.Duration) StockLedgerOption {
	return func(l *StockLedger) {
		if d > 0 {
			l.ttl = d
		}
	}
}

func WithLedgerLogger(logger *zap.Logger) StockLedgerOption {
	return func(l *StockLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithLedgerMetrics(m *observability.Metrics) StockLedgerOption {
	return func(l *StockLedger) {
		if m != nil {
			l.metrics = m
		}
	}
}

func NewStockLedger(repo StockReader, c cache.IntCache, clk clock.Clock, opts ...StockLedgerOption) *StockLedger {
	l := &StockLedger{
		repo:    repo,
		cache:   c,
		clock:   clk,
		ttl:     defaultLedgerCacheTTL,
		logger:  zap.NewNop(),
		metrics: observability.NewDiscardMetrics(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func availableStockKey(productID string) string {
	return "product:" + productID + ":available_stock"
}

func (l *StockLedger) GetAvailableStock(ctx context.Context, productID string) (int, error) {
	key := availableStockKey(productID)

	cached, err := l.cache.GetInt(ctx, key)
	switch {
	case err == nil:
		l.metrics.LedgerCache.WithLabelValues("hit").Inc()
		return cached, nil
	case errors.Is(err, cache.ErrMiss):
		l.metrics.LedgerCache.WithLabelValues("miss").Inc()
	default:
		l.metrics.LedgerCache.WithLabelValues("error").Inc()
		l.logger.Warn("ledger cache read failed", zap.String("product_id", productID), zap.Error(err))
	}

	// The fill is shared by every waiter, so it must not die with the
	// caller that happened to start it.
	fillCtx := context.WithoutCancel(ctx)
	v, err, _ := l.group.Do(productID, func() (any, error) {
		available, err := l.compute(fillCtx, productID)
		if err != nil {
			return 0, err
		}
		if err := l.cache.SetInt(fillCtx, key, available, l.ttl); err != nil {
			l.logger.Warn("ledger cache write failed", zap.String("product_id", productID), zap.Error(err))
		}
		return available, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (l *StockLedger) compute(ctx context.Context, productID string) (int, error) {
	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return computeAvailable(ctx, l.repo, product, l.clock.Now())
}

// Invalidate is best effort: a failed delete only delays freshness by one TTL.
func (l *StockLedger) Invalidate(ctx context.Context, productID string) {
	if err := l.cache.Delete(ctx, availableStockKey(productID)); err != nil {
		l.logger.Warn("ledger cache invalidation failed", zap.String("product_id", productID), zap.Error(err))
	}
}

type stockSums interface {
	SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error)
	SumPaidOrders(ctx context.Context, productID string) (int, error)
}

// computeAvailable derives available stock from live rows, clamped at zero.
func computeAvailable(ctx context.Context, sums stockSums, product domain.Product, now time.Time) (int, error) {
	held, err := sums.SumActiveHolds(ctx, product.ID, now)
	if err != nil {
		return 0, fmt.Errorf("sum active holds: %w", err)
	}
	paid, err := sums.SumPaidOrders(ctx, product.ID)
	if err != nil {
		return 0, fmt.Errorf("sum paid orders: %w", err)
	}
	return max(0, product.TotalStock-held-paid), nil
}
