package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/clock"
	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/events"
	"github.com/cimillas/flash-sale/internal/lock"
	"github.com/cimillas/flash-sale/internal/observability"
)

type HoldRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetProductForUpdate(ctx context.Context, productID string) (domain.Product, error)
	SumActiveHolds(ctx context.Context, productID string, now time.Time) (int, error)
	SumPaidOrders(ctx context.Context, productID string) (int, error)
	CreateHold(ctx context.Context, hold domain.Hold) error
}

type HoldService struct {
	repo      HoldRepository
	locker    lock.Locker
	ledger    Invalidator
	clock     clock.Clock
	holdTTL   time.Duration
	lockWait  time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
	publisher events.Publisher
}

const (
	defaultHoldTTL  = 2 * time.Minute
	defaultLockWait = 3 * time.Second
)

func NewHoldService(repo HoldRepository, locker lock.Locker, ledger Invalidator, clk clock.Clock, opts ...HoldServiceOption) *HoldService {
	svc := &HoldService{
		repo:      repo,
		locker:    locker,
		ledger:    ledger,
		clock:     clk,
		holdTTL:   defaultHoldTTL,
		lockWait:  defaultLockWait,
		logger:    zap.NewNop(),
		metrics:   observability.NewDiscardMetrics(),
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type HoldServiceOption func(*HoldService)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithLockWait bounds how long a request queues for the product lock.
func WithLockWait(d time.Duration) HoldServiceOption {
	return func(s *HoldService) {
		if d >= 0 {
			s.lockWait = d
		}
	}
}

func WithHoldLogger(logger *zap.Logger) HoldServiceOption {
	return func(s *HoldService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithHoldMetrics(m *observability.Metrics) HoldServiceOption {
	return func(s *HoldService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithHoldPublisher(p events.Publisher) HoldServiceOption {
	return func(s *HoldService) {
		if p != nil {
			s.publisher = p
		}
	}
}

type CreateHoldInput struct {
	ProductID string
	Quantity  int
}

func productLockKey(productID string) string {
	return "product:" + productID + ":lock"
}

func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (domain.Hold, error) {
	if in.Quantity <= 0 {
		return domain.Hold{}, domain.ErrInvalidQuantity
	}

	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, productLockKey(in.ProductID), s.lockWait)
	s.metrics.LockWait.Observe(time.Since(waitStart).Seconds())
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			s.metrics.HoldsRejected.WithLabelValues("lock_unavailable").Inc()
			return domain.Hold{}, domain.ErrLockUnavailable
		}
		return domain.Hold{}, err
	}
	defer func() {
		// A fresh context so a cancelled request still frees the lock.
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("release product lock", zap.String("product_id", in.ProductID), zap.Error(err))
		}
	}()

	now := s.clock.Now()
	var result domain.Hold

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		product, err := s.repo.GetProductForUpdate(txCtx, in.ProductID)
		if err != nil {
			return err
		}

		available, err := computeAvailable(txCtx, s.repo, product, now)
		if err != nil {
			return err
		}
		if in.Quantity > available {
			return domain.ErrInsufficientStock
		}

		hold := domain.Hold{
			ID:        newUUID(),
			ProductID: product.ID,
			Quantity:  in.Quantity,
			Status:    domain.HoldStatusActive,
			CreatedAt: now,
			ExpiresAt: now.Add(s.holdTTL),
		}
		if err := s.repo.CreateHold(txCtx, hold); err != nil {
			return err
		}

		result = hold
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.HoldsRejected.WithLabelValues("insufficient_stock").Inc()
		}
		return domain.Hold{}, err
	}

	s.ledger.Invalidate(ctx, result.ProductID)
	s.metrics.HoldsCreated.Inc()
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:       events.HoldCreated,
		ProductID:  result.ProductID,
		HoldID:     result.ID,
		Quantity:   result.Quantity,
		OccurredAt: now,
	})
	return result, nil
}
