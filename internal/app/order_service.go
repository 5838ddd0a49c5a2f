package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/clock"
	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/events"
	"github.com/cimillas/flash-sale/internal/observability"
)

type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	ExpireHold(ctx context.Context, holdID string) error
	MarkHoldUsed(ctx context.Context, holdID string, usedAt time.Time) error
	CreateOrder(ctx context.Context, order domain.Order) error
}

type OrderService struct {
	repo      OrderRepository
	ledger    Invalidator
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
	publisher events.Publisher
}

type OrderServiceOption func(*OrderService)

func WithOrderLogger(logger *zap.Logger) OrderServiceOption {
	return func(s *OrderService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithOrderMetrics(m *observability.Metrics) OrderServiceOption {
	return func(s *OrderService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithOrderPublisher(p events.Publisher) OrderServiceOption {
	return func(s *OrderService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewOrderService(repo OrderRepository, ledger Invalidator, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	s := &OrderService{
		repo:      repo,
		ledger:    ledger,
		clock:     clk,
		logger:    zap.NewNop(),
		metrics:   observability.NewDiscardMetrics(),
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PromoteHold consumes an active hold and creates a pending_payment order for
// the same product and quantity. A hold found past its TTL is expired on the
// spot and that transition is committed before ErrHoldExpired is returned.
func (s *OrderService) PromoteHold(ctx context.Context, holdID string) (domain.Order, error) {
	now := s.clock.Now()

	var (
		order       domain.Order
		lazyExpired bool
		hold        domain.Hold
	)
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		hold, err = s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		if hold.Status != domain.HoldStatusActive {
			return domain.ErrHoldNotActive
		}

		if hold.IsExpired(now) {
			if err := s.repo.ExpireHold(txCtx, hold.ID); err != nil {
				return err
			}
			// Returning nil commits the expiry.
			lazyExpired = true
			return nil
		}

		if err := s.repo.MarkHoldUsed(txCtx, hold.ID, now); err != nil {
			return err
		}
		order = domain.Order{
			ID:        newUUID(),
			HoldID:    hold.ID,
			ProductID: hold.ProductID,
			Quantity:  hold.Quantity,
			Status:    domain.OrderStatusPendingPayment,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return s.repo.CreateOrder(txCtx, order)
	})
	if err != nil {
		s.rejected(err)
		return domain.Order{}, err
	}

	s.ledger.Invalidate(ctx, hold.ProductID)

	if lazyExpired {
		s.metrics.HoldsExpired.Inc()
		s.metrics.OrdersRejected.WithLabelValues("hold_expired").Inc()
		publish(ctx, s.publisher, s.logger, events.Event{
			Type:       events.HoldExpired,
			ProductID:  hold.ProductID,
			HoldID:     hold.ID,
			Quantity:   hold.Quantity,
			OccurredAt: now,
		})
		return domain.Order{}, domain.ErrHoldExpired
	}

	s.metrics.OrdersPromoted.Inc()
	publish(ctx, s.publisher, s.logger, events.Event{
		Type:       events.OrderCreated,
		ProductID:  order.ProductID,
		HoldID:     order.HoldID,
		OrderID:    order.ID,
		Quantity:   order.Quantity,
		OccurredAt: now,
	})
	return order, nil
}

func (s *OrderService) rejected(err error) {
	switch {
	case errors.Is(err, domain.ErrHoldNotActive):
		s.metrics.OrdersRejected.WithLabelValues("hold_not_active").Inc()
	case errors.Is(err, domain.ErrHoldNotFound), errors.Is(err, domain.ErrInvalidID):
		s.metrics.OrdersRejected.WithLabelValues("hold_not_found").Inc()
	}
}
