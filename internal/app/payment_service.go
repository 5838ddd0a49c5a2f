package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/clock"
	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/events"
	"github.com/cimillas/flash-sale/internal/observability"
)

type PaymentRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindWebhookRecord(ctx context.Context, key string) (*domain.WebhookRecord, error)
	InsertWebhookRecord(ctx context.Context, rec domain.WebhookRecord) (bool, error)
	GetOrderForUpdate(ctx context.Context, orderID string) (domain.Order, error)
	UpdateOrderPayment(ctx context.Context, orderID string, status domain.OrderStatus, meta map[string]any, updatedAt time.Time) error
}

type PaymentOutcome string

const (
	OutcomeProcessed        PaymentOutcome = "processed"
	OutcomeAlreadyProcessed PaymentOutcome = "already_processed"
	OutcomeOrderNotFound    PaymentOutcome = "order_not_found"
)

type PaymentEventInput struct {
	IdempotencyKey string
	OrderID        string
	Status         string
	Payload        map[string]any
}

type PaymentResult struct {
	Outcome     PaymentOutcome
	ResultState string
	Order       *domain.Order
}

// PaymentService applies provider notifications to orders exactly once per
// idempotency key.
type PaymentService struct {
	repo      PaymentRepository
	ledger    Invalidator
	clock     clock.Clock
	logger    *zap.Logger
	metrics   *observability.Metrics
	publisher events.Publisher
}

type PaymentServiceOption func(*PaymentService)

func WithPaymentLogger(logger *zap.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithPaymentMetrics(m *observability.Metrics) PaymentServiceOption {
	return func(s *PaymentService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithPaymentPublisher(p events.Publisher) PaymentServiceOption {
	return func(s *PaymentService) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewPaymentService(repo PaymentRepository, ledger Invalidator, clk clock.Clock, opts ...PaymentServiceOption) *PaymentService {
	s := &PaymentService{
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

func (s *PaymentService) ApplyPaymentEvent(ctx context.Context, in PaymentEventInput) (PaymentResult, error) {
	if strings.TrimSpace(in.IdempotencyKey) == "" {
		return PaymentResult{}, domain.ErrIdempotencyKeyRequired
	}
	status, err := domain.ParsePaymentStatus(in.Status)
	if err != nil {
		return PaymentResult{}, err
	}
	hash, err := PayloadHash(in)
	if err != nil {
		return PaymentResult{}, err
	}
	log := s.logger.With(zap.String("idempotency_key", in.IdempotencyKey), zap.String("order_id", in.OrderID))

	existing, err := s.repo.FindWebhookRecord(ctx, in.IdempotencyKey)
	if err != nil {
		return PaymentResult{}, err
	}
	if existing != nil {
		if existing.PayloadHash != hash {
			log.Warn("idempotency key reused with a different payload")
		}
		log.Info("webhook idempotency hit", zap.String("previous_state", existing.ResultState))
		return s.done(PaymentResult{Outcome: OutcomeAlreadyProcessed, ResultState: existing.ResultState}), nil
	}

	now := s.clock.Now()
	rec := domain.WebhookRecord{
		IdempotencyKey: in.IdempotencyKey,
		OrderID:        in.OrderID,
		ProcessedAt:    now,
		PayloadHash:    hash,
	}

	var result PaymentResult
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetOrderForUpdate(txCtx, in.OrderID)
		if errors.Is(err, domain.ErrOrderNotFound) {
			rec.ResultState = domain.ResultOrderNotFound
			inserted, err := s.repo.InsertWebhookRecord(txCtx, rec)
			if err != nil {
				return err
			}
			if !inserted {
				return s.loadWinner(txCtx, in.IdempotencyKey, &result)
			}
			result = PaymentResult{Outcome: OutcomeOrderNotFound, ResultState: domain.ResultOrderNotFound}
			return nil
		}
		if err != nil {
			return err
		}

		rec.ResultState = string(status)
		inserted, err := s.repo.InsertWebhookRecord(txCtx, rec)
		if err != nil {
			return err
		}
		if !inserted {
			// A concurrent delivery of the same key committed first.
			return s.loadWinner(txCtx, in.IdempotencyKey, &result)
		}

		if err := s.repo.UpdateOrderPayment(txCtx, order.ID, status, in.Payload, now); err != nil {
			return err
		}
		order.Status = status
		order.PaymentMeta = in.Payload
		order.UpdatedAt = now
		result = PaymentResult{Outcome: OutcomeProcessed, ResultState: string(status), Order: &order}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	switch result.Outcome {
	case OutcomeOrderNotFound:
		log.Warn("webhook received for non-existent order")
	case OutcomeProcessed:
		s.ledger.Invalidate(ctx, result.Order.ProductID)
		log.Info("webhook processed", zap.String("status", result.ResultState))
		evtType := events.OrderPaid
		if status == domain.OrderStatusCancelled {
			evtType = events.OrderCancelled
		}
		publish(ctx, s.publisher, s.logger, events.Event{
			Type:       evtType,
			ProductID:  result.Order.ProductID,
			HoldID:     result.Order.HoldID,
			OrderID:    result.Order.ID,
			Quantity:   result.Order.Quantity,
			OccurredAt: now,
		})
	}
	return s.done(result), nil
}

func (s *PaymentService) loadWinner(ctx context.Context, key string, result *PaymentResult) error {
	winner, err := s.repo.FindWebhookRecord(ctx, key)
	if err != nil {
		return err
	}
	if winner == nil {
		return fmt.Errorf("webhook record %q vanished after conflict", key)
	}
	*result = PaymentResult{Outcome: OutcomeAlreadyProcessed, ResultState: winner.ResultState}
	return nil
}

func (s *PaymentService) done(r PaymentResult) PaymentResult {
	s.metrics.WebhookOutcomes.WithLabelValues(string(r.Outcome)).Inc()
	return r
}

// PayloadHash is the hex SHA-256 of the event rendered as JSON with sorted
// object keys, so equal events hash equally regardless of field order.
func PayloadHash(in PaymentEventInput) (string, error) {
	body, err := json.Marshal(map[string]any{
		"idempotency_key":  in.IdempotencyKey,
		"order_id":         in.OrderID,
		"status":           in.Status,
		"provider_payload": in.Payload,
	})
	if err != nil {
		return "", fmt.Errorf("hash payload: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}
