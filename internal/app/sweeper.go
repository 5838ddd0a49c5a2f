package app

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/clock"
	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/events"
	"github.com/cimillas/flash-sale/internal/observability"
)

type SweepRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListExpiredHolds(ctx context.Context, now time.Time, afterID string, limit int) ([]domain.Hold, error)
	GetHoldForUpdate(ctx context.Context, holdID string) (domain.Hold, error)
	UpdateHoldStatus(ctx context.Context, holdID string, status domain.HoldStatus) error
}

const defaultSweepBatchSize = 100

// ExpirySweeper moves holds whose TTL elapsed from active to expired.
type ExpirySweeper struct {
	repo      SweepRepository
	ledger    Invalidator
	clock     clock.Clock
	batchSize int
	logger    *zap.Logger
	metrics   *observability.Metrics
	publisher events.Publisher
}

type SweeperOption func(*ExpirySweeper)

func WithSweepBatchSize(n int) SweeperOption {
	return func(s *ExpirySweeper) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

func WithSweeperLogger(logger *zap.Logger) SweeperOption {
	return func(s *ExpirySweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSweeperMetrics(m *observability.Metrics) SweeperOption {
	return func(s *ExpirySweeper) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithSweeperPublisher(p events.Publisher) SweeperOption {
	return func(s *ExpirySweeper) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewExpirySweeper(repo SweepRepository, ledger Invalidator, clk clock.Clock, opts ...SweeperOption) *ExpirySweeper {
	s := &ExpirySweeper{
		repo:      repo,
		ledger:    ledger,
		clock:     clk,
		batchSize: defaultSweepBatchSize,
		logger:    zap.NewNop(),
		metrics:   observability.NewDiscardMetrics(),
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweepResult struct {
	Scanned  int
	Expired  int
	Skipped  int
	Products []string
}

// Sweep expires every active hold past its TTL as of the start of the run.
// Holds promoted or expired concurrently are skipped.
func (s *ExpirySweeper) Sweep(ctx context.Context) (result SweepResult, err error) {
	start := time.Now()
	defer func() { s.metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := s.clock.Now()
	touched := map[string]struct{}{}

	// Invalidate whatever was committed, even if a later batch fails.
	defer func() {
		for productID := range touched {
			s.ledger.Invalidate(ctx, productID)
			result.Products = append(result.Products, productID)
		}
		slices.Sort(result.Products)
	}()

	afterID := ""
	for {
		batch, err := s.repo.ListExpiredHolds(ctx, now, afterID, s.batchSize)
		if err != nil {
			return result, err
		}
		for _, candidate := range batch {
			result.Scanned++
			expired, err := s.expireOne(ctx, candidate.ID, now)
			if err != nil {
				return result, err
			}
			if !expired {
				result.Skipped++
				continue
			}
			result.Expired++
			touched[candidate.ProductID] = struct{}{}
			s.metrics.HoldsExpired.Inc()
			publish(ctx, s.publisher, s.logger, events.Event{
				Type:       events.HoldExpired,
				ProductID:  candidate.ProductID,
				HoldID:     candidate.ID,
				Quantity:   candidate.Quantity,
				OccurredAt: now,
			})
		}
		if len(batch) < s.batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	if result.Expired > 0 || result.Skipped > 0 {
		s.logger.Info("expiry sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("expired", result.Expired),
			zap.Int("skipped", result.Skipped),
		)
	}
	return result, nil
}

func (s *ExpirySweeper) expireOne(ctx context.Context, holdID string, now time.Time) (bool, error) {
	var expired bool
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		hold, err := s.repo.GetHoldForUpdate(txCtx, holdID)
		if err != nil {
			return err
		}
		if hold.Status != domain.HoldStatusActive || !hold.IsExpired(now) {
			return nil
		}
		if err := s.repo.UpdateHoldStatus(txCtx, holdID, domain.HoldStatusExpired); err != nil {
			return err
		}
		expired = true
		return nil
	})
	return expired, err
}
