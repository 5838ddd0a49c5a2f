// Package worker runs background jobs on a fixed interval.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cimillas/flash-sale/internal/app"
	"github.com/cimillas/flash-sale/internal/lock"
	"github.com/cimillas/flash-sale/internal/observability"
)

// SweepLockKey keeps sweeps on different instances from overlapping.
const SweepLockKey = "sweeper:expire-holds"

type Sweeper interface {
	Sweep(ctx context.Context) (app.SweepResult, error)
}

// ExpiryWorker runs the hold expiry sweep every interval. A tick that finds
// another sweep in progress is skipped.
type ExpiryWorker struct {
	sweeper  Sweeper
	locker   lock.Locker
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
}

func NewExpiryWorker(
	sweeper Sweeper,
	locker lock.Locker,
	logger *zap.Logger,
	metrics *observability.Metrics,
	interval time.Duration,
) *ExpiryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewDiscardMetrics()
	}
	return &ExpiryWorker{
		sweeper:  sweeper,
		locker:   locker,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
	}
}

// Start blocks until ctx is cancelled.
func (w *ExpiryWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("expiry worker started", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("expiry worker stopped")
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("expiry sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce sweeps if no other sweep holds the lock. ran is false when skipped.
func (w *ExpiryWorker) RunOnce(ctx context.Context) (ran bool, err error) {
	release, err := w.locker.Acquire(ctx, SweepLockKey, 0)
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			w.metrics.SweepSkipped.Inc()
			w.logger.Debug("expiry sweep skipped, previous run still active")
			return false, nil
		}
		return false, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			w.logger.Warn("release sweep lock", zap.Error(err))
		}
	}()

	if _, err := w.sweeper.Sweep(ctx); err != nil {
		return true, err
	}
	return true, nil
}
