package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/flash-sale/internal/clock"
	"github.com/cimillas/flash-sale/internal/domain"
	"github.com/cimillas/flash-sale/internal/events"
	"github.com/cimillas/flash-sale/internal/lock"
	"github.com/cimillas/flash-sale/internal/observability"
)

func TestHoldService_CreateHold(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	makeSvc := func(stock int, opts ...HoldServiceOption) (*HoldService, *fakeStore, *spyLedger) {
		store := newFakeStore()
		store.addProduct("p1", stock)
		ledger := &spyLedger{}
		svc := NewHoldService(store, lock.NewMemoryLocker(), ledger, clock.NewFixed(now), opts...)
		return svc, store, ledger
	}

	t.Run("creates hold with default two minute TTL", func(t *testing.T) {
		pub := &recordingPublisher{}
		svc, _, ledger := makeSvc(10, WithHoldPublisher(pub))

		hold, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 3})
		require.NoError(t, err)
		assert.NotEmpty(t, hold.ID)
		assert.Equal(t, domain.HoldStatusActive, hold.Status)
		assert.Equal(t, now.Add(2*time.Minute), hold.ExpiresAt)
		assert.Equal(t, []string{"p1"}, ledger.calls())
		assert.Equal(t, []events.Type{events.HoldCreated}, pub.types())
	})

	t.Run("counts active holds and paid orders against stock", func(t *testing.T) {
		svc, store, _ := makeSvc(10)
		store.addHold(domain.Hold{ID: "h1", ProductID: "p1", Quantity: 4, Status: domain.HoldStatusActive, ExpiresAt: now.Add(time.Minute)})
		store.addHold(domain.Hold{ID: "h2", ProductID: "p1", Quantity: 5, Status: domain.HoldStatusActive, ExpiresAt: now.Add(-time.Second)})
		store.addOrder(domain.Order{ID: "o1", HoldID: "hx", ProductID: "p1", Quantity: 3, Status: domain.OrderStatusPaid})
		store.addOrder(domain.Order{ID: "o2", HoldID: "hy", ProductID: "p1", Quantity: 2, Status: domain.OrderStatusCancelled})

		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 4})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)

		_, err = svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 3})
		require.NoError(t, err)
	})

	t.Run("zero stock always rejects", func(t *testing.T) {
		svc, _, ledger := makeSvc(0)
		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 1})
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
		assert.Empty(t, ledger.calls())
	})

	t.Run("rejects non-positive quantity", func(t *testing.T) {
		svc, _, _ := makeSvc(10)
		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 0})
		require.ErrorIs(t, err, domain.ErrInvalidQuantity)
	})

	t.Run("unknown product", func(t *testing.T) {
		svc, _, _ := makeSvc(10)
		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "missing", Quantity: 1})
		require.ErrorIs(t, err, domain.ErrProductNotFound)
	})

	t.Run("custom TTL", func(t *testing.T) {
		svc, _, _ := makeSvc(10, WithHoldTTL(30*time.Second))
		hold, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 1})
		require.NoError(t, err)
		assert.Equal(t, now.Add(30*time.Second), hold.ExpiresAt)
	})

	t.Run("publisher failure does not fail the hold", func(t *testing.T) {
		pub := &recordingPublisher{err: errors.New("nats down")}
		svc, _, _ := makeSvc(10, WithHoldPublisher(pub))
		_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 1})
		require.NoError(t, err)
	})
}

func TestHoldService_LockUnavailable(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addProduct("p1", 10)
	locker := lock.NewMemoryLocker()
	metrics := observability.NewDiscardMetrics()
	svc := NewHoldService(store, locker, &spyLedger{}, clock.NewSystem(),
		WithLockWait(20*time.Millisecond), WithHoldMetrics(metrics))

	release, err := locker.Acquire(context.Background(), productLockKey("p1"), 0)
	require.NoError(t, err)
	defer func() { _ = release(context.Background()) }()

	_, err = svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 1})
	require.ErrorIs(t, err, domain.ErrLockUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.HoldsRejected.WithLabelValues("lock_unavailable")))
}

func TestHoldService_ReleasesLockOnFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addProduct("p1", 1)
	locker := lock.NewMemoryLocker()
	svc := NewHoldService(store, locker, &spyLedger{}, clock.NewSystem(), WithLockWait(50*time.Millisecond))

	_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 2})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	release, err := locker.Acquire(context.Background(), productLockKey("p1"), 0)
	require.NoError(t, err, "lock must be free after a rejected hold")
	require.NoError(t, release(context.Background()))
}

func TestHoldService_ConcurrentHoldsNeverOversell(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.addProduct("p1", 5)
	clk := clock.NewSystem()
	svc := NewHoldService(store, lock.NewMemoryLocker(), &spyLedger{}, clk)

	const attempts = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		full int
	)
	start := make(chan struct{})
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.CreateHold(context.Background(), CreateHoldInput{ProductID: "p1", Quantity: 1})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, full)

	held, err := store.SumActiveHolds(context.Background(), "p1", clk.Now())
	require.NoError(t, err)
	assert.Equal(t, 5, held)
}
