package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_ExclusiveAndTimesOut(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	release, err := l.Acquire(ctx, "product:1:lock", time.Second)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "product:1:lock", 20*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotAcquired)

	other, err := l.Acquire(ctx, "product:2:lock", 0)
	require.NoError(t, err, "different keys must not contend")
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	again, err := l.Acquire(ctx, "product:1:lock", 0)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestMemoryLocker_HonoursContext(t *testing.T) {
	l := NewMemoryLocker()
	release, err := l.Acquire(context.Background(), "k", 0)
	require.NoError(t, err)
	defer release(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Acquire(ctx, "k", time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryLocker_SerializesCriticalSection(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, "k", 5*time.Second)
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = release(ctx)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestMemoryLocker_ForgetsIdleKeys(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLocker()

	for _, key := range []string{"product:1:lock", "product:2:lock", "product:3:lock"} {
		release, err := l.Acquire(ctx, key, 0)
		require.NoError(t, err)
		require.NoError(t, release(ctx))
	}
	assert.Zero(t, l.size())

	release, err := l.Acquire(ctx, "product:1:lock", 0)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, "product:1:lock", 10*time.Millisecond)
	require.ErrorIs(t, err, ErrNotAcquired)
	assert.Equal(t, 1, l.size(), "held key stays")

	require.NoError(t, release(ctx))
	assert.Zero(t, l.size())
}

func TestPoll_BacksOffUntilDeadline(t *testing.T) {
	calls := 0
	start := time.Now()
	err := poll(context.Background(), 30*time.Millisecond, func() (bool, error) {
		calls++
		return false, nil
	})
	assert.ErrorIs(t, err, ErrNotAcquired)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Greater(t, calls, 1)
}
