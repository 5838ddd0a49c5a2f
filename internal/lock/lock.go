// Package lock provides named mutual exclusion with a bounded wait.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotAcquired means the lock stayed held by someone else for the whole wait.
var ErrNotAcquired = errors.New("lock not acquired")

// ReleaseFunc gives the lock back. It is safe to call once.
type ReleaseFunc func(ctx context.Context) error

// Locker acquires a named lock, waiting at most wait. A zero wait tries once.
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (ReleaseFunc, error)
}

const (
	minPoll = 5 * time.Millisecond
	maxPoll = 100 * time.Millisecond
)

// poll calls try until it succeeds, fails, or wait elapses.
func poll(ctx context.Context, wait time.Duration, try func() (bool, error)) error {
	deadline := time.Now().Add(wait)
	delay := minPoll
	for {
		ok, err := try()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrNotAcquired
		}
		sleep := min(delay, remaining)
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, maxPoll)
	}
}
