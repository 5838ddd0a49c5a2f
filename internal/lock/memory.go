package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker serializes callers inside one process only. A key's slot lives
// while someone holds or waits on it.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]*memorySlot
}

type memorySlot struct {
	ch   chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]*memorySlot)}
}

func (l *MemoryLocker) ref(key string) *memorySlot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[key]
	if !ok {
		s = &memorySlot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *MemoryLocker) unref(key string, s *memorySlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func (l *MemoryLocker) Acquire(ctx context.Context, key string, wait time.Duration) (ReleaseFunc, error) {
	s := l.ref(key)
	release := func(context.Context) error {
		<-s.ch
		l.unref(key, s)
		return nil
	}

	select {
	case s.ch <- struct{}{}:
		return release, nil
	default:
	}
	if wait <= 0 {
		l.unref(key, s)
		return nil, ErrNotAcquired
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case s.ch <- struct{}{}:
		return release, nil
	case <-timer.C:
		l.unref(key, s)
		return nil, ErrNotAcquired
	case <-ctx.Done():
		l.unref(key, s)
		return nil, ctx.Err()
	}
}

func (l *MemoryLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
