package booking

import (
	"context"
	"sync"
)

// LocalSlotLocker is an in-process keyed mutex. Entries are dropped once no
// goroutine holds or waits on them.
type LocalSlotLocker struct {
	mu    sync.Mutex
	slots map[string]*slotMutex
}

type slotMutex struct {
	sem  chan struct{}
	refs int
}

func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{slots: make(map[string]*slotMutex)}
}

func (l *LocalSlotLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.slots[key]
	if !ok {
		m = &slotMutex{sem: make(chan struct{}, 1)}
		l.slots[key] = m
	}
	m.refs++
	l.mu.Unlock()

	select {
	case m.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(key, m)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-m.sem
			l.release(key, m)
		})
	}, nil
}

func (l *LocalSlotLocker) release(key string, m *slotMutex) {
	l.mu.Lock()
	m.refs--
	if m.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}
