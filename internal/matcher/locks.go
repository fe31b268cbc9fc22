package matcher

import (
	"context"
	"sync"
)

// localeLocks is a set of per-locale mutexes whose Lock honors context
// cancellation. Locales are resolved against the taxonomy before locking,
// so the set stays small.
type localeLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLocaleLocks() *localeLocks {
	return &localeLocks{slots: make(map[string]chan struct{})}
}

// Lock blocks until locale is free or ctx is done. The returned unlock
// function is safe to call more than once.
func (l *localeLocks) Lock(ctx context.Context, locale string) (unlock func(), err error) {
	l.mu.Lock()
	slot, ok := l.slots[locale]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[locale] = slot
	}
	l.mu.Unlock()

	select {
	case slot <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-slot }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
