package lock

import (
	"context"
	"errors"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker guards a read-modify-write cycle over a shared resource. The returned
// unlock func must be called exactly once on every exit path.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// LocalLocker is an in-process mutex that honours context cancellation while
// waiting.
type LocalLocker struct {
	sem chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, errors.Join(ErrNotAcquired, ctx.Err())
	}
}
