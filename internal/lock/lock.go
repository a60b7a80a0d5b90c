// Package lock provides named exclusive locks used to serialize work on a single entity.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired before the caller gave up.
var ErrTimeout = errors.New("lock acquisition timed out")

// Release gives a held lock back. Calling it more than once is a no-op.
type Release func()

// Locker hands out exclusive locks keyed by entity name.
type Locker interface {
	// Lock blocks until key is held by the caller or ctx is done.
	Lock(ctx context.Context, key string) (Release, error)
}

// RideKey is the lock key guarding a ride and everything it owns.
func RideKey(rideID string) string {
	return "ride:" + rideID
}

// DriverKey is the lock key guarding ride creation for a driver.
func DriverKey(driverID string) string {
	return "driver:" + driverID
}

// KeyedMutex is an in-process Locker. Idle keys are dropped so the map does not grow without bound.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock acquires key, waiting for the current holder to release it.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (Release, error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, s)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.sem
			k.unref(key, s)
		})
	}, nil
}

// Len returns the number of keys currently held or waited on.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

func (k *KeyedMutex) unref(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

// WithWait bounds how long l waits for a key. A wait that runs out yields ErrTimeout.
func WithWait(l Locker, wait time.Duration) Locker {
	if wait <= 0 {
		return l
	}
	return boundedLocker{next: l, wait: wait}
}

type boundedLocker struct {
	next Locker
	wait time.Duration
}

func (b boundedLocker) Lock(ctx context.Context, key string) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, b.wait)
	defer cancel()
	return b.next.Lock(ctx, key)
}

var (
	_ Locker = (*KeyedMutex)(nil)
	_ Locker = boundedLocker{}
)
