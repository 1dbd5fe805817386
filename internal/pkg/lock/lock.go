// Package lock serializes work per actor.
// Every inbound event for one actor runs under that actor's lock, so the
// conversation step sequence observed by a user is strictly ordered.
package lock

import (
	"context"
	"sync"
)

// actorMutex is a one-slot semaphore so waiting can be cancelled.
type actorMutex struct {
	ch      chan struct{}
	waiters int
}

// ActorLock hands out one mutex per actor id and drops it once
// nobody holds or waits for it.
type ActorLock struct {
	mu    sync.Mutex
	locks map[int64]*actorMutex
}

// NewActorLock creates a new ActorLock instance.
func NewActorLock() *ActorLock {
	return &ActorLock{locks: make(map[int64]*actorMutex)}
}

// acquireRef returns the actor's mutex and registers the caller as a waiter.
func (l *ActorLock) acquireRef(actorID int64) *actorMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[actorID]
	if !ok {
		m = &actorMutex{ch: make(chan struct{}, 1)}
		l.locks[actorID] = m
	}
	m.waiters++
	return m
}

// releaseRef drops the caller's reference and forgets idle mutexes.
func (l *ActorLock) releaseRef(actorID int64, m *actorMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m.waiters--
	if m.waiters == 0 {
		delete(l.locks, actorID)
	}
}

// Lock blocks until the actor's lock is held.
func (l *ActorLock) Lock(actorID int64) {
	m := l.acquireRef(actorID)
	m.ch <- struct{}{}
}

// LockContext blocks until the lock is held or ctx is done.
func (l *ActorLock) LockContext(ctx context.Context, actorID int64) error {
	m := l.acquireRef(actorID)
	select {
	case m.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		l.releaseRef(actorID, m)
		if ctx.Err() == context.DeadlineExceeded {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// TryLock acquires the lock only if it is free.
func (l *ActorLock) TryLock(actorID int64) bool {
	m := l.acquireRef(actorID)
	select {
	case m.ch <- struct{}{}:
		return true
	default:
		l.releaseRef(actorID, m)
		return false
	}
}

// Unlock releases the actor's lock. Unlocking a free lock is a no-op.
func (l *ActorLock) Unlock(actorID int64) {
	l.mu.Lock()
	m, ok := l.locks[actorID]
	l.mu.Unlock()
	if !ok {
		return
	}

	select {
	case <-m.ch:
		l.releaseRef(actorID, m)
	default:
	}
}

// WithLock runs fn while holding the actor's lock.
func (l *ActorLock) WithLock(actorID int64, fn func() error) error {
	l.Lock(actorID)
	defer l.Unlock(actorID)
	return fn()
}

// WithLockContext runs fn while holding the actor's lock, giving up if ctx
// ends before the lock is acquired.
func (l *ActorLock) WithLockContext(ctx context.Context, actorID int64, fn func() error) error {
	if err := l.LockContext(ctx, actorID); err != nil {
		return err
	}
	defer l.Unlock(actorID)
	return fn()
}

// IsLocked reports whether the actor's lock is currently held.
// The answer may be stale as soon as it is returned.
func (l *ActorLock) IsLocked(actorID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[actorID]
	return ok && len(m.ch) == 1
}

// Len returns the number of actors with a held or awaited lock.
func (l *ActorLock) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
