package syncs

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
	"github.com/macropower/stsync/pkg/waitable"
)

// KeyLocker provides per-key mutual exclusion.
// See [KeyLock] for an implementation.
type KeyLocker interface {
	Lock(key string)
	Unlock(key string)
}

// KeyLock is a per-key fair lock that allows independent keys to be locked
// concurrently while serializing access to the same key in arrival order.
// Create instances with [NewKeyLock], or use the zero value directly.
type KeyLock struct {
	locks map[string]*waitable.FairLock
	mu    sync.Mutex
	spin  int
}

// NewKeyLock creates a new [KeyLock]. Contended waiters spin up to spin times
// before parking.
func NewKeyLock(spin int) *KeyLock {
	return &KeyLock{
		locks: make(map[string]*waitable.FairLock),
		spin:  spin,
	}
}

func (kl *KeyLock) getLock(key string) *waitable.FairLock {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if kl.locks == nil {
		kl.locks = make(map[string]*waitable.FairLock)
	}

	l, ok := kl.locks[key]
	if !ok {
		l = waitable.NewFairLock(true, kl.spin)
		kl.locks[key] = l
	}

	return l
}

// Lock acquires the lock for the given key, blocking if it is already held.
func (kl *KeyLock) Lock(key string) {
	// An unbounded wait without cancellers cannot fail.
	_ = kl.getLock(key).Enter(park.None)
}

// LockContext acquires the lock for the given key, giving up when ctx is
// done.
func (kl *KeyLock) LockContext(ctx context.Context, key string) error {
	cargs, stop := park.FromContext(ctx)
	defer stop()

	err := kl.getLock(key).Enter(cargs)
	if err == nil {
		return nil
	}

	if cause := context.Cause(ctx); cause != nil {
		return fmt.Errorf("lock %q: %w: %w", key, err, cause)
	}

	if errors.Is(err, sterrors.ErrTimeout) {
		// The timeout came from the deadline, which may fire before ctx
		// reports it.
		return fmt.Errorf("lock %q: %w: %w", key, err, context.DeadlineExceeded)
	}

	return err
}

// TryLock acquires the lock for the given key if it is free.
func (kl *KeyLock) TryLock(key string) bool {
	return kl.getLock(key).TryEnter()
}

// Unlock releases the lock for the given key. Unlocking a key that is not
// locked panics, like [sync.Mutex.Unlock].
func (kl *KeyLock) Unlock(key string) {
	if err := kl.getLock(key).Exit(); err != nil {
		panic("syncs: unlock of unlocked key " + key + ": " + err.Error())
	}
}
