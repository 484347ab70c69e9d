package waitable

import (
	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
)

// FairLock is a non-reentrant lock that grants ownership in arrival order.
// It has no owner identity: any goroutine may call [FairLock.Exit].
type FairLock struct {
	permitCore
}

var _ Waitable = (*FairLock)(nil)

// NewFairLock creates a [FairLock], initially free or held.
func NewFairLock(free bool, spin int) *FairLock {
	l := &FairLock{}
	l.init(0, 1, spin)

	if free {
		l.count.Store(1)
	}

	return l
}

// TryEnter acquires the lock if it is free and nobody is queued.
func (l *FairLock) TryEnter() bool {
	return l.tryAcquire(1)
}

// Enter acquires the lock, blocking as described by cargs.
func (l *FairLock) Enter(cargs park.CancelArgs) error {
	return AcquireOne(l, cargs)
}

// Exit releases the lock, handing it to the first waiter if there is one.
func (l *FairLock) Exit() error {
	_, err := l.release(1)
	if err != nil {
		return sterrors.ErrNotOwned
	}

	return nil
}

// IsHeld reports whether the lock is currently owned.
func (l *FairLock) IsHeld() bool {
	return l.count.Load() == 0
}
