package waitable

import (
	"log/slog"
	"sync/atomic"

	"github.com/petermattis/goid"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
	"github.com/macropower/stsync/pkg/waitq"
)

const noOwner int64 = 0

// ReentrantFairLock is a [FairLock] owned by a goroutine, which may enter it
// recursively. The lock is released when the owner has exited as many times
// as it entered.
type ReentrantFairLock struct {
	lock *FairLock

	// Read by non-owners, so it is atomic.
	owner atomic.Int64

	// Only touched by the owner.
	count int

	abandoned atomic.Bool
}

var _ Waitable = (*ReentrantFairLock)(nil)

// NewReentrantFairLock creates a free [ReentrantFairLock].
func NewReentrantFairLock(spin int) *ReentrantFairLock {
	return &ReentrantFairLock{
		lock: NewFairLock(true, spin),
	}
}

// IsOwned reports whether the calling goroutine owns the lock.
func (r *ReentrantFairLock) IsOwned() bool {
	return r.owner.Load() == goid.Get()
}

// TryEnter acquires the lock without blocking. It returns
// [sterrors.ErrAbandoned] together with true if the previous owner abandoned
// the lock.
func (r *ReentrantFairLock) TryEnter() (bool, error) {
	if !r.TryAcquire() {
		return false, nil
	}

	return true, r.WaitEpilogue()
}

// Enter acquires the lock, blocking as described by cargs. On
// [sterrors.ErrAbandoned] the lock is held by the caller.
func (r *ReentrantFairLock) Enter(cargs park.CancelArgs) error {
	return AcquireOne(r, cargs)
}

// Exit leaves the lock once, releasing it when the nesting count reaches
// zero.
func (r *ReentrantFairLock) Exit() error {
	if !r.IsOwned() {
		return sterrors.ErrNotOwner
	}

	r.count--
	if r.count > 0 {
		return nil
	}

	r.owner.Store(noOwner)

	return r.lock.Exit()
}

// ExitCompletely releases the lock regardless of the nesting count and
// returns the count, so the caller can re-enter to the same depth later.
func (r *ReentrantFairLock) ExitCompletely() (int, error) {
	if !r.IsOwned() {
		return 0, sterrors.ErrNotOwner
	}

	n := r.count
	r.count = 0
	r.owner.Store(noOwner)

	return n, r.lock.Exit()
}

// Abandon releases the lock on behalf of an owner goroutine that terminated
// without exiting. The next acquirer receives [sterrors.ErrAbandoned]. It
// must only be called once the owner can no longer touch the lock.
func (r *ReentrantFairLock) Abandon() error {
	owner := r.owner.Load()
	if owner == noOwner || !r.owner.CompareAndSwap(owner, noOwner) {
		return sterrors.ErrNotOwned
	}

	slog.Warn("reentrant lock abandoned", slog.Int64("owner", owner), slog.Int("depth", r.count))

	r.count = 0
	r.abandoned.Store(true)

	return r.lock.Exit()
}

func (r *ReentrantFairLock) ID() uint64 {
	return r.lock.ID()
}

func (r *ReentrantFairLock) AllowsAcquire() bool {
	return r.IsOwned() || r.lock.AllowsAcquire()
}

// TryAcquire enters the lock without blocking. Ownership is recorded by
// [ReentrantFairLock.WaitEpilogue].
func (r *ReentrantFairLock) TryAcquire() bool {
	if r.IsOwned() {
		r.count++

		return true
	}

	return r.lock.TryAcquire()
}

// Release is [ReentrantFairLock.Exit] reporting success.
func (r *ReentrantFairLock) Release() bool {
	return r.Exit() == nil
}

func (r *ReentrantFairLock) WaitAnyPrologue(tk *park.Token, key park.Status) (*waitq.Node, int) {
	if r.IsOwned() {
		r.count++

		return nil, 0
	}

	return r.lock.WaitAnyPrologue(tk, key)
}

func (r *ReentrantFairLock) WaitAllPrologue(tk *park.Token) (*waitq.Node, int) {
	if r.IsOwned() {
		return nil, 0
	}

	return r.lock.WaitAllPrologue(tk)
}

func (r *ReentrantFairLock) CancelAcquire(n *waitq.Node) {
	r.lock.CancelAcquire(n)
}

// UndoAcquire reverts a [ReentrantFairLock.TryAcquire] or an inline prologue
// whose epilogue has not run.
func (r *ReentrantFairLock) UndoAcquire() {
	if r.IsOwned() {
		r.count--

		return
	}

	r.lock.UndoAcquire()
}

// WaitEpilogue records the caller as the owner after a fresh acquire. It
// returns [sterrors.ErrAbandoned] to the first owner after an abandonment.
func (r *ReentrantFairLock) WaitEpilogue() error {
	g := goid.Get()
	if r.owner.Load() == g {
		return nil
	}

	r.owner.Store(g)
	r.count = 1

	if r.abandoned.CompareAndSwap(true, false) {
		return sterrors.ErrAbandoned
	}

	return nil
}
