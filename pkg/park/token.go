package park

import (
	"sync/atomic"
)

const (
	waitInProgress uint32 = 1 << 31
	lockCountMask  uint32 = 1<<16 - 1
)

// MaxReleasers is the largest lock count a [Token] can be created with.
const MaxReleasers = lockCountMask

// Token is a single goroutine's wait ticket.
//
// The state packs the remaining lock count (the number of releasers that must
// call [Token.TryLock] before the owner may be woken) with a wait-in-progress
// flag that stays set until the owner commits to blocking on its [Spot].
//
// A token is owned by the goroutine that created it. Only the owner may call
// [Token.Park], [Token.SelfCancel], [Token.UnparkSelf] and [Token.Reset].
type Token struct {
	state  atomic.Uint32
	status atomic.Int32

	// Link used while registered with an [Alerter].
	next atomic.Pointer[Token]

	// Set by the owner before it clears the in-progress flag.
	spot *Spot
}

// NewToken creates a [Token] that is locked after n calls to [Token.TryLock].
func NewToken(n uint16) *Token {
	t := &Token{}
	t.Reset(n)

	return t
}

// Reset reinitializes the token for n releasers and clears its alerter link.
func (t *Token) Reset(n uint16) {
	t.next.Store(nil)
	t.status.Store(int32(StatusSuccess))
	t.state.Store(uint32(n) | waitInProgress)
}

// IsLocked reports whether the lock count reached zero.
func (t *Token) IsLocked() bool {
	return t.state.Load()&lockCountMask == 0
}

// Status returns the recorded wait status.
func (t *Token) Status() Status {
	return Status(t.status.Load())
}

// TryLock decrements the lock count. It returns true iff this call drove the
// count to zero, in which case the caller must wake the owner.
func (t *Token) TryLock() bool {
	for {
		s := t.state.Load()
		if s&lockCountMask == 0 {
			return false
		}

		if t.state.CompareAndSwap(s, s-1) {
			return s&lockCountMask == 1
		}
	}
}

// TryCancel forces the lock count to zero, preserving the in-progress flag.
// It returns true iff no other caller locked or cancelled the token first.
func (t *Token) TryCancel() bool {
	for {
		s := t.state.Load()
		if s&lockCountMask == 0 {
			return false
		}

		if t.state.CompareAndSwap(s, s&waitInProgress) {
			return true
		}
	}
}

// SelfCancel cancels the token. Only the owner may call it, and only before
// the token has been published to any other goroutine.
func (t *Token) SelfCancel() {
	t.state.Store(waitInProgress)
}

// unparkInProgress records the status and reports whether the owner was
// still spinning, in which case it observes the status without blocking.
func (t *Token) unparkInProgress(s Status) bool {
	t.status.Store(int32(s))

	return t.state.Load()&waitInProgress != 0 &&
		t.state.Swap(0)&waitInProgress != 0
}

// Unpark wakes the owner with the given status. It must only be called by the
// goroutine that won [Token.TryLock] or [Token.TryCancel].
func (t *Token) Unpark(s Status) {
	if t.unparkInProgress(s) {
		return
	}

	t.spot.Set()
}

// UnparkSelf completes the token from its owner goroutine.
func (t *Token) UnparkSelf(s Status) {
	t.status.Store(int32(s))
	t.state.Store(0)
}

func (t *Token) testAndClearInProgress() bool {
	for {
		s := t.state.Load()
		if s&waitInProgress == 0 {
			return false
		}

		if t.state.CompareAndSwap(s, s&^waitInProgress) {
			return true
		}
	}
}

// Park blocks the owner until the token is unparked, spinning up to spinCount
// times first. It never returns while a releaser that won the token still has
// to deliver its wake.
func (t *Token) Park(spinCount int, cargs CancelArgs) Status {
	var sw SpinWait

	for {
		if t.state.Load() == 0 {
			return t.Status()
		}

		if cargs.Source != nil && cargs.Source.IsSet() && t.TryCancel() {
			return StatusCancelled
		}

		if spinCount <= 0 {
			break
		}

		spinCount--
		sw.SpinOnce()
	}

	spot := allocSpot()
	t.spot = spot

	if !t.testAndClearInProgress() {
		freeSpot(spot)

		return t.Status()
	}

	registered := false
	if cargs.Source != nil {
		registered = cargs.Source.RegisterToken(t)
		if !registered {
			if t.TryCancel() {
				freeSpot(spot)

				return StatusCancelled
			}

			// Someone else locked the token; their wake is on its way.
			cargs = None
		}
	}

	ws := spot.Wait(cargs)
	if ws != StatusSuccess {
		if t.TryCancel() {
			t.UnparkSelf(ws)
		} else {
			spot.Wait(None)
		}
	}

	if registered {
		cargs.Source.DeregisterToken(t)
	}

	freeSpot(spot)

	return t.Status()
}

// Sleep parks a token that nobody else can lock, returning when the timeout
// expires or the cancellers fire. Expiry of the timeout is not an error.
func Sleep(cargs CancelArgs) error {
	err := cargs.Validate()
	if err != nil {
		return err
	}

	ws := NewToken(1).Park(0, cargs)
	if ws == StatusTimeout {
		return nil
	}

	return ws.Err()
}
