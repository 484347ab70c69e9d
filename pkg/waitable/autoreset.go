package waitable

import (
	"github.com/macropower/stsync/pkg/park"
)

// AutoResetEvent is a synchronization event: [AutoResetEvent.Set] releases
// exactly one waiter, in arrival order, or latches until the next waiter
// arrives.
type AutoResetEvent struct {
	permitCore
}

var _ Waitable = (*AutoResetEvent)(nil)

// NewAutoResetEvent creates an [AutoResetEvent] in the given state.
func NewAutoResetEvent(set bool, spin int) *AutoResetEvent {
	e := &AutoResetEvent{}
	e.init(0, 1, spin)

	if set {
		e.count.Store(1)
	}

	return e
}

// Set signals the event and returns its previous state. Setting a set event
// has no effect.
func (e *AutoResetEvent) Set() bool {
	for {
		if e.count.Load() == 1 {
			return true
		}

		if e.count.CompareAndSwap(0, 1) {
			if e.isReleasePending() {
				e.releaseWaitersAndUnlock()
			}

			return false
		}
	}
}

// Reset clears the event and returns its previous state.
func (e *AutoResetEvent) Reset() bool {
	return e.count.CompareAndSwap(1, 0)
}

// IsSet reports whether the event is signalled.
func (e *AutoResetEvent) IsSet() bool {
	return e.count.Load() == 1
}

// Release sets the event. It never fails.
func (e *AutoResetEvent) Release() bool {
	e.Set()

	return true
}

// Wait blocks until the event is set and consumes the signal.
func (e *AutoResetEvent) Wait(cargs park.CancelArgs) error {
	return AcquireOne(e, cargs)
}
