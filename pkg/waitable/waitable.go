package waitable

import (
	"sync/atomic"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/waitq"
)

// Waitable is a synchronization primitive that can take part in a single or
// multi-object wait.
//
// Prologues either enqueue a node for the token and return it together with a
// suggested spin count, or return a nil node when the acquire can complete
// inline. For a wait-any prologue a nil node means one unit was acquired on
// the caller's behalf; the caller then locks the token itself, and calls
// UndoAcquire if another waitable locked it first. A wait-all prologue never
// acquires anything.
type Waitable interface {
	// ID returns the identity used to order multi-object waits.
	ID() uint64
	// AllowsAcquire reports whether TryAcquire would currently succeed.
	AllowsAcquire() bool
	// TryAcquire acquires one unit without blocking.
	TryAcquire() bool
	// Release releases one unit. It returns false if the release is not
	// allowed, e.g. the lock is not owned or the permit count is at its
	// maximum.
	Release() bool
	WaitAnyPrologue(tk *park.Token, key park.Status) (*waitq.Node, int)
	WaitAllPrologue(tk *park.Token) (*waitq.Node, int)
	// CancelAcquire removes a node whose token was locked by another
	// waitable, or cancelled.
	CancelAcquire(n *waitq.Node)
	// UndoAcquire returns a unit obtained by TryAcquire or an inline
	// prologue.
	UndoAcquire()
	// WaitEpilogue runs after a successful acquire and before the wait
	// returns.
	WaitEpilogue() error
}

var lastID atomic.Uint64

func nextID() uint64 {
	return lastID.Add(1)
}
