package waitq

import (
	"sync/atomic"
)

// LockedQueue is a FIFO of wait nodes with non-blocking insertion and
// lock-protected removal.
//
// Insertion follows Michael and Scott: the queue has a dummy head and the
// tail may lag one node behind. Removal (the release processing of the
// owning primitive) requires the queue lock from [LockedQueue.TryLock] and
// ends with [LockedQueue.SetHeadAndUnlock].
//
// Call [LockedQueue.Init] before use.
type LockedQueue struct {
	head atomic.Pointer[Node]
	tail atomic.Pointer[Node]

	// A cancelled node that was at the tail when it was cancelled, waiting
	// for a successor so it can be unlinked.
	toUnlink atomic.Pointer[Node]

	locked atomic.Bool
}

// Init empties the queue. It must not be called concurrently with other
// methods.
func (q *LockedQueue) Init() {
	dummy := &Node{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	q.toUnlink.Store(nil)
	q.locked.Store(false)
}

// Head returns the current dummy head. The successor of the head is the
// first waiter.
func (q *LockedQueue) Head() *Node {
	return q.head.Load()
}

// First returns the first waiter, or nil if the queue is empty or locked.
func (q *LockedQueue) First() *Node {
	if q.locked.Load() {
		return nil
	}

	return q.head.Load().Next()
}

// IsEmpty reports whether the queue has no waiters.
func (q *LockedQueue) IsEmpty() bool {
	return q.head.Load().Next() == nil
}

// Len counts the linked nodes. The result is only a snapshot.
func (q *LockedQueue) Len() int {
	n := 0
	for p := q.head.Load().Next(); p != nil && !p.IsUnlinked(); p = p.Next() {
		n++
	}

	return n
}

// TryLock acquires the queue lock without blocking.
func (q *LockedQueue) TryLock() bool {
	return !q.locked.Load() && q.locked.CompareAndSwap(false, true)
}

// Enqueue appends n to the queue. It reports whether n was inserted directly
// behind the head, i.e. whether it is the first waiter.
func (q *LockedQueue) Enqueue(n *Node) bool {
	for {
		t := q.tail.Load()
		tn := t.Next()

		if tn == t {
			// The tail was removed while lagging; restart from the head.
			q.tail.CompareAndSwap(t, q.head.Load())

			continue
		}

		if tn != nil {
			q.advanceTail(t, tn)

			continue
		}

		if t.casNext(nil, n) {
			q.advanceTail(t, n)

			return t == q.head.Load()
		}
	}
}

// Advance tombstones the local head h and returns its successor, which takes
// its place. The queue lock must be held.
func (q *LockedQueue) Advance(h *Node) *Node {
	next := h.Next()
	q.advanceTail(h, next)
	h.markUnlinked()

	return next
}

// SetHeadAndUnlock installs nh as the head, skipping locked nodes at the
// front of the queue, and releases the queue lock.
func (q *LockedQueue) SetHeadAndUnlock(nh *Node) {
	for {
		w := nh.Next()
		if w == nil || !w.IsLocked() {
			break
		}

		q.advanceTail(nh, w)
		nh.markUnlinked()
		nh = w
	}

	q.head.Store(nh)
	q.sweep()
	q.locked.Store(false)
}

// Unlink removes n and any locked nodes before it. The queue lock must be
// held. Nodes at the head or the tail are left in place.
func (q *LockedQueue) Unlink(n *Node) {
	h := q.head.Load()
	if nn := n.Next(); nn == nil || nn == n || n == h {
		return
	}

	pv := h

	var w *Node

	for {
		w = pv.Next()
		if w == nil {
			// Not reachable from the head.
			return
		}

		if w == n {
			break
		}

		if w.IsLocked() {
			pv.next.Store(w.Next())
			w.markUnlinked()
		} else {
			pv = w
		}
	}

	for {
		pv.next.Store(w.Next())
		w.markUnlinked()

		w = pv.Next()
		if w.Next() == nil || !w.IsLocked() {
			return
		}
	}
}

// Cancel tries to remove a node whose token was cancelled. It returns true if
// it acquired the queue lock, in which case the caller must run its release
// processing and finish with [LockedQueue.SetHeadAndUnlock].
//
// A node that was already dequeued is left alone, as the release that
// dequeued it won. A node at the tail is recorded and unlinked once a
// successor arrives.
func (q *LockedQueue) Cancel(n *Node) bool {
	next := n.Next()
	if next == n {
		return false
	}

	if next == nil {
		prev := q.toUnlink.Swap(n)
		if prev == nil || prev == n || !q.TryLock() {
			return false
		}

		q.Unlink(prev)

		return true
	}

	if !q.TryLock() {
		return false
	}

	q.Unlink(n)

	return true
}

func (q *LockedQueue) sweep() {
	d := q.toUnlink.Load()
	if d == nil {
		return
	}

	if d.IsUnlinked() || d == q.head.Load() {
		q.toUnlink.CompareAndSwap(d, nil)

		return
	}

	if d.Next() != nil {
		q.Unlink(d)
		q.toUnlink.CompareAndSwap(d, nil)
	}
}

func (q *LockedQueue) advanceTail(t, nt *Node) {
	if q.tail.Load() == t {
		q.tail.CompareAndSwap(t, nt)
	}
}
