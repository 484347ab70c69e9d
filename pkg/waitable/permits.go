package waitable

import (
	"fmt"
	"sync/atomic"

	"fortio.org/safecast"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
	"github.com/macropower/stsync/pkg/waitq"
)

// permitCore is a bounded permit counter whose waiters are released from a
// [waitq.LockedQueue] in arrival order.
//
// Waiters are only woken while the queue lock is held. A wait-any node is
// granted its permits before its token is locked, so a woken waiter owns them
// already. A wait-all node is only counted down. Draining stops at the first
// wait-any node that cannot be satisfied, so later arrivals never overtake it.
type permitCore struct {
	q     waitq.LockedQueue
	count atomic.Int32
	id    uint64
	max   int32
	spin  int
}

func (c *permitCore) init(count, maxCount int32, spin int) {
	c.id = nextID()
	c.q.Init()
	c.count.Store(count)
	c.max = maxCount
	c.spin = park.SpinCount(spin)
}

func (c *permitCore) ID() uint64 {
	return c.id
}

// AllowsAcquire reports whether a permit is available and nobody is queued.
func (c *permitCore) AllowsAcquire() bool {
	return c.count.Load() > 0 && c.q.IsEmpty()
}

// TryAcquire takes one permit without blocking.
func (c *permitCore) TryAcquire() bool {
	return c.tryAcquire(1)
}

func (c *permitCore) Release() bool {
	_, err := c.release(1)

	return err == nil
}

func (c *permitCore) WaitAnyPrologue(tk *park.Token, key park.Status) (*waitq.Node, int) {
	return c.enqueue(tk, waitq.WaitAny, 1, key)
}

func (c *permitCore) WaitAllPrologue(tk *park.Token) (*waitq.Node, int) {
	if c.AllowsAcquire() {
		return nil, 0
	}

	return c.enqueue(tk, waitq.WaitAll, 1, park.StatusStateChange)
}

func (c *permitCore) CancelAcquire(n *waitq.Node) {
	if c.q.Cancel(n) || c.isReleasePending() {
		c.releaseWaitersAndUnlock()
	}
}

func (c *permitCore) UndoAcquire() {
	c.undo(1)
}

func (c *permitCore) WaitEpilogue() error {
	return nil
}

// tryAcquire takes n permits, but only if nobody is queued.
func (c *permitCore) tryAcquire(n int32) bool {
	for {
		cur := c.count.Load()
		if cur < n || !c.q.IsEmpty() {
			return false
		}

		if c.count.CompareAndSwap(cur, cur-n) {
			return true
		}
	}
}

// tryAcquireQueued takes n permits on behalf of a queued waiter.
func (c *permitCore) tryAcquireQueued(n int32) bool {
	for {
		cur := c.count.Load()
		if cur < n {
			return false
		}

		if c.count.CompareAndSwap(cur, cur-n) {
			return true
		}
	}
}

func (c *permitCore) undo(n int32) {
	c.count.Add(n)

	if c.isReleasePending() {
		c.releaseWaitersAndUnlock()
	}
}

// release adds n permits and wakes the waiters they satisfy. It returns the
// previous count.
func (c *permitCore) release(n int32) (int32, error) {
	for {
		cur := c.count.Load()
		if cur > c.max-n {
			return cur, fmt.Errorf("%w: %d + %d exceeds %d", sterrors.ErrPermitOverflow, cur, n, c.max)
		}

		if c.count.CompareAndSwap(cur, cur+n) {
			if c.isReleasePending() {
				c.releaseWaitersAndUnlock()
			}

			return cur, nil
		}
	}
}

func (c *permitCore) enqueue(tk *park.Token, d waitq.Discipline, n int32, key park.Status) (*waitq.Node, int) {
	if d == waitq.WaitAny && c.tryAcquire(n) {
		return nil, 0
	}

	w := waitq.NewNode(tk, d, n, key)
	first := c.q.Enqueue(w)

	if c.isReleasePending() {
		c.releaseWaitersAndUnlock()
	}

	if first {
		return w, c.spin
	}

	return w, 0
}

// isReleasePending acquires the queue lock if the first waiter can be
// released or removed.
func (c *permitCore) isReleasePending() bool {
	w := c.q.First()

	return w != nil && (w.IsLocked() || c.count.Load() >= w.Request()) && c.q.TryLock()
}

// releaseWaitersAndUnlock drains the queue. The queue lock must be held.
func (c *permitCore) releaseWaitersAndUnlock() {
	for {
		h := c.q.Head()

		for {
			w := h.Next()
			if w == nil {
				break
			}

			if !w.IsLocked() {
				if w.Discipline() == waitq.WaitAll {
					if c.count.Load() < w.Request() {
						break
					}

					w.Wake()
				} else {
					if !c.tryAcquireQueued(w.Request()) {
						break
					}

					if !w.Wake() {
						c.count.Add(w.Request())
					}
				}
			}

			h = c.q.Advance(h)
		}

		c.q.SetHeadAndUnlock(h)

		if !c.isReleasePending() {
			return
		}
	}
}

// CountingPermits is a counting semaphore with a maximum count. Waiters are
// released in arrival order; a waiter that requests more permits than are
// available holds back everyone queued behind it.
type CountingPermits struct {
	permitCore
}

var _ Waitable = (*CountingPermits)(nil)

// NewCountingPermits creates [CountingPermits] with count initial permits, at
// most maxCount permits and the given spin count for the first waiter.
func NewCountingPermits(count, maxCount, spin int) (*CountingPermits, error) {
	c, err := safecast.Conv[int32](count)
	if err != nil {
		return nil, fmt.Errorf("%w: count: %w", sterrors.ErrInvalidCount, err)
	}

	m, err := safecast.Conv[int32](maxCount)
	if err != nil {
		return nil, fmt.Errorf("%w: max: %w", sterrors.ErrInvalidCount, err)
	}

	if m <= 0 || c < 0 || c > m {
		return nil, fmt.Errorf("%w: count %d, max %d", sterrors.ErrInvalidCount, count, maxCount)
	}

	p := &CountingPermits{}
	p.init(c, m, spin)

	return p, nil
}

func (p *CountingPermits) request(n int) (int32, error) {
	r, err := safecast.Conv[int32](n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", sterrors.ErrInvalidCount, err)
	}

	if r <= 0 || r > p.max {
		return 0, fmt.Errorf("%w: request %d, max %d", sterrors.ErrInvalidCount, n, p.max)
	}

	return r, nil
}

// TryAcquireN takes n permits without blocking.
func (p *CountingPermits) TryAcquireN(n int) (bool, error) {
	r, err := p.request(n)
	if err != nil {
		return false, err
	}

	return p.tryAcquire(r), nil
}

// Acquire takes n permits, blocking as described by cargs.
func (p *CountingPermits) Acquire(n int, cargs park.CancelArgs) error {
	r, err := p.request(n)
	if err != nil {
		return err
	}

	err = cargs.Validate()
	if err != nil {
		return err
	}

	if p.tryAcquire(r) {
		return nil
	}

	if cargs.Timeout == 0 {
		return sterrors.ErrTimeout
	}

	tk := park.NewToken(1)

	w, sc := p.enqueue(tk, waitq.WaitAny, r, park.StatusSuccess)
	if w == nil {
		return nil
	}

	ws := tk.Park(sc, cargs)
	if ws != park.StatusSuccess {
		p.CancelAcquire(w)

		return ws.Err()
	}

	return nil
}

// ReleaseN returns n permits and wakes the waiters they satisfy. It returns
// the count before the release.
func (p *CountingPermits) ReleaseN(n int) (int, error) {
	r, err := p.request(n)
	if err != nil {
		return 0, err
	}

	prev, err := p.release(r)

	return int(prev), err
}

// CurrentCount returns the number of available permits.
func (p *CountingPermits) CurrentCount() int {
	return int(p.count.Load())
}
