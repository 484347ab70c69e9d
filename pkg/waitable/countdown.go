package waitable

import (
	"fmt"
	"math"
	"sync/atomic"

	"fortio.org/safecast"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
)

// CountdownEvent becomes set when its count is signalled down to zero.
type CountdownEvent struct {
	done  *BinarySignal
	count atomic.Int32
}

// NewCountdownEvent creates a [CountdownEvent] with the given initial count.
// A zero count creates a set event.
func NewCountdownEvent(count, spin int) (*CountdownEvent, error) {
	n, err := toCount(count)
	if err != nil {
		return nil, err
	}

	c := &CountdownEvent{
		done: NewBinarySignal(n == 0, spin),
	}
	c.count.Store(n)

	return c, nil
}

func toCount(n int) (int32, error) {
	c, err := safecast.Conv[int32](n)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", sterrors.ErrInvalidCount, err)
	}

	if c < 0 {
		return 0, fmt.Errorf("%w: %d", sterrors.ErrInvalidCount, n)
	}

	return c, nil
}

// Signal decrements the count by n. It reports whether this call set the
// event. Signalling below zero is an error and leaves the count unchanged.
func (c *CountdownEvent) Signal(n int) (bool, error) {
	d, err := toCount(n)
	if err != nil {
		return false, err
	}

	for {
		cur := c.count.Load()
		if d > cur || (d == 0 && cur == 0) {
			return false, fmt.Errorf("%w: signal %d with count %d", sterrors.ErrInvalidCount, n, cur)
		}

		if c.count.CompareAndSwap(cur, cur-d) {
			if cur == d {
				c.done.Set()

				return true, nil
			}

			return false, nil
		}
	}
}

// TryAddCount increments the count by n. It returns false if the event is
// already set.
func (c *CountdownEvent) TryAddCount(n int) (bool, error) {
	d, err := toCount(n)
	if err != nil {
		return false, err
	}

	for {
		cur := c.count.Load()
		if cur == 0 {
			return false, nil
		}

		if cur > math.MaxInt32-d {
			return false, fmt.Errorf("%w: count overflow", sterrors.ErrInvalidCount)
		}

		if c.count.CompareAndSwap(cur, cur+d) {
			return true, nil
		}
	}
}

// AddCount increments the count by n, failing if the event is already set.
func (c *CountdownEvent) AddCount(n int) error {
	ok, err := c.TryAddCount(n)
	if err != nil {
		return err
	}

	if !ok {
		return fmt.Errorf("%w: countdown already set", sterrors.ErrInvalidState)
	}

	return nil
}

// Reset sets the count to n and the event state to match. It must not be
// called concurrently with other methods.
func (c *CountdownEvent) Reset(n int) error {
	d, err := toCount(n)
	if err != nil {
		return err
	}

	c.count.Store(d)

	if d == 0 {
		c.done.Set()
	} else {
		c.done.Reset()
	}

	return nil
}

// CurrentCount returns the remaining count.
func (c *CountdownEvent) CurrentCount() int {
	return int(c.count.Load())
}

// IsSet reports whether the count reached zero.
func (c *CountdownEvent) IsSet() bool {
	return c.done.IsSet()
}

// Wait blocks until the count reaches zero.
func (c *CountdownEvent) Wait(cargs park.CancelArgs) error {
	return c.done.Wait(cargs)
}

// Waitable returns the signal that is set when the count reaches zero, for
// use with [AcquireAny] and [AcquireAll].
func (c *CountdownEvent) Waitable() Waitable {
	return c.done
}
