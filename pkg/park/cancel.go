package park

import (
	"fmt"
	"time"

	"github.com/macropower/stsync/pkg/sterrors"
)

// Infinite is the timeout of a wait that never expires.
const Infinite time.Duration = -1

// None waits without a timeout and without cancellers.
var None = CancelArgs{Timeout: Infinite}

// CancelSource is a broadcast cancellation flag that parked tokens can
// register with. See [Alerter] for an implementation.
type CancelSource interface {
	// IsSet reports whether the source has fired.
	IsSet() bool
	// RegisterToken links the token to the source. It returns false if the
	// source has already fired.
	RegisterToken(t *Token) bool
	// DeregisterToken unlinks a previously registered token.
	DeregisterToken(t *Token)
}

// CancelArgs describes how a single wait can end other than by being
// released. The zero value polls once and never blocks; use [None] or
// [NewCancelArgs] for an unbounded wait.
type CancelArgs struct {
	// Source is an optional cancellation source.
	Source CancelSource
	// Interrupt is an optional channel that interrupts the wait when it
	// becomes readable. It only ends the wait if Interruptible is set.
	Interrupt <-chan struct{}
	// Timeout is the maximum wait, or [Infinite].
	Timeout time.Duration
	// Interruptible reports whether Interrupt may end the wait.
	Interruptible bool
}

// CancelOpt configures [CancelArgs].
type CancelOpt func(*CancelArgs)

// WithTimeout bounds the wait. A zero timeout polls once.
func WithTimeout(d time.Duration) CancelOpt {
	return func(c *CancelArgs) {
		c.Timeout = d
	}
}

// WithSource registers the wait with a cancellation source.
func WithSource(s CancelSource) CancelOpt {
	return func(c *CancelArgs) {
		c.Source = s
	}
}

// WithInterrupt makes the wait interruptible by the given channel.
func WithInterrupt(ch <-chan struct{}) CancelOpt {
	return func(c *CancelArgs) {
		c.Interrupt = ch
		c.Interruptible = true
	}
}

// NewCancelArgs creates [CancelArgs] with an [Infinite] timeout, then applies
// the options.
func NewCancelArgs(opts ...CancelOpt) CancelArgs {
	c := None
	for _, opt := range opts {
		opt(&c)
	}

	return c
}

// Validate returns an error if the timeout is below [Infinite].
func (c CancelArgs) Validate() error {
	if c.Timeout < Infinite {
		return fmt.Errorf("%w: %s", sterrors.ErrInvalidTimeout, c.Timeout)
	}

	return nil
}

// AdjustTimeout subtracts the time elapsed since lastTime from the timeout
// and moves lastTime forward. It returns false if the timeout has expired.
func (c *CancelArgs) AdjustTimeout(lastTime *time.Time) bool {
	if c.Timeout == Infinite {
		return true
	}

	now := time.Now()

	elapsed := now.Sub(*lastTime)
	if elapsed <= 0 {
		elapsed = time.Nanosecond
	}

	if c.Timeout <= elapsed {
		return false
	}

	c.Timeout -= elapsed
	*lastTime = now

	return true
}
