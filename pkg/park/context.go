package park

import (
	"context"
	"time"
)

// FromContext derives [CancelArgs] from ctx. The deadline, if any, becomes the
// timeout, and cancellation of ctx sets an [Alerter] registered as the
// source. Call stop once the wait completes to release the context hook.
func FromContext(ctx context.Context) (CancelArgs, func() bool) {
	cargs := None

	if deadline, ok := ctx.Deadline(); ok {
		cargs.Timeout = max(0, time.Until(deadline))
	}

	if ctx.Done() == nil {
		return cargs, func() bool { return false }
	}

	a := NewAlerter(ctx.Err() != nil)
	cargs.Source = a

	stop := context.AfterFunc(ctx, func() {
		a.Set()
	})

	return cargs, stop
}
