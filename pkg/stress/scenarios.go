package stress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/macropower/stsync/pkg/once"
	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/syncs"
	"github.com/macropower/stsync/pkg/waitable"
)

// Scenario exercises one primitive under the load described by env.
type Scenario func(ctx context.Context, env *Env) error

var (
	scenarioOrder = []string{
		"permits",
		"signal",
		"fairlock",
		"reentrant",
		"acquire_any",
		"acquire_all",
		"signal_and_acquire",
		"countdown",
		"once",
		"keylock",
	}

	scenarios = map[string]Scenario{
		"permits":            runPermits,
		"signal":             runSignal,
		"fairlock":           runFairLock,
		"reentrant":          runReentrant,
		"acquire_any":        runAcquireAny,
		"acquire_all":        runAcquireAll,
		"signal_and_acquire": runSignalAndAcquire,
		"countdown":          runCountdown,
		"once":               runOnce,
		"keylock":            runKeyLock,
	}
)

// Scenarios returns the names of all scenarios, in run order.
func Scenarios() []string {
	out := make([]string, len(scenarioOrder))
	copy(out, scenarioOrder)

	return out
}

// exclusive tracks how many goroutines are inside a critical section.
type exclusive struct {
	holders atomic.Int32
}

func (x *exclusive) enter(what string) error {
	if n := x.holders.Add(1); n != 1 {
		return invariant("%d holders inside %s", n, what)
	}

	return nil
}

func (x *exclusive) exit() {
	x.holders.Add(-1)
}

// Workers take one or two permits and check the in-use count never exceeds
// the maximum.
func runPermits(ctx context.Context, env *Env) error {
	maxCount := max(2, env.Workers/2)

	p, err := waitable.NewCountingPermits(maxCount, maxCount, env.Spin)
	if err != nil {
		return fmt.Errorf("create permits: %w", err)
	}

	var inUse atomic.Int32

	err = env.Run(ctx, func(_ context.Context, w Worker) error {
		n := 1 + w.ID%2

		if err := p.Acquire(n, w.Cargs); err != nil {
			return err
		}

		used := inUse.Add(int32(n))
		inUse.Add(-int32(n))

		if int(used) > maxCount {
			return invariant("%d of %d permits in use", used, maxCount)
		}

		_, err := p.ReleaseN(n)

		return err
	})
	if err != nil {
		return err
	}

	if c := p.CurrentCount(); c != maxCount {
		return invariant("%d of %d permits returned", c, maxCount)
	}

	return nil
}

// Each round resets the signal, parks every worker on it and sets it once.
// Every waiter must be released.
func runSignal(ctx context.Context, env *Env) error {
	s := waitable.NewBinarySignal(false, env.Spin)

	for round := range env.Rounds {
		if ctx.Err() != nil || env.Expired() {
			break
		}

		s.Reset()

		fns := make([]func(park.CancelArgs) error, 0, env.Workers+1)
		for range env.Workers {
			fns = append(fns, func(cargs park.CancelArgs) error {
				return s.Wait(cargs)
			})
		}

		fns = append(fns, func(park.CancelArgs) error {
			s.Set()

			return nil
		})

		if err := env.Group(ctx, fns...); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		env.AddOps(int64(env.Workers))
	}

	return nil
}

func runFairLock(ctx context.Context, env *Env) error {
	var (
		x       exclusive
		counter int64
	)

	l := waitable.NewFairLock(true, env.Spin)

	err := env.Run(ctx, func(_ context.Context, w Worker) error {
		if err := l.Enter(w.Cargs); err != nil {
			return err
		}

		err := x.enter("fair lock")
		counter++
		x.exit()

		return errors.Join(err, l.Exit())
	})
	if err != nil {
		return err
	}

	if counter != env.Ops() {
		return invariant("counter is %d after %d operations", counter, env.Ops())
	}

	return nil
}

func runReentrant(ctx context.Context, env *Env) error {
	var x exclusive

	r := waitable.NewReentrantFairLock(env.Spin)

	err := env.Run(ctx, func(_ context.Context, w Worker) error {
		if err := r.Enter(w.Cargs); err != nil {
			return err
		}

		err := x.enter("reentrant lock")

		ok, nestErr := r.TryEnter()
		if nestErr == nil && !ok {
			nestErr = invariant("owner could not re-enter")
		}

		if nestErr == nil {
			nestErr = r.Exit()
		}

		x.exit()

		return errors.Join(err, nestErr, r.Exit())
	})
	if err != nil {
		return err
	}

	if r.IsOwned() {
		return invariant("reentrant lock still owned")
	}

	return nil
}

// Workers acquire any one of a smaller set of locks.
func runAcquireAny(ctx context.Context, env *Env) error {
	n := max(2, env.Workers/2)
	locks := make([]*waitable.FairLock, n)
	ws := make([]waitable.Waitable, n)
	xs := make([]exclusive, n)

	for i := range n {
		locks[i] = waitable.NewFairLock(true, env.Spin)
		ws[i] = locks[i]
	}

	return env.Run(ctx, func(_ context.Context, w Worker) error {
		idx, err := waitable.AcquireAny(ws, w.Cargs)
		if err != nil {
			return err
		}

		err = xs[idx].enter("lock " + strconv.Itoa(idx))
		xs[idx].exit()

		return errors.Join(err, locks[idx].Exit())
	})
}

// Workers acquire overlapping sets of locks and permits, listed in
// different orders.
func runAcquireAll(ctx context.Context, env *Env) error {
	locks := []*waitable.FairLock{
		waitable.NewFairLock(true, env.Spin),
		waitable.NewFairLock(true, env.Spin),
		waitable.NewFairLock(true, env.Spin),
	}
	xs := make([]exclusive, len(locks))

	p, err := waitable.NewCountingPermits(2, 2, env.Spin)
	if err != nil {
		return fmt.Errorf("create permits: %w", err)
	}

	sets := [][]int{
		{0, 1, -1},
		{-1, 1, 0},
		{2, -1, 0},
		{1, 2},
	}

	err = env.Run(ctx, func(_ context.Context, w Worker) error {
		set := sets[(w.ID+w.Round)%len(sets)]

		ws := make([]waitable.Waitable, 0, len(set))
		for _, i := range set {
			if i < 0 {
				ws = append(ws, p)
			} else {
				ws = append(ws, locks[i])
			}
		}

		if err := waitable.AcquireAll(ws, w.Cargs); err != nil {
			return err
		}

		var errs []error

		for _, i := range set {
			if i >= 0 {
				errs = append(errs, xs[i].enter("lock "+strconv.Itoa(i)))
				xs[i].exit()
			}
		}

		for _, ww := range ws {
			if !ww.Release() {
				errs = append(errs, invariant("release after acquire all failed"))
			}
		}

		return errors.Join(errs...)
	})
	if err != nil {
		return err
	}

	if c := p.CurrentCount(); c != 2 {
		return invariant("%d of 2 permits returned", c)
	}

	return nil
}

// Pairs of goroutines play ping-pong through two auto-reset events.
func runSignalAndAcquire(ctx context.Context, env *Env) error {
	pairs := max(1, env.Workers/2)
	fns := make([]func(park.CancelArgs) error, 0, 2*pairs)

	for range pairs {
		ping := waitable.NewAutoResetEvent(false, env.Spin)
		pong := waitable.NewAutoResetEvent(false, env.Spin)

		fns = append(fns,
			func(cargs park.CancelArgs) error {
				for round := range env.Rounds {
					if err := waitable.SignalAndAcquire(ping, pong, cargs); err != nil {
						return fmt.Errorf("ping round %d: %w", round, err)
					}

					env.AddOps(1)
				}

				return nil
			},
			func(cargs park.CancelArgs) error {
				for round := range env.Rounds {
					if err := ping.Wait(cargs); err != nil {
						return fmt.Errorf("pong round %d: %w", round, err)
					}

					if pong.Set() {
						return invariant("pong was already set")
					}
				}

				return nil
			},
		)
	}

	return env.Group(ctx, fns...)
}

// Each round every worker signals the countdown once while another goroutine
// waits for it. Exactly one signal must set the event.
func runCountdown(ctx context.Context, env *Env) error {
	c, err := waitable.NewCountdownEvent(env.Workers, env.Spin)
	if err != nil {
		return fmt.Errorf("create countdown: %w", err)
	}

	for round := range env.Rounds {
		if ctx.Err() != nil || env.Expired() {
			break
		}

		var sets atomic.Int32

		fns := make([]func(park.CancelArgs) error, 0, env.Workers+1)
		fns = append(fns, c.Wait)

		for range env.Workers {
			fns = append(fns, func(park.CancelArgs) error {
				set, err := c.Signal(1)
				if set {
					sets.Add(1)
				}

				return err
			})
		}

		if err := env.Group(ctx, fns...); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		if n := sets.Load(); n != 1 {
			return invariant("round %d: %d signals set the event", round, n)
		}

		if err := c.Reset(env.Workers); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		env.AddOps(int64(env.Workers))
	}

	return nil
}

var errFirstAttempt = errors.New("first attempt fails")

// Each round all workers race to initialize a value whose first
// initialization attempt fails.
func runOnce(ctx context.Context, env *Env) error {
	for round := range env.Rounds {
		if ctx.Err() != nil || env.Expired() {
			break
		}

		var (
			o     once.InitOnce
			calls atomic.Int32
		)

		fns := make([]func(park.CancelArgs) error, 0, env.Workers)
		for range env.Workers {
			fns = append(fns, func(park.CancelArgs) error {
				for {
					err := o.Do(func() error {
						if calls.Add(1) == 1 {
							return errFirstAttempt
						}

						return nil
					})
					if !errors.Is(err, errFirstAttempt) {
						return err
					}
				}
			})
		}

		if err := env.Group(ctx, fns...); err != nil {
			return fmt.Errorf("round %d: %w", round, err)
		}

		if !o.IsInitialized() {
			return invariant("round %d: not initialized", round)
		}

		if n := calls.Load(); n != 2 {
			return invariant("round %d: %d initialization attempts", round, n)
		}

		env.AddOps(int64(env.Workers))
	}

	return nil
}

// Workers lock keys from a small key space.
func runKeyLock(ctx context.Context, env *Env) error {
	const keys = 4

	kl := syncs.NewKeyLock(env.Spin)
	xs := make([]exclusive, keys)

	return env.Run(ctx, func(ctx context.Context, w Worker) error {
		i := (w.ID + w.Round) % keys
		key := "key-" + strconv.Itoa(i)

		if err := kl.LockContext(ctx, key); err != nil {
			return err
		}

		err := xs[i].enter(key)
		xs[i].exit()

		kl.Unlock(key)

		return err
	})
}
