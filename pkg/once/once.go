package once

import (
	"fmt"
	"sync/atomic"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
	"github.com/macropower/stsync/pkg/waitq"
)

type phase uint8

const (
	phaseFree phase = iota
	phaseBusy
	phaseAvailable
)

// statusRetry wakes a waiter that must take over the initialization.
const statusRetry = park.StatusSuccess + 1

// state is an immutable snapshot of an [InitOnce]. Waiters are only linked
// while the phase is busy.
type state struct {
	top   *waitq.Node
	phase phase
}

var (
	stateFree      = &state{phase: phaseFree}
	stateBusy      = &state{phase: phaseBusy}
	stateAvailable = &state{phase: phaseAvailable}
)

// InitOnce guards a one-time initialization. The first caller of
// [InitOnce.TryInit] runs the initialization and reports the outcome with
// [InitOnce.InitCompleted] or [InitOnce.InitFailed]; everyone else waits. A
// failed attempt is handed to one waiter, or the lock reverts to free if
// nobody is waiting. The zero value is ready to use.
type InitOnce struct {
	state atomic.Pointer[state]
}

func (o *InitOnce) load() *state {
	s := o.state.Load()
	if s == nil {
		o.state.CompareAndSwap(nil, stateFree)
		s = o.state.Load()
	}

	return s
}

// IsInitialized reports whether an initialization has completed.
func (o *InitOnce) IsInitialized() bool {
	return o.load().phase == phaseAvailable
}

// TryInit returns true if the caller must run the initialization, and false
// once it has been completed by someone else. It blocks while another
// goroutine is initializing, spinning up to spin times first.
func (o *InitOnce) TryInit(spin int, cargs park.CancelArgs) (bool, error) {
	err := cargs.Validate()
	if err != nil {
		return false, err
	}

	var sw park.SpinWait

	spin = park.SpinCount(spin)

	for {
		s := o.load()

		switch s.phase {
		case phaseAvailable:
			return false, nil
		case phaseFree:
			if o.state.CompareAndSwap(s, stateBusy) {
				return true, nil
			}

			continue
		}

		if sw.Count() >= spin {
			break
		}

		sw.SpinOnce()
	}

	if cargs.Timeout == 0 {
		return false, sterrors.ErrTimeout
	}

	tk := park.NewToken(1)
	w := waitq.NewNode(tk, waitq.WaitAny, 1, park.StatusSuccess)

	for {
		s := o.load()

		switch s.phase {
		case phaseAvailable:
			return false, nil
		case phaseFree:
			if o.state.CompareAndSwap(s, stateBusy) {
				return true, nil
			}

			continue
		}

		w.LinkTo(s.top)

		if o.state.CompareAndSwap(s, &state{phase: phaseBusy, top: w}) {
			break
		}
	}

	// Cancelled waiters stay linked; releases skip them.
	ws := tk.Park(0, cargs)

	switch ws {
	case statusRetry:
		return true, nil
	case park.StatusSuccess:
		return false, nil
	}

	return false, ws.Err()
}

// InitCompleted marks the initialization as done and wakes every waiter.
func (o *InitOnce) InitCompleted() error {
	s := o.load()
	if s.phase != phaseBusy {
		return o.misuse(s)
	}

	old := o.state.Swap(stateAvailable)

	for w := old.top; w != nil; {
		next := w.Next()
		w.Wake()
		w = next
	}

	return nil
}

// InitFailed abandons the current attempt. One waiter, if any, is woken to
// retry; otherwise the lock becomes free again.
func (o *InitOnce) InitFailed() error {
	for {
		s := o.load()
		if s.phase != phaseBusy {
			return o.misuse(s)
		}

		if s.top == nil {
			if o.state.CompareAndSwap(s, stateFree) {
				return nil
			}

			continue
		}

		next := stateBusy
		if n := s.top.Next(); n != nil {
			next = &state{phase: phaseBusy, top: n}
		}

		if !o.state.CompareAndSwap(s, next) {
			continue
		}

		tk := s.top.Token()
		if tk.TryLock() {
			tk.Unpark(statusRetry)

			return nil
		}

		// The popped waiter gave up; hand the attempt to the next one.
	}
}

// Do runs fn unless an earlier call completed successfully. A failing fn
// leaves the initialization to the next caller or waiter.
func (o *InitOnce) Do(fn func() error) error {
	run, err := o.TryInit(0, park.None)
	if err != nil || !run {
		return err
	}

	err = fn()
	if err != nil {
		if ferr := o.InitFailed(); ferr != nil {
			return fmt.Errorf("%w: %w", err, ferr)
		}

		return err
	}

	return o.InitCompleted()
}

func (o *InitOnce) misuse(s *state) error {
	if s.phase == phaseAvailable {
		return sterrors.ErrAlreadyInitialized
	}

	return fmt.Errorf("%w: initialization not in progress", sterrors.ErrInvalidState)
}
