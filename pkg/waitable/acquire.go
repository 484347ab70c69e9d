package waitable

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"fortio.org/safecast"
	"github.com/hashicorp/go-multierror"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
	"github.com/macropower/stsync/pkg/waitq"
)

// AcquireOne acquires w, blocking as described by cargs.
func AcquireOne(w Waitable, cargs park.CancelArgs) error {
	err := cargs.Validate()
	if err != nil {
		return err
	}

	if w.TryAcquire() {
		return w.WaitEpilogue()
	}

	if cargs.Timeout == 0 {
		return sterrors.ErrTimeout
	}

	tk := park.NewToken(1)

	n, sc := w.WaitAnyPrologue(tk, park.StatusSuccess)
	if n == nil {
		return w.WaitEpilogue()
	}

	ws := tk.Park(sc, cargs)
	if ws != park.StatusSuccess {
		w.CancelAcquire(n)

		return ws.Err()
	}

	return w.WaitEpilogue()
}

// AcquireAny acquires one of ws and returns its index. When several are
// available at once, the lowest index wins.
func AcquireAny(ws []Waitable, cargs park.CancelArgs) (int, error) {
	err := cargs.Validate()
	if err != nil {
		return -1, err
	}

	if len(ws) == 0 {
		return -1, fmt.Errorf("%w: no waitables", sterrors.ErrInvalidCount)
	}

	if _, err := safecast.Conv[int32](len(ws)); err != nil {
		return -1, fmt.Errorf("%w: %w", sterrors.ErrInvalidCount, err)
	}

	for i, w := range ws {
		if w.TryAcquire() {
			return i, w.WaitEpilogue()
		}
	}

	if cargs.Timeout == 0 {
		return -1, sterrors.ErrTimeout
	}

	tk := park.NewToken(1)
	nodes := make([]*waitq.Node, len(ws))
	spin := 0

	for i, w := range ws {
		key := park.Status(i)

		n, sc := w.WaitAnyPrologue(tk, key)
		if n == nil {
			if tk.TryLock() {
				tk.UnparkSelf(key)
			} else {
				w.UndoAcquire()
			}

			break
		}

		nodes[i] = n
		spin = max(spin, sc)

		if tk.IsLocked() {
			break
		}
	}

	st := tk.Park(spin, cargs)

	for i, n := range nodes {
		if n != nil && park.Status(i) != st {
			ws[i].CancelAcquire(n)
		}
	}

	if !st.IsWakeKey() {
		return -1, st.Err()
	}

	idx := int(st)

	return idx, ws[idx].WaitEpilogue()
}

// AcquireAll atomically acquires every waitable in ws. Waitables are acquired
// in identity order, so concurrent calls over overlapping sets cannot
// deadlock. The same waitable must not appear twice.
func AcquireAll(ws []Waitable, cargs park.CancelArgs) error {
	err := cargs.Validate()
	if err != nil {
		return err
	}

	sorted, err := sortByID(ws)
	if err != nil {
		return err
	}

	count, err := safecast.Conv[uint16](len(sorted))
	if err != nil {
		return fmt.Errorf("%w: %d waitables", sterrors.ErrInvalidCount, len(sorted))
	}

	if allowsAcquireAll(sorted) && tryAcquireAll(sorted) {
		return waitEpilogues(sorted)
	}

	if cargs.Timeout == 0 {
		return sterrors.ErrTimeout
	}

	lastTime := time.Now()
	nodes := make([]*waitq.Node, len(sorted))

	for attempt := 1; ; attempt++ {
		tk := park.NewToken(count)
		clear(nodes)

		spin := 1
		spinless := false

		for i, w := range sorted {
			n, sc := w.WaitAllPrologue(tk)
			if n == nil {
				if tk.TryLock() {
					tk.UnparkSelf(park.StatusStateChange)
				}

				continue
			}

			nodes[i] = n

			switch {
			case sc == 0:
				spinless = true
				spin = 0
			case !spinless:
				spin = max(spin, sc)
			}
		}

		st := tk.Park(spin, cargs)
		if st != park.StatusStateChange {
			for i, n := range nodes {
				if n != nil {
					sorted[i].CancelAcquire(n)
				}
			}

			return st.Err()
		}

		if tryAcquireAll(sorted) {
			return waitEpilogues(sorted)
		}

		if !cargs.AdjustTimeout(&lastTime) {
			return sterrors.ErrTimeout
		}

		slog.Debug("acquire all lost a race, retrying",
			slog.Int("waitables", len(sorted)),
			slog.Int("attempt", attempt),
		)
	}
}

// SignalAndAcquire releases toSignal and acquires toWaitOn. The wait is
// registered with toWaitOn before toSignal is released, so a waiter woken by
// the release cannot overtake it. If the release fails, no acquire takes
// place and [sterrors.ErrSignalFailed] is returned.
func SignalAndAcquire(toSignal, toWaitOn Waitable, cargs park.CancelArgs) error {
	err := cargs.Validate()
	if err != nil {
		return err
	}

	if toSignal == toWaitOn {
		return nil
	}

	tk := park.NewToken(1)

	n, sc := toWaitOn.WaitAnyPrologue(tk, park.StatusSuccess)
	if n == nil {
		tk.UnparkSelf(park.StatusSuccess)
	}

	if !toSignal.Release() {
		if n != nil && tk.TryCancel() {
			toWaitOn.CancelAcquire(n)

			return sterrors.ErrSignalFailed
		}

		// The acquire already completed.
		tk.Park(0, park.None)
		toWaitOn.UndoAcquire()

		return sterrors.ErrSignalFailed
	}

	ws := tk.Park(sc, cargs)
	if ws != park.StatusSuccess {
		toWaitOn.CancelAcquire(n)

		return ws.Err()
	}

	return toWaitOn.WaitEpilogue()
}

func sortByID(ws []Waitable) ([]Waitable, error) {
	if len(ws) == 0 {
		return nil, fmt.Errorf("%w: no waitables", sterrors.ErrInvalidCount)
	}

	sorted := slices.Clone(ws)
	slices.SortFunc(sorted, func(a, b Waitable) int {
		return cmp.Compare(a.ID(), b.ID())
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].ID() == sorted[i-1].ID() {
			return nil, fmt.Errorf("%w: id %d", sterrors.ErrDuplicateWaitable, sorted[i].ID())
		}
	}

	return sorted, nil
}

func allowsAcquireAll(ws []Waitable) bool {
	for _, w := range ws {
		if !w.AllowsAcquire() {
			return false
		}
	}

	return true
}

// tryAcquireAll acquires ws in order, undoing partial progress on failure.
func tryAcquireAll(ws []Waitable) bool {
	for i, w := range ws {
		if !w.TryAcquire() {
			for _, u := range ws[:i] {
				u.UndoAcquire()
			}

			return false
		}
	}

	return true
}

func waitEpilogues(ws []Waitable) error {
	var merr error

	for _, w := range ws {
		if err := w.WaitEpilogue(); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return merr
}
