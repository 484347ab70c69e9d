package waitable

import (
	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/waitq"
)

// BinarySignal is a manual-reset event. Once set it releases every waiter
// and stays set until [BinarySignal.Reset]. Waiters are woken in no
// particular order.
type BinarySignal struct {
	s    waitq.Stack
	id   uint64
	spin int
}

var _ Waitable = (*BinarySignal)(nil)

// NewBinarySignal creates a [BinarySignal] in the given state. Waiters spin
// up to spin times before parking.
func NewBinarySignal(set bool, spin int) *BinarySignal {
	b := &BinarySignal{
		id:   nextID(),
		spin: park.SpinCount(spin),
	}
	b.s.Init(set)

	return b
}

// IsSet reports whether the signal is set.
func (b *BinarySignal) IsSet() bool {
	return b.s.IsSet()
}

// Set signals the event, waking all current waiters, and returns its previous
// state.
func (b *BinarySignal) Set() bool {
	wasSet, chain := b.s.Set()
	if wasSet {
		return true
	}

	if chain == nil {
		return false
	}

	if b.spin != 0 && chain.Next() != nil {
		// The most recent waiter is the likeliest to still be spinning. The
		// rest are woken in arrival order.
		var rest []*waitq.Node
		for w := chain.Next(); w != nil; w = w.Next() {
			rest = append(rest, w)
		}

		chain.Wake()

		for i := len(rest) - 1; i >= 0; i-- {
			rest[i].Wake()
		}

		return false
	}

	for w := chain; w != nil; {
		next := w.Next()
		w.Wake()
		w = next
	}

	return false
}

// Reset clears the signal and returns its previous state.
func (b *BinarySignal) Reset() bool {
	return b.s.Reset()
}

// Wait blocks until the signal is set.
func (b *BinarySignal) Wait(cargs park.CancelArgs) error {
	return AcquireOne(b, cargs)
}

func (b *BinarySignal) ID() uint64 {
	return b.id
}

func (b *BinarySignal) AllowsAcquire() bool {
	return b.s.IsSet()
}

// TryAcquire reports whether the signal is set. Acquiring does not consume
// the signal.
func (b *BinarySignal) TryAcquire() bool {
	return b.s.IsSet()
}

// Release sets the signal. It never fails.
func (b *BinarySignal) Release() bool {
	b.Set()

	return true
}

func (b *BinarySignal) WaitAnyPrologue(tk *park.Token, key park.Status) (*waitq.Node, int) {
	return b.push(waitq.NewNode(tk, waitq.WaitAny, 1, key))
}

func (b *BinarySignal) WaitAllPrologue(tk *park.Token) (*waitq.Node, int) {
	return b.push(waitq.NewNode(tk, waitq.WaitAll, 1, park.StatusStateChange))
}

func (b *BinarySignal) push(w *waitq.Node) (*waitq.Node, int) {
	pushed, _ := b.s.TryPush(w)
	if !pushed {
		return nil, 0
	}

	return w, b.spin
}

func (b *BinarySignal) CancelAcquire(n *waitq.Node) {
	b.s.Unlink(n)
}

func (b *BinarySignal) UndoAcquire() {}

func (b *BinarySignal) WaitEpilogue() error {
	return nil
}
