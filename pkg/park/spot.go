package park

import (
	"sync"
	"time"
)

var spotPool = sync.Pool{
	New: func() any {
		return &Spot{ch: make(chan struct{}, 1)}
	},
}

// Spot is an auto-reset event with a single waiter, used by [Token.Park] once
// spinning is exhausted. Spots are pooled; a spot is always returned to the
// pool unsignalled.
type Spot struct {
	ch chan struct{}
}

func allocSpot() *Spot {
	s, ok := spotPool.Get().(*Spot)
	if !ok {
		panic("park: unexpected type in spot pool")
	}

	return s
}

func freeSpot(s *Spot) {
	spotPool.Put(s)
}

// Set signals the spot. Signals do not accumulate.
func (s *Spot) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Wait blocks until the spot is set, the timeout expires, or the interrupt
// channel fires on an interruptible wait. A non-interruptible wait keeps
// waiting when interrupted and never reports it.
func (s *Spot) Wait(cargs CancelArgs) Status {
	var expired <-chan time.Time

	if cargs.Timeout != Infinite {
		timer := time.NewTimer(cargs.Timeout)
		defer timer.Stop()

		expired = timer.C
	}

	interrupt := cargs.Interrupt

	for {
		select {
		case <-s.ch:
			return StatusSuccess

		case <-expired:
			return StatusTimeout

		case <-interrupt:
			if cargs.Interruptible {
				return StatusInterrupted
			}

			interrupt = nil
		}
	}
}
