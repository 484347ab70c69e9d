package park

import (
	"sync/atomic"
)

var _ CancelSource = (*Alerter)(nil)

// alerterState is an immutable snapshot of an [Alerter]: either alerted, or a
// LIFO chain of registered tokens linked through [Token.next].
type alerterState struct {
	top     *Token
	alerted bool
}

var (
	alerterIdle    = &alerterState{}
	alerterAlerted = &alerterState{alerted: true}
)

// Alerter is a broadcast cancellation source. Setting it cancels every token
// registered with it, and every token that checks it afterwards.
// Create instances with [NewAlerter], or use the zero value directly.
type Alerter struct {
	state atomic.Pointer[alerterState]
}

// NewAlerter creates an [Alerter], optionally already set.
func NewAlerter(set bool) *Alerter {
	a := &Alerter{}
	if set {
		a.state.Store(alerterAlerted)
	} else {
		a.state.Store(alerterIdle)
	}

	return a
}

func (a *Alerter) load() *alerterState {
	s := a.state.Load()
	if s == nil {
		a.state.CompareAndSwap(nil, alerterIdle)
		s = a.state.Load()
	}

	return s
}

// IsSet reports whether the alerter has been set.
func (a *Alerter) IsSet() bool {
	return a.load().alerted
}

// Set alerts the registered tokens. It returns false if the alerter was
// already set.
func (a *Alerter) Set() bool {
	for {
		s := a.load()
		if s.alerted {
			return false
		}

		if !a.state.CompareAndSwap(s, alerterAlerted) {
			continue
		}

		for t := s.top; t != nil; {
			next := t.next.Load()
			if t.TryCancel() {
				t.Unpark(StatusCancelled)
			}

			t = next
		}

		return true
	}
}

// RegisterToken pushes the token onto the alerter's list. It returns false if
// the alerter is already set.
func (a *Alerter) RegisterToken(t *Token) bool {
	for {
		s := a.load()
		if s.alerted {
			return false
		}

		t.next.Store(s.top)

		if a.state.CompareAndSwap(s, &alerterState{top: t}) {
			return true
		}
	}
}

// DeregisterToken removes the token from the alerter's list.
func (a *Alerter) DeregisterToken(t *Token) {
	// Most of the time the token is alone in the list.
	s := a.load()
	if t.next.Load() == nil && s.top == t && a.state.CompareAndSwap(s, alerterIdle) {
		return
	}

	a.slowDeregister(t)
}

func (a *Alerter) slowDeregister(t *Token) {
	var p *Token

	// Absorb the locked tokens at the top of the list.
	for {
		s := a.load()
		if s.alerted || s.top == nil {
			return
		}

		if !s.top.IsLocked() {
			p = s.top

			break
		}

		next := s.top.next.Load()
		if next == nil {
			a.state.CompareAndSwap(s, alerterIdle)
		} else {
			a.state.CompareAndSwap(s, &alerterState{top: next})
		}
	}

	// Splice out locked tokens between the top and the first entry past t.
	past := t.next.Load()
	if past != nil && past.IsLocked() {
		past = past.next.Load()
	}

	for p != nil && p != past {
		n := p.next.Load()
		if n != nil && n.IsLocked() {
			p.next.CompareAndSwap(n, n.next.Load())
		} else {
			p = n
		}
	}
}
