package waitq

import (
	"sync/atomic"
)

// stackState is an immutable snapshot of a [Stack]: either set, or a possibly
// empty LIFO chain of nodes.
type stackState struct {
	top *Node
	set bool
}

var (
	stackClear = &stackState{}
	stackSet   = &stackState{set: true}
)

// Stack is a non-blocking LIFO of wait nodes combined with a boolean
// signalled state. Setting the stack atomically flips the state and hands the
// captured chain to the caller. The zero value is a clear, empty stack.
type Stack struct {
	state atomic.Pointer[stackState]
}

// NewStack creates a [Stack] with the given initial state.
func NewStack(set bool) *Stack {
	s := &Stack{}
	s.Init(set)

	return s
}

// Init resets the stack to the given state, dropping any waiters. It must not
// be called concurrently with other methods.
func (s *Stack) Init(set bool) {
	if set {
		s.state.Store(stackSet)
	} else {
		s.state.Store(stackClear)
	}
}

func (s *Stack) load() *stackState {
	st := s.state.Load()
	if st == nil {
		s.state.CompareAndSwap(nil, stackClear)
		st = s.state.Load()
	}

	return st
}

// IsSet reports whether the stack is in the signalled state.
func (s *Stack) IsSet() bool {
	return s.load().set
}

// Top returns the most recently pushed node, or nil.
func (s *Stack) Top() *Node {
	return s.load().top
}

// TryPush pushes n unless the stack is set. It reports whether n was pushed,
// and whether it landed on an empty stack.
func (s *Stack) TryPush(n *Node) (pushed, first bool) {
	for {
		st := s.load()
		if st.set {
			return false, false
		}

		n.next.Store(st.top)

		if s.state.CompareAndSwap(st, &stackState{top: n}) {
			return true, st.top == nil
		}
	}
}

// Set moves the stack to the signalled state. It returns the previous state
// and the chain of nodes that were waiting, most recent first.
func (s *Stack) Set() (bool, *Node) {
	if s.load().set {
		return true, nil
	}

	old := s.state.Swap(stackSet)
	if old == nil {
		return false, nil
	}

	return old.set, old.top
}

// Reset moves a signalled stack back to clear. It returns false if the stack
// was not set.
func (s *Stack) Reset() bool {
	return s.load().set && s.state.CompareAndSwap(stackSet, stackClear)
}

// Unlink removes a node whose token was locked or cancelled. Removal is best
// effort: a node that cannot be removed now is skipped by later releases.
func (s *Stack) Unlink(n *Node) {
	st := s.load()
	if st.set || st.top == nil {
		return
	}

	if n.Next() == nil && st.top == n && s.state.CompareAndSwap(st, stackClear) {
		return
	}

	s.slowUnlink(n)
}

func (s *Stack) slowUnlink(n *Node) {
	past := n.Next()
	if past != nil && past.IsLocked() {
		past = past.Next()
	}

	p := s.load().top
	for p != nil && p != past {
		st := s.load()
		if st.set || st.top == nil {
			return
		}

		next := p.Next()
		if next != nil && next.IsLocked() {
			p.casNext(next, next.Next())
		} else {
			p = next
		}
	}
}
