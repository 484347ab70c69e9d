package waitq

import (
	"sync/atomic"

	"github.com/macropower/stsync/pkg/park"
)

// Discipline selects how a release treats a queued [Node].
type Discipline uint8

const (
	// WaitAny nodes are satisfied by a release that grants them the
	// requested amount.
	WaitAny Discipline = iota
	// WaitAll nodes are released cooperatively: the releaser only counts down
	// the shared token and consumes nothing.
	WaitAll
)

func (d Discipline) String() string {
	if d == WaitAll {
		return "wait-all"
	}

	return "wait-any"
}

// Node links a [park.Token] into a queue together with the requested amount,
// the wait discipline and the key the owner is woken with.
type Node struct {
	next       atomic.Pointer[Node]
	token      *park.Token
	key        park.Status
	request    int32
	discipline Discipline
}

// NewNode creates a [Node] for the given token.
func NewNode(tk *park.Token, d Discipline, request int32, key park.Status) *Node {
	return &Node{
		token:      tk,
		discipline: d,
		request:    request,
		key:        key,
	}
}

func (n *Node) Token() *park.Token {
	return n.token
}

func (n *Node) Discipline() Discipline {
	return n.discipline
}

func (n *Node) Request() int32 {
	return n.request
}

func (n *Node) Key() park.Status {
	return n.key
}

// Next returns the node's successor.
func (n *Node) Next() *Node {
	return n.next.Load()
}

// LinkTo sets the node's successor. It must only be called before the node
// is published.
func (n *Node) LinkTo(next *Node) {
	n.next.Store(next)
}

// IsUnlinked reports whether the node is a tombstone.
func (n *Node) IsUnlinked() bool {
	return n.next.Load() == n
}

// IsLocked reports whether the node's token has been locked or cancelled.
func (n *Node) IsLocked() bool {
	return n.token.IsLocked()
}

// Wake locks the node's token and, if this was the final lock, unparks the
// owner with the node's key. It reports whether the owner was unparked.
func (n *Node) Wake() bool {
	if !n.token.TryLock() {
		return false
	}

	n.token.Unpark(n.key)

	return true
}

func (n *Node) markUnlinked() {
	n.next.Store(n)
}

func (n *Node) casNext(old, nn *Node) bool {
	return n.next.Load() == old && n.next.CompareAndSwap(old, nn)
}
