package waitq_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/waitq"
)

func newQueue() *waitq.LockedQueue {
	q := &waitq.LockedQueue{}
	q.Init()

	return q
}

func queueKeys(q *waitq.LockedQueue) []park.Status {
	keys := []park.Status{}
	for n := q.Head().Next(); n != nil; n = n.Next() {
		keys = append(keys, n.Key())
	}

	return keys
}

func TestLockedQueue_Enqueue(t *testing.T) {
	t.Parallel()

	q := newQueue()
	assert.True(t, q.IsEmpty())
	assert.Nil(t, q.First())

	for i := range 4 {
		first := q.Enqueue(newNode(park.Status(i)))
		assert.Equal(t, i == 0, first)
	}

	assert.False(t, q.IsEmpty())
	assert.Equal(t, 4, q.Len())
	assert.Equal(t, []park.Status{0, 1, 2, 3}, queueKeys(q))
	assert.Equal(t, park.Status(0), q.First().Key())
}

func TestLockedQueue_Lock(t *testing.T) {
	t.Parallel()

	q := newQueue()
	q.Enqueue(newNode(0))

	require.True(t, q.TryLock())
	assert.False(t, q.TryLock())
	assert.Nil(t, q.First(), "a locked queue hides its first waiter")

	q.SetHeadAndUnlock(q.Head())
	assert.NotNil(t, q.First())
	assert.True(t, q.TryLock())
}

func TestLockedQueue_Drain(t *testing.T) {
	t.Parallel()

	q := newQueue()
	nodes := []*waitq.Node{newNode(0), newNode(1), newNode(2)}

	for _, n := range nodes {
		q.Enqueue(n)
	}

	require.True(t, q.TryLock())

	// Release the first two waiters in order.
	qh := q.Head()
	for range 2 {
		w := qh.Next()
		assert.True(t, w.Wake())

		qh = q.Advance(qh)
	}

	q.SetHeadAndUnlock(qh)

	assert.Equal(t, []park.Status{2}, queueKeys(q))
	assert.Equal(t, park.Status(0), nodes[0].Token().Park(0, park.None))
	assert.Equal(t, park.Status(1), nodes[1].Token().Park(0, park.None))
}

func TestLockedQueue_SetHeadSkipsLocked(t *testing.T) {
	t.Parallel()

	q := newQueue()
	nodes := []*waitq.Node{newNode(0), newNode(1), newNode(2)}

	for _, n := range nodes {
		q.Enqueue(n)
	}

	require.True(t, nodes[0].Token().TryCancel())
	require.True(t, nodes[1].Token().TryCancel())

	require.True(t, q.TryLock())
	q.SetHeadAndUnlock(q.Head())

	assert.Equal(t, []park.Status{2}, queueKeys(q))
	assert.True(t, nodes[0].IsUnlinked())
}

func TestLockedQueue_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("middle node", func(t *testing.T) {
		t.Parallel()

		q := newQueue()
		nodes := []*waitq.Node{newNode(0), newNode(1), newNode(2)}

		for _, n := range nodes {
			q.Enqueue(n)
		}

		require.True(t, nodes[1].Token().TryCancel())
		require.True(t, q.Cancel(nodes[1]))
		q.SetHeadAndUnlock(q.Head())

		assert.Equal(t, []park.Status{0, 2}, queueKeys(q))
		assert.True(t, nodes[1].IsUnlinked())
		assert.False(t, q.Cancel(nodes[1]), "a tombstone must be left alone")
	})

	t.Run("tail node is unlinked once it has a successor", func(t *testing.T) {
		t.Parallel()

		q := newQueue()
		nodes := []*waitq.Node{newNode(0), newNode(1)}

		for _, n := range nodes {
			q.Enqueue(n)
		}

		require.True(t, nodes[1].Token().TryCancel())
		assert.False(t, q.Cancel(nodes[1]))
		assert.Equal(t, []park.Status{0, 1}, queueKeys(q))

		q.Enqueue(newNode(2))

		require.True(t, q.TryLock())
		q.SetHeadAndUnlock(q.Head())

		assert.Equal(t, []park.Status{0, 2}, queueKeys(q))
	})

	t.Run("locked queue", func(t *testing.T) {
		t.Parallel()

		q := newQueue()
		nodes := []*waitq.Node{newNode(0), newNode(1)}

		for _, n := range nodes {
			q.Enqueue(n)
		}

		require.True(t, q.TryLock())
		require.True(t, nodes[0].Token().TryCancel())
		assert.False(t, q.Cancel(nodes[0]))

		// The lock holder skips the cancelled node.
		q.SetHeadAndUnlock(q.Head())
		assert.Equal(t, []park.Status{1}, queueKeys(q))
	})
}

func TestLockedQueue_ConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	const n = 128

	q := newQueue()

	var (
		wg     sync.WaitGroup
		firsts sync.Map
	)

	wg.Add(n)

	for i := range n {
		go func() {
			defer wg.Done()

			if q.Enqueue(newNode(park.Status(i))) {
				firsts.Store(i, true)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, n, q.Len())

	count := 0
	firsts.Range(func(_, _ any) bool {
		count++

		return true
	})
	assert.Equal(t, 1, count, "exactly one node lands first")
}
