package waitq_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/waitq"
)

func newNode(key park.Status) *waitq.Node {
	return waitq.NewNode(park.NewToken(1), waitq.WaitAny, 1, key)
}

func chainKeys(n *waitq.Node) []park.Status {
	keys := []park.Status{}
	for ; n != nil; n = n.Next() {
		keys = append(keys, n.Key())
	}

	return keys
}

func TestStack_PushAndSet(t *testing.T) {
	t.Parallel()

	s := waitq.NewStack(false)
	assert.False(t, s.IsSet())

	for i := range 3 {
		pushed, first := s.TryPush(newNode(park.Status(i)))
		require.True(t, pushed)
		assert.Equal(t, i == 0, first)
	}

	wasSet, chain := s.Set()
	assert.False(t, wasSet)
	assert.Equal(t, []park.Status{2, 1, 0}, chainKeys(chain))
	assert.True(t, s.IsSet())

	pushed, _ := s.TryPush(newNode(9))
	assert.False(t, pushed, "a set stack must reject waiters")

	wasSet, chain = s.Set()
	assert.True(t, wasSet)
	assert.Nil(t, chain)
}

func TestStack_Reset(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		initial bool
		want    bool
	}{
		"reset set stack":   {initial: true, want: true},
		"reset clear stack": {initial: false, want: false},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := waitq.NewStack(tc.initial)
			assert.Equal(t, tc.want, s.Reset())
			assert.False(t, s.IsSet())
			assert.False(t, s.Reset(), "reset must be idempotent")
		})
	}
}

func TestStack_ZeroValue(t *testing.T) {
	t.Parallel()

	var s waitq.Stack
	assert.False(t, s.IsSet())
	assert.Nil(t, s.Top())

	pushed, first := s.TryPush(newNode(0))
	assert.True(t, pushed)
	assert.True(t, first)
}

func TestStack_Unlink(t *testing.T) {
	t.Parallel()

	t.Run("lone top node", func(t *testing.T) {
		t.Parallel()

		s := waitq.NewStack(false)
		n := newNode(0)
		s.TryPush(n)
		require.True(t, n.Token().TryCancel())

		s.Unlink(n)
		assert.Nil(t, s.Top())
	})

	t.Run("locked node in the middle", func(t *testing.T) {
		t.Parallel()

		s := waitq.NewStack(false)
		nodes := []*waitq.Node{newNode(0), newNode(1), newNode(2)}

		for _, n := range nodes {
			s.TryPush(n)
		}

		require.True(t, nodes[1].Token().TryCancel())
		s.Unlink(nodes[1])

		assert.Equal(t, []park.Status{2, 0}, chainKeys(s.Top()))
	})

	t.Run("set stack", func(t *testing.T) {
		t.Parallel()

		s := waitq.NewStack(false)
		n := newNode(0)
		s.TryPush(n)
		s.Set()

		s.Unlink(n)
		assert.True(t, s.IsSet())
	})
}

func TestStack_ConcurrentPush(t *testing.T) {
	t.Parallel()

	const n = 64

	s := waitq.NewStack(false)

	var wg sync.WaitGroup
	wg.Add(n)

	for i := range n {
		go func() {
			defer wg.Done()

			pushed, _ := s.TryPush(newNode(park.Status(i)))
			assert.True(t, pushed)
		}()
	}

	wg.Wait()

	_, chain := s.Set()
	assert.Len(t, chainKeys(chain), n)
}
