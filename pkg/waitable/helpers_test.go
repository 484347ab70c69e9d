package waitable_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	waitFor = 5 * time.Second
	tick    = time.Millisecond
)

type queued interface {
	QueueLen() int
}

func requireQueued(t *testing.T, q queued, n int) {
	t.Helper()

	require.Eventually(t, func() bool {
		return q.QueueLen() == n
	}, waitFor, tick, "expected %d queued waiters", n)
}

func requireResult[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(waitFor):
		require.FailNow(t, "timed out waiting for result")
	}

	var zero T

	return zero
}

func requireNoResult[T any](t *testing.T, ch <-chan T) {
	t.Helper()

	select {
	case v := <-ch:
		require.FailNow(t, "unexpected result", "%v", v)
	case <-time.After(20 * time.Millisecond):
	}
}
