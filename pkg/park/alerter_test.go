package park_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stsync/pkg/park"
)

func TestAlerter_Set(t *testing.T) {
	t.Parallel()

	a := &park.Alerter{}
	assert.False(t, a.IsSet())
	assert.True(t, a.Set())
	assert.True(t, a.IsSet())
	assert.False(t, a.Set(), "second set must report the alerter was already set")
	assert.False(t, a.RegisterToken(park.NewToken(1)))
}

func TestAlerter_CancelsAllParked(t *testing.T) {
	t.Parallel()

	const n = 16

	a := park.NewAlerter(false)
	cargs := park.NewCancelArgs(park.WithSource(a))

	results := make(chan park.Status, n)

	var ready sync.WaitGroup
	ready.Add(n)

	for range n {
		go func() {
			tk := park.NewToken(1)
			ready.Done()
			results <- tk.Park(0, cargs)
		}()
	}

	ready.Wait()
	time.Sleep(20 * time.Millisecond)
	require.True(t, a.Set())

	for range n {
		select {
		case ws := <-results:
			assert.Equal(t, park.StatusCancelled, ws)
		case <-time.After(5 * time.Second):
			require.FailNow(t, "parked token was not alerted")
		}
	}
}

func TestAlerter_Deregister(t *testing.T) {
	t.Parallel()

	t.Run("tokens leave after their waits complete", func(t *testing.T) {
		t.Parallel()

		a := park.NewAlerter(false)
		cargs := park.NewCancelArgs(
			park.WithSource(a),
			park.WithTimeout(5*time.Millisecond),
		)

		var wg sync.WaitGroup
		wg.Add(8)

		for range 8 {
			go func() {
				defer wg.Done()

				assert.Equal(t, park.StatusTimeout, park.NewToken(1).Park(0, cargs))
			}()
		}

		wg.Wait()

		// Setting must not touch the timed out tokens.
		assert.True(t, a.Set())
	})

	t.Run("locked token in the middle", func(t *testing.T) {
		t.Parallel()

		a := park.NewAlerter(false)
		tks := []*park.Token{park.NewToken(1), park.NewToken(1), park.NewToken(1)}

		for _, tk := range tks {
			require.True(t, a.RegisterToken(tk))
		}

		require.True(t, tks[1].TryLock())
		a.DeregisterToken(tks[1])

		require.True(t, tks[0].TryLock())
		a.DeregisterToken(tks[0])

		require.True(t, tks[2].TryLock())
		a.DeregisterToken(tks[2])

		assert.True(t, a.Set())
	})
}

func TestCancelArgs(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cargs := park.NewCancelArgs()
		assert.Equal(t, park.Infinite, cargs.Timeout)
		assert.Nil(t, cargs.Source)
		assert.False(t, cargs.Interruptible)
		require.NoError(t, cargs.Validate())
	})

	t.Run("adjust infinite", func(t *testing.T) {
		t.Parallel()

		cargs := park.None
		last := time.Now()
		assert.True(t, cargs.AdjustTimeout(&last))
		assert.Equal(t, park.Infinite, cargs.Timeout)
	})

	t.Run("adjust bounded", func(t *testing.T) {
		t.Parallel()

		cargs := park.NewCancelArgs(park.WithTimeout(time.Hour))
		last := time.Now().Add(-time.Minute)
		require.True(t, cargs.AdjustTimeout(&last))
		assert.Less(t, cargs.Timeout, 59*time.Minute+time.Second)
		assert.WithinDuration(t, time.Now(), last, time.Second)
	})

	t.Run("adjust expired", func(t *testing.T) {
		t.Parallel()

		cargs := park.NewCancelArgs(park.WithTimeout(time.Millisecond))
		last := time.Now().Add(-time.Second)
		assert.False(t, cargs.AdjustTimeout(&last))
	})
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	t.Run("background", func(t *testing.T) {
		t.Parallel()

		cargs, stop := park.FromContext(context.Background())
		defer stop()

		assert.Equal(t, park.Infinite, cargs.Timeout)
		assert.Nil(t, cargs.Source)
	})

	t.Run("deadline", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()

		cargs, stop := park.FromContext(ctx)
		defer stop()

		assert.Greater(t, cargs.Timeout, 59*time.Minute)
		assert.NotNil(t, cargs.Source)
	})

	t.Run("cancel wakes parked token", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())

		cargs, stop := park.FromContext(ctx)
		defer stop()

		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		assert.Equal(t, park.StatusCancelled, park.NewToken(1).Park(0, cargs))
	})

	t.Run("already cancelled", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cargs, stop := park.FromContext(ctx)
		defer stop()

		assert.True(t, cargs.Source.IsSet())
	})
}

func TestSpinCount(t *testing.T) {
	t.Parallel()

	sc := park.SpinCount(100)
	assert.Contains(t, []int{0, 100}, sc)
	assert.Equal(t, 0, park.SpinCount(-1))

	var sw park.SpinWait
	for range 10 {
		sw.SpinOnce()
	}

	assert.Equal(t, 10, sw.Count())
	sw.Reset()
	assert.Equal(t, 0, sw.Count())
}
