package park_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/stsync/pkg/park"
	"github.com/macropower/stsync/pkg/sterrors"
)

func TestToken_SingleWinner(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		releasers  uint16
		lockers    int
		cancellers int
	}{
		"single releaser": {
			releasers: 1,
			lockers:   16,
		},
		"countdown": {
			releasers: 8,
			lockers:   32,
		},
		"lock and cancel race": {
			releasers:  4,
			lockers:    16,
			cancellers: 16,
		},
		"cancel only": {
			releasers:  1,
			cancellers: 16,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			for range 100 {
				tk := park.NewToken(tc.releasers)

				var (
					wins  atomic.Int32
					start sync.WaitGroup
					wg    sync.WaitGroup
				)

				start.Add(1)
				wg.Add(tc.lockers + tc.cancellers)

				for range tc.lockers {
					go func() {
						defer wg.Done()

						start.Wait()

						if tk.TryLock() {
							wins.Add(1)
						}
					}()
				}

				for range tc.cancellers {
					go func() {
						defer wg.Done()

						start.Wait()

						if tk.TryCancel() {
							wins.Add(1)
						}
					}()
				}

				start.Done()
				wg.Wait()

				assert.Equal(t, int32(1), wins.Load())
				assert.True(t, tk.IsLocked())
			}
		})
	}
}

func TestToken_TryLockCountsDown(t *testing.T) {
	t.Parallel()

	tk := park.NewToken(3)

	assert.False(t, tk.TryLock())
	assert.False(t, tk.TryLock())
	assert.False(t, tk.IsLocked())
	assert.True(t, tk.TryLock())
	assert.True(t, tk.IsLocked())
	assert.False(t, tk.TryLock())
	assert.False(t, tk.TryCancel())
}

func TestToken_Park(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		spin int
	}{
		"no spin": {spin: 0},
		"spin":    {spin: 1000},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tk := park.NewToken(1)

			go func() {
				time.Sleep(10 * time.Millisecond)

				if tk.TryLock() {
					tk.Unpark(park.Status(7))
				}
			}()

			ws := tk.Park(tc.spin, park.None)
			assert.Equal(t, park.Status(7), ws)
			assert.Equal(t, park.Status(7), tk.Status())
		})
	}
}

func TestToken_UnparkSelf(t *testing.T) {
	t.Parallel()

	tk := park.NewToken(1)
	require.True(t, tk.TryLock())
	tk.UnparkSelf(park.Status(3))

	assert.Equal(t, park.Status(3), tk.Park(0, park.None))
}

func TestToken_ParkTimeout(t *testing.T) {
	t.Parallel()

	tk := park.NewToken(1)

	start := time.Now()
	ws := tk.Park(0, park.NewCancelArgs(park.WithTimeout(20*time.Millisecond)))

	assert.Equal(t, park.StatusTimeout, ws)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.True(t, tk.IsLocked())
	assert.False(t, tk.TryLock(), "a timed out token must not be lockable")
}

func TestToken_ParkTimeoutRacesRelease(t *testing.T) {
	t.Parallel()

	for range 200 {
		tk := park.NewToken(1)

		released := make(chan bool, 1)

		go func() {
			won := tk.TryLock()
			if won {
				tk.Unpark(park.StatusSuccess)
			}

			released <- won
		}()

		ws := tk.Park(0, park.NewCancelArgs(park.WithTimeout(time.Microsecond)))

		if <-released {
			assert.Equal(t, park.StatusSuccess, ws)
		} else {
			assert.Equal(t, park.StatusTimeout, ws)
		}
	}
}

func TestToken_ParkAlerted(t *testing.T) {
	t.Parallel()

	t.Run("set while parked", func(t *testing.T) {
		t.Parallel()

		a := park.NewAlerter(false)
		tk := park.NewToken(1)

		go func() {
			time.Sleep(10 * time.Millisecond)
			a.Set()
		}()

		ws := tk.Park(0, park.NewCancelArgs(park.WithSource(a)))
		assert.Equal(t, park.StatusCancelled, ws)
		require.ErrorIs(t, ws.Err(), sterrors.ErrCancelled)
	})

	t.Run("already set", func(t *testing.T) {
		t.Parallel()

		a := park.NewAlerter(true)
		tk := park.NewToken(1)

		ws := tk.Park(100, park.NewCancelArgs(park.WithSource(a)))
		assert.Equal(t, park.StatusCancelled, ws)
	})

	t.Run("release wins over alerter", func(t *testing.T) {
		t.Parallel()

		a := park.NewAlerter(false)
		tk := park.NewToken(1)
		require.True(t, tk.TryLock())

		go func() {
			a.Set()
			time.Sleep(10 * time.Millisecond)
			tk.Unpark(park.Status(1))
		}()

		ws := tk.Park(0, park.NewCancelArgs(park.WithSource(a)))
		assert.Equal(t, park.Status(1), ws)
	})
}

func TestToken_ParkInterrupt(t *testing.T) {
	t.Parallel()

	t.Run("interruptible", func(t *testing.T) {
		t.Parallel()

		ch := make(chan struct{})
		close(ch)

		ws := park.NewToken(1).Park(0, park.NewCancelArgs(park.WithInterrupt(ch)))
		assert.Equal(t, park.StatusInterrupted, ws)
		require.ErrorIs(t, ws.Err(), sterrors.ErrInterrupted)
	})

	t.Run("not interruptible", func(t *testing.T) {
		t.Parallel()

		ch := make(chan struct{})
		close(ch)

		cargs := park.NewCancelArgs(park.WithTimeout(10 * time.Millisecond))
		cargs.Interrupt = ch

		ws := park.NewToken(1).Park(0, cargs)
		assert.Equal(t, park.StatusTimeout, ws)
	})
}

func TestSleep(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		cargs   park.CancelArgs
		wantErr error
	}{
		"timeout": {
			cargs: park.NewCancelArgs(park.WithTimeout(5 * time.Millisecond)),
		},
		"alerted": {
			cargs:   park.NewCancelArgs(park.WithSource(park.NewAlerter(true))),
			wantErr: sterrors.ErrCancelled,
		},
		"invalid timeout": {
			cargs:   park.NewCancelArgs(park.WithTimeout(-2)),
			wantErr: sterrors.ErrInvalidTimeout,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := park.Sleep(tc.cargs)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestStatus_Err(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		want   error
		status park.Status
	}{
		"success":      {status: park.StatusSuccess},
		"wake key":     {status: park.Status(4)},
		"state change": {status: park.StatusStateChange},
		"timeout":      {status: park.StatusTimeout, want: sterrors.ErrTimeout},
		"interrupted":  {status: park.StatusInterrupted, want: sterrors.ErrInterrupted},
		"cancelled":    {status: park.StatusCancelled, want: sterrors.ErrCancelled},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if tc.want == nil {
				require.NoError(t, tc.status.Err())
				assert.True(t, tc.status.IsWakeKey())

				return
			}

			require.ErrorIs(t, tc.status.Err(), tc.want)
			assert.False(t, tc.status.IsWakeKey())
		})
	}
}
