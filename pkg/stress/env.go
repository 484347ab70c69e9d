package stress

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/macropower/stsync/pkg/park"
)

// ErrInvariant is returned when a scenario observes a broken invariant.
var ErrInvariant = errors.New("invariant violated")

// Worker identifies one operation of a scenario worker.
type Worker struct {
	// Cargs bounds blocking operations. It times out after the configured
	// operation timeout and is cancelled together with the scenario.
	Cargs park.CancelArgs
	ID    int
	Round int
}

// Op is a single operation of a scenario worker.
type Op func(ctx context.Context, w Worker) error

// Env is the load applied to a scenario.
type Env struct {
	deadline  time.Time
	Workers   int
	Rounds    int
	Spin      int
	OpTimeout time.Duration
	ops       atomic.Int64
}

func newEnv(cfg Config) *Env {
	e := &Env{
		Workers:   cfg.Workers,
		Rounds:    cfg.Rounds,
		Spin:      cfg.Spin,
		OpTimeout: cfg.OpTimeout,
	}
	if cfg.Duration > 0 {
		e.deadline = time.Now().Add(cfg.Duration)
	}

	return e
}

// Ops returns the number of completed operations.
func (e *Env) Ops() int64 {
	return e.ops.Load()
}

// AddOps records n completed operations.
func (e *Env) AddOps(n int64) {
	e.ops.Add(n)
}

// Expired reports whether the scenario ran out of time.
func (e *Env) Expired() bool {
	return !e.deadline.IsZero() && time.Now().After(e.deadline)
}

// cancelArgs derives the operation bounds from ctx. The returned function
// releases the context hook.
func (e *Env) cancelArgs(ctx context.Context) (park.CancelArgs, func() bool) {
	cargs, stop := park.FromContext(ctx)
	cargs.Timeout = e.OpTimeout

	return cargs, stop
}

// Run starts the workers, each calling op once per round until the rounds
// are used up or the scenario expires. The first error cancels the other
// workers.
func (e *Env) Run(ctx context.Context, op Op) error {
	return e.RunN(ctx, e.Workers, op)
}

// RunN is [Env.Run] with an explicit number of workers.
func (e *Env) RunN(ctx context.Context, workers int, op Op) error {
	g, gctx := errgroup.WithContext(ctx)

	cargs, stop := e.cancelArgs(gctx)
	defer stop()

	for id := range workers {
		g.Go(func() error {
			for round := range e.Rounds {
				if gctx.Err() != nil || e.Expired() {
					return nil
				}

				err := op(gctx, Worker{ID: id, Round: round, Cargs: cargs})
				if err != nil {
					return fmt.Errorf("worker %d round %d: %w", id, round, err)
				}

				e.ops.Add(1)
			}

			return nil
		})
	}

	//nolint:wrapcheck // Already wrapped.
	return g.Wait()
}

// Group runs a fixed set of cooperating goroutines that share one set of
// operation bounds. Unlike [Env.Run] the goroutines do not stop early when
// the scenario expires, because they depend on each other.
func (e *Env) Group(ctx context.Context, fns ...func(cargs park.CancelArgs) error) error {
	g, gctx := errgroup.WithContext(ctx)

	cargs, stop := e.cancelArgs(gctx)
	defer stop()

	for _, fn := range fns {
		g.Go(func() error {
			return fn(cargs)
		})
	}

	//nolint:wrapcheck // Callers wrap.
	return g.Wait()
}

func invariant(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
}
