package stress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/semaphore"

	"github.com/macropower/stsync/pkg/tracing"
)

var ErrRunnerFailed = errors.New("stress runner failed")

// Result is the outcome of one scenario.
type Result struct {
	Err      error
	Scenario string
	Ops      int64
	Elapsed  time.Duration
}

// Report is the outcome of a run.
type Report struct {
	RunID   string
	Results []Result
}

// Failed returns the results that ended with an error.
func (r *Report) Failed() []Result {
	var out []Result

	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}

	return out
}

// Runner runs the scenarios of a [Config].
type Runner struct {
	tracer tracing.Tracer
	logger *slog.Logger
	subs   []func(any)
	cfg    Config
	mu     sync.RWMutex
}

type RunnerOpt func(*Runner)

func WithTracer(t tracing.Tracer) RunnerOpt {
	return func(r *Runner) {
		r.tracer = t
	}
}

func WithLogger(l *slog.Logger) RunnerOpt {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner validates cfg and creates a [Runner].
func NewRunner(cfg Config, opts ...RunnerOpt) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Runner{
		cfg:    cfg,
		tracer: tracing.NopTracer{},
		logger: slog.Default(),
		subs:   []func(any){},
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Subscribe registers f to receive progress events. Events are delivered
// from the scenario goroutines, so f must be safe for concurrent use.
func (r *Runner) Subscribe(f func(any)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subs = append(r.subs, f)
}

func (r *Runner) broadcastEvent(evt any) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sub := range r.subs {
		sub(evt)
	}
}

// Run runs every selected scenario and returns the report. The error joins
// the errors of all failed scenarios.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	names := r.cfg.ScenarioNames()
	report := &Report{
		RunID:   uuid.NewString(),
		Results: make([]Result, len(names)),
	}

	logger := r.logger.With(slog.String("run_id", report.RunID))
	workerCount := int64(r.cfg.Parallelism)
	sem := semaphore.NewWeighted(workerCount)

	r.broadcastEvent(EventSetScenarioTotal(len(names)))

	for i, name := range names {
		err := sem.Acquire(ctx, 1)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrRunnerFailed, err)
			r.wait(sem, workerCount)
			r.broadcastEvent(EventDone{Err: err})

			return report, err
		}

		r.broadcastEvent(EventRunningScenario(name))

		go func() {
			defer sem.Release(1)

			scenarioLogger := logger.With(slog.String("scenario", name))
			scenarioLogger.Info("running scenario")

			res := r.runScenario(ctx, name)
			report.Results[i] = res

			if res.Err != nil {
				scenarioLogger.Error("scenario failed", slog.Any("err", res.Err))
			} else {
				scenarioLogger.Info("finished scenario",
					slog.Int64("ops", res.Ops),
					slog.Duration("elapsed", res.Elapsed),
				)
			}

			r.broadcastEvent(EventScenarioDone(res))
		}()
	}

	r.wait(sem, workerCount)

	var merr error
	for _, res := range report.Results {
		if res.Err != nil {
			merr = multierror.Append(merr, fmt.Errorf("%s: %w", res.Scenario, res.Err))
		}
	}

	r.broadcastEvent(EventDone{Err: merr})

	if merr != nil {
		return report, merr
	}

	logger.Info("stress run complete", slog.Int("scenarios", len(names)))

	return report, nil
}

// wait blocks until the in-flight scenarios finish. It ignores the run
// context, which may be done while scenarios still unwind.
func (r *Runner) wait(sem *semaphore.Weighted, n int64) {
	// Acquire only fails for a done context.
	_ = sem.Acquire(context.Background(), n)
}

func (r *Runner) runScenario(ctx context.Context, name string) Result {
	span := r.tracer.StartSpan("stress." + name)
	defer span.Finish()

	env := newEnv(r.cfg)
	start := time.Now()
	err := scenarios[name](ctx, env)

	res := Result{
		Scenario: name,
		Ops:      env.Ops(),
		Elapsed:  time.Since(start),
		Err:      err,
	}

	span.SetBaggageItem("workers", env.Workers)
	span.SetBaggageItem("ops", res.Ops)
	span.SetBaggageItem("failed", err != nil)

	return res
}
