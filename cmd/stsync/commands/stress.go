package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/macropower/stsync/pkg/log"
	"github.com/macropower/stsync/pkg/stress"
	"github.com/macropower/stsync/pkg/stresstui"
	"github.com/macropower/stsync/pkg/tracing"
)

var (
	ErrArgument     = errors.New("invalid argument")
	ErrConfigFailed = errors.New("config failed")
	ErrStressFailed = errors.New("stress run failed")
)

type StressArgs struct {
	config      *string
	scenarios   *[]string
	workers     *int
	rounds      *int
	parallelism *int
	spin        *int
	duration    *time.Duration
	opTimeout   *time.Duration
	quiet       *bool
	*RootArgs
}

func NewStressArgs(args *RootArgs) *StressArgs {
	return &StressArgs{
		config:      new(string),
		scenarios:   new([]string),
		workers:     new(int),
		rounds:      new(int),
		parallelism: new(int),
		spin:        new(int),
		duration:    new(time.Duration),
		opTimeout:   new(time.Duration),
		quiet:       new(bool),
		RootArgs:    args,
	}
}

func (a *StressArgs) GetConfig() string {
	return *a.config
}

func (a *StressArgs) GetScenarios() []string {
	return *a.scenarios
}

func (a *StressArgs) GetWorkers() int {
	return *a.workers
}

func (a *StressArgs) GetRounds() int {
	return *a.rounds
}

func (a *StressArgs) GetParallelism() int {
	return *a.parallelism
}

func (a *StressArgs) GetSpin() int {
	return *a.spin
}

func (a *StressArgs) GetDuration() time.Duration {
	return *a.duration
}

func (a *StressArgs) GetOpTimeout() time.Duration {
	return *a.opTimeout
}

func (a *StressArgs) GetQuiet() bool {
	return *a.quiet
}

// NewStressCmd returns the stress command.
func NewStressCmd(rootArgs *RootArgs) *cobra.Command {
	args := NewStressArgs(rootArgs)
	defaults := stress.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "stress",
		Short: "Run stress scenarios against the synchronization primitives",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			cfg, err := loadStressConfig(cc, args)
			if err != nil {
				return err
			}

			return runStress(cc, args, cfg)
		},
	}

	cmd.Flags().StringVarP(args.config, "config", "c", "", "YAML file with the stress configuration")
	cmd.Flags().StringSliceVar(args.scenarios, "scenarios", nil,
		fmt.Sprintf("Scenarios to run (%v)", stress.Scenarios()))
	cmd.Flags().IntVarP(args.workers, "workers", "w", defaults.Workers, "Goroutines per scenario")
	cmd.Flags().IntVar(args.rounds, "rounds", defaults.Rounds, "Operations per worker")
	cmd.Flags().IntVar(args.parallelism, "parallelism", defaults.Parallelism, "Scenarios running at the same time")
	cmd.Flags().IntVar(args.spin, "spin", defaults.Spin, "Spin count before parking")
	cmd.Flags().DurationVarP(args.duration, "duration", "d", defaults.Duration, "Time limit of each scenario (0 runs all rounds)")
	cmd.Flags().DurationVar(args.opTimeout, "op_timeout", defaults.OpTimeout, "Timeout of every blocking operation")
	cmd.Flags().BoolVarP(args.quiet, "quiet", "q", false, "Disable the interactive progress display")

	must(cmd.MarkFlagFilename("config", "yaml", "yml"))

	cmd.AddCommand(NewStressSchemaCmd())

	return cmd
}

// NewStressSchemaCmd returns the command printing the config schema.
func NewStressSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the stress configuration",
		Args:  cobra.NoArgs,
		RunE: func(cc *cobra.Command, _ []string) error {
			b, err := stress.Schema()
			if err != nil {
				return fmt.Errorf("%w: %w", ErrConfigFailed, err)
			}

			_, err = fmt.Fprintln(cc.OutOrStdout(), string(b))
			if err != nil {
				return fmt.Errorf("write schema: %w", err)
			}

			return nil
		},
	}
}

// loadStressConfig reads the config file, if any, then applies the flags
// that were set explicitly.
func loadStressConfig(cc *cobra.Command, args *StressArgs) (stress.Config, error) {
	cfg := stress.DefaultConfig()

	if path := args.GetConfig(); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrConfigFailed, err)
		}

		cfg, err = stress.LoadConfig(f)
		must(f.Close())

		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %w", ErrConfigFailed, path, err)
		}
	}

	flags := cc.Flags()

	if flags.Changed("scenarios") {
		cfg.Scenarios = args.GetScenarios()
	}

	if flags.Changed("workers") {
		cfg.Workers = args.GetWorkers()
	}

	if flags.Changed("rounds") {
		cfg.Rounds = args.GetRounds()
	}

	if flags.Changed("parallelism") {
		cfg.Parallelism = args.GetParallelism()
	}

	if flags.Changed("spin") {
		cfg.Spin = args.GetSpin()
	}

	if flags.Changed("duration") {
		cfg.Duration = args.GetDuration()
	}

	if flags.Changed("op_timeout") {
		cfg.OpTimeout = args.GetOpTimeout()
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: %w", ErrArgument, err)
	}

	return cfg, nil
}

func runStress(cc *cobra.Command, args *StressArgs, cfg stress.Config) error {
	logger := slog.Default()
	interactive := !args.GetQuiet() && isatty.IsTerminal(os.Stdout.Fd())

	var tui *stresstui.TUI

	if interactive {
		lvl, err := log.ParseLevel(args.GetLogLevel())
		if err != nil {
			// Should not be possible due to root's PersistentPreRunE.
			return fmt.Errorf("%w: %w", ErrArgument, err)
		}

		tui = stresstui.NewTUI(cc.OutOrStdout(), lvl)
		logger = tui.Logger()
	}

	runner, err := stress.NewRunner(cfg,
		stress.WithLogger(logger),
		stress.WithTracer(tracing.NewLoggingTracer(logger)),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrArgument, err)
	}

	var report *stress.Report

	if interactive {
		report, err = tui.Run(cc.Context(), runner)
	} else {
		report, err = runner.Run(cc.Context())
	}

	if report != nil {
		if werr := writeReport(cc.OutOrStdout(), report); werr != nil {
			return werr
		}
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrStressFailed, err)
	}

	return nil
}

func writeReport(w io.Writer, report *stress.Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "run %s\n", report.RunID)
	fmt.Fprintln(tw, "SCENARIO\tOPS\tELAPSED\tRESULT")

	for _, res := range report.Results {
		if res.Scenario == "" {
			continue
		}

		result := "ok"
		if res.Err != nil {
			result = res.Err.Error()
		}

		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", res.Scenario, res.Ops, res.Elapsed.Round(time.Millisecond), result)
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}
