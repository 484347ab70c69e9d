package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/macropower/stsync/pkg/log"
)

var (
	ErrLogHandlerFailed = errors.New("log handler failed")
	ErrProfileFailed    = errors.New("profile failed")
)

// profiles collects the runtime profiles requested by the root flags.
type profiles struct {
	heap   *pprof.Profile
	allocs *pprof.Profile
	block  *pprof.Profile
	mutex  *pprof.Profile
	cpu    *os.File
}

func NewRootCmd(name, shortDesc, longDesc string) *cobra.Command {
	args := NewRootArgs()
	profs := &profiles{}

	cmd := &cobra.Command{
		Use:           name,
		Short:         shortDesc,
		Long:          longDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       GetVersionString(),
	}

	cmd.PersistentFlags().StringVar(args.logLevel, "log_level", "warn", "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(args.logFormat, "log_format", "text", "Set the log format (text, logfmt, json)")

	cmd.PersistentFlags().StringVar(args.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(args.heapProfile, "heapprofile", "", "Write a heap profile to this file")
	cmd.PersistentFlags().StringVar(args.memProfile, "memprofile", "", "Write a memory profile to this file")
	cmd.PersistentFlags().
		IntVar(args.memProfileRate, "memprofile_rate", 512*1024, "Memory profiling rate as a fraction")
	cmd.PersistentFlags().StringVar(args.blockProfile, "blockprofile", "", "Write a block profile to this file")
	cmd.PersistentFlags().IntVar(args.blockProfileRate, "blockprofile_rate", 1, "Block profiling rate as a fraction")
	cmd.PersistentFlags().StringVar(args.mutexProfile, "mutexprofile", "", "Write a mutex profile to this file")
	cmd.PersistentFlags().IntVar(args.mutexProfileRate, "mutexprofile_rate", 1, "Mutex profiling rate as a fraction")

	for _, flag := range []string{"cpuprofile", "heapprofile", "memprofile", "blockprofile", "mutexprofile"} {
		must(cmd.MarkPersistentFlagFilename(flag))
	}

	cmd.PersistentPreRunE = func(cc *cobra.Command, _ []string) error {
		h, err := log.CreateHandlerWithStrings(
			cc.ErrOrStderr(),
			args.GetLogLevel(),
			args.GetLogFormat(),
		)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrLogHandlerFailed, err)
		}

		slog.SetDefault(slog.New(h))

		if err := profs.start(args); err != nil {
			return fmt.Errorf("%w: %w", ErrProfileFailed, err)
		}

		slog.Debug("ready to go")

		return nil
	}

	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		slog.Debug("shutting down")

		if err := profs.stop(args); err != nil {
			return fmt.Errorf("%w: %w", ErrProfileFailed, err)
		}

		return nil
	}

	cmd.AddCommand(NewVersionCmd())
	cmd.AddCommand(NewStressCmd(args))

	return cmd
}

func (p *profiles) start(args *RootArgs) error {
	if args.GetCPUProfile() != "" {
		f, err := os.Create(args.GetCPUProfile())
		if err != nil {
			return fmt.Errorf("create CPU profile: %w", err)
		}

		err = pprof.StartCPUProfile(f)
		if err != nil {
			must(f.Close())

			return fmt.Errorf("start CPU profile: %w", err)
		}

		p.cpu = f
	}

	if args.GetHeapProfile() != "" || args.GetMemProfile() != "" {
		runtime.MemProfileRate = args.GetMemProfileRate()
	}

	if args.GetHeapProfile() != "" {
		p.heap = pprof.Lookup("heap")
	}

	if args.GetMemProfile() != "" {
		p.allocs = pprof.Lookup("allocs")
	}

	// Block and mutex profiles show where waiters park and where the
	// primitives' internal locks are contended.
	if args.GetBlockProfile() != "" {
		runtime.SetBlockProfileRate(args.GetBlockProfileRate())

		p.block = pprof.Lookup("block")
	}

	if args.GetMutexProfile() != "" {
		runtime.SetMutexProfileFraction(args.GetMutexProfileRate())

		p.mutex = pprof.Lookup("mutex")
	}

	return nil
}

// stop stops CPU profiling and writes the other requested profiles. It
// attempts every profile and returns all failures.
func (p *profiles) stop(args *RootArgs) error {
	var merr error

	if p.cpu != nil {
		pprof.StopCPUProfile()

		if err := p.cpu.Close(); err != nil {
			merr = multierror.Append(merr, fmt.Errorf("close CPU profile: %w", err))
		}

		p.cpu = nil
	}

	if p.allocs != nil {
		runtime.GC() //nolint:revive // Get up-to-date statistics for the profile.
	}

	for _, wp := range []struct {
		prof *pprof.Profile
		path string
	}{
		{p.heap, args.GetHeapProfile()},
		{p.allocs, args.GetMemProfile()},
		{p.block, args.GetBlockProfile()},
		{p.mutex, args.GetMutexProfile()},
	} {
		if wp.prof == nil {
			continue
		}

		if err := writeProfile(wp.prof, wp.path); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return merr
}

func writeProfile(prof *pprof.Profile, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s profile: %w", prof.Name(), err)
	}

	err = prof.WriteTo(f, 0)
	if err != nil {
		must(f.Close())

		return fmt.Errorf("write %s profile: %w", prof.Name(), err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s profile: %w", prof.Name(), err)
	}

	return nil
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
