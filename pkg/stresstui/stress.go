package stresstui

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/macropower/stsync/pkg/log"
	"github.com/macropower/stsync/pkg/stress"
)

// Runner runs stress scenarios and reports progress events.
// See [stress.Runner] for an implementation.
type Runner interface {
	Run(ctx context.Context) (*stress.Report, error)
	Subscribe(f func(any))
}

// TUI displays a [RunModel] while a [Runner] runs.
type TUI struct {
	p      *tea.Program
	w      io.Writer
	logger *slog.Logger
}

// NewTUI creates a [TUI] writing to w. Records at or above level that are
// written to [TUI.Logger] are printed above the progress display.
func NewTUI(w io.Writer, level slog.Level) *TUI {
	t := &TUI{
		w: w,
	}

	t.logger = slog.New(log.CreateHandler(t, level, log.FormatText))

	return t
}

// Logger returns a logger whose output is shown in the TUI.
func (t *TUI) Logger() *slog.Logger {
	return t.logger
}

func (t *TUI) broadcastEvent(evt any) {
	if t.p != nil {
		t.p.Send(evt)
	}
}

func (t *TUI) Write(p []byte) (int, error) {
	t.broadcastEvent(TeaMsgWriteLog(string(p)))

	return len(p), nil
}

// Run runs the scenarios of runner while displaying their progress. Leaving
// the TUI early cancels the run.
func (t *TUI) Run(ctx context.Context, runner Runner) (*stress.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.p = tea.NewProgram(NewRunModel(), tea.WithOutput(t.w), tea.WithContext(ctx))
	runner.Subscribe(t.broadcastEvent)

	type result struct {
		report *stress.Report
		err    error
	}

	done := make(chan result, 1)

	go func() {
		report, err := runner.Run(ctx)
		done <- result{report: report, err: err}
	}()

	_, err := t.p.Run()

	// Quitting the TUI stops the run; the run ending also quits the TUI.
	cancel()

	res := <-done

	if err != nil && res.err == nil {
		return res.report, fmt.Errorf("failed to launch tui: %w", err)
	}

	return res.report, res.err
}
