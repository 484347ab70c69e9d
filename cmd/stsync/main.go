package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/macropower/stsync/cmd/stsync/commands"
)

const (
	cmdName = "stsync"

	shortDesc = "Stress tests for the stsync synchronization primitives."
	longDesc  = `stsync runs concurrent scenarios against the stsync wait/wake engine.

Each scenario drives one primitive (counting permits, binary signals, fair
and reentrant locks, multi-object waits, countdown events, one-time
initialization and keyed locks) from many goroutines and checks its
invariants: mutual exclusion, permit accounting and the absence of lost
wakeups.
`
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	cmd := commands.NewRootCmd(cmdName, shortDesc, longDesc)

	err := cmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimLeft(err.Error(), "\n"))
		os.Exit(1)
	}
}
