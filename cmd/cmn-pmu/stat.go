package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/armcmn/cmn-pmu/cmnerr"
	"github.com/armcmn/cmn-pmu/event"
	"github.com/armcmn/cmn-pmu/mmio"
	"github.com/armcmn/cmn-pmu/pmu"
	"github.com/armcmn/cmn-pmu/profiler"
)

// parseEvents compiles every -e argument into its events.
func parseEvents(flags eventFlags) ([]*event.Event, error) {
	if len(flags) == 0 {
		return nil, cmnerr.New(cmnerr.ParseError, "at least one -e event is required")
	}
	var events []*event.Event
	for _, s := range flags {
		evs, err := event.Parse(s)
		if err != nil {
			return nil, err
		}
		events = append(events, evs...)
	}
	return events, nil
}

// cmdStat counts flits matching the given events, printing one block of
// counters per interval until the timeout elapses or interrupted.
func cmdStat(args []string) error {
	fs := flag.NewFlagSet("stat", flag.ContinueOnError)
	var events eventFlags
	fs.Var(&events, "e", "event expression cmn<N>/.../ (repeatable)")
	interval := fs.Int("I", 1000, "emission interval in `ms` (100..100000)")
	timeout := fs.Int("t", 0, "stop after `ms` (0: run until interrupted)")
	if err := fs.Parse(args); err != nil {
		return cmnerr.Newf(cmnerr.ParseError, "%v", err)
	}

	evs, err := parseEvents(events)
	if err != nil {
		return err
	}
	opts := profiler.Options{
		Interval: time.Duration(*interval) * time.Millisecond,
		Timeout:  time.Duration(*timeout) * time.Millisecond,
		Log:      log.Default(),
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	if *timeout > 0 {
		banner("stop in %d msec", *timeout)
	} else {
		banner("press ctrl-c to stop")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc := pmu.NewContext(pmu.ModeStat, mmio.OpenMesh, log.Default())
	return profiler.RunStat(ctx, pc, evs, opts, func(block []profiler.Counter) {
		separator()
		for _, c := range block {
			counterLine(c.Name, c.Value)
		}
	})
}
