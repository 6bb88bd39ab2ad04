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
	"github.com/armcmn/cmn-pmu/mmio"
	"github.com/armcmn/cmn-pmu/packet"
	"github.com/armcmn/cmn-pmu/pmu"
	"github.com/armcmn/cmn-pmu/profiler"
)

// cmdTrace captures flits matching the given events into a trace log,
// printing per-interval capture rates while running.
func cmdTrace(args []string) error {
	fs := flag.NewFlagSet("trace", flag.ContinueOnError)
	var events eventFlags
	fs.Var(&events, "e", "event expression cmn<N>/.../ (repeatable)")
	interval := fs.Int("I", 1000, "emission interval in `ms` (100..100000)")
	timeout := fs.Int("t", 0, "stop after `ms` (0: run until interrupted)")
	tracetag := fs.Bool("tracetag", false, "first event's match gates capture from all events")
	maxSize := fs.Int("max-size", 1, "stop once captured packets reach `MB`")
	output := fs.String("o", "trace.data", "trace log output `file`")
	if err := fs.Parse(args); err != nil {
		return cmnerr.Newf(cmnerr.ParseError, "%v", err)
	}

	evs, err := parseEvents(events)
	if err != nil {
		return err
	}
	opts := profiler.TraceOptions{
		Options: profiler.Options{
			Interval: time.Duration(*interval) * time.Millisecond,
			Timeout:  time.Duration(*timeout) * time.Millisecond,
			Log:      log.Default(),
		},
		MaxSizeMB: *maxSize,
		TraceTag:  *tracetag,
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	msg := "stop when captured packet size reaches " + groupDigits(uint64(*maxSize)) + "MB, or "
	if *timeout > 0 {
		banner(msg+"after %d msec", *timeout)
	} else {
		banner(msg + "ctrl-c to stop immediately")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc := pmu.NewContext(pmu.ModeTrace, mmio.OpenMesh, log.Default())
	records, err := profiler.RunTrace(ctx, pc, evs, opts, func(block []profiler.Counter) {
		separator()
		for _, c := range block {
			counterLine(c.Name, c.Value)
		}
	})
	if err != nil {
		return err
	}

	separator()
	total := 0
	for _, rec := range records {
		if rec.Packets != nil {
			total += rec.Packets.Size()
		}
	}
	banner("save %s packets to %s ...", groupDigits(uint64(total)), *output)
	if err := packet.Save(*output, records); err != nil {
		return err
	}
	if fi, err := os.Stat(*output); err == nil {
		banner("total packets: %s, file size: %s",
			groupDigits(uint64(total)), groupDigits(uint64(fi.Size())))
	}
	return nil
}
