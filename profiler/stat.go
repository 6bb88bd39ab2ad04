package profiler

import (
	"context"

	"github.com/armcmn/cmn-pmu/event"
	"github.com/armcmn/cmn-pmu/pmu"
)

// RunStat programs events as counting watchpoints and emits one block of
// absolute counter values per interval, snapshotting the hardware each
// time. The run ends when the timeout elapses or ctx is cancelled; the
// PMU is reset before returning on every path, success or not.
func RunStat(ctx context.Context, pc *pmu.Context, events []*event.Event, opts Options, emit EmitFunc) (err error) {
	opts.normalize()
	if err := opts.Validate(); err != nil {
		return err
	}

	defer func() {
		if rerr := pc.Reset(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	configured, err := pc.Configure(events)
	if err != nil {
		return err
	}
	if err := pc.Enable(); err != nil {
		return err
	}

	clock := opts.Clock
	iterations := int64(0)
	if opts.Timeout > 0 {
		iterations = int64(opts.Timeout / opts.Interval)
	}
	next := clock.Now()
	for opts.Timeout <= 0 || iterations > 0 {
		next = next.Add(opts.Interval)
		if sleep := next.Sub(clock.Now()); sleep > 0 {
			clock.Sleep(sleep)
		} else {
			opts.Log.Print("run time exceeds stat interval")
			next = clock.Now()
		}
		if ctx.Err() != nil {
			return nil
		}

		results, err := pc.Snapshot(configured)
		if err != nil {
			return err
		}
		block := make([]Counter, len(configured))
		for i, ce := range configured {
			block[i] = Counter{Name: ce.Event.Name, Value: results[ce.Event.Name]}
		}
		emit(block)
		iterations--
	}
	return nil
}
