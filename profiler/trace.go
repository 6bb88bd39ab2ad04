package profiler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/armcmn/cmn-pmu/event"
	"github.com/armcmn/cmn-pmu/packet"
	"github.com/armcmn/cmn-pmu/pmu"
)

// TraceOptions extends Options with the trace-mode stop condition and
// tracetag gating.
type TraceOptions struct {
	Options

	// MaxSizeMB stops the run once the captured packets would serialize
	// to at least this many megabytes. Zero means no size bound.
	MaxSizeMB int
	// TraceTag makes the first event's match gate packet emission from
	// every event: the remaining events' own matches are ignored.
	TraceTag bool
}

// staleWait bounds the wait for the stale first packet each watchpoint
// emits right after enable.
const staleWait = 10 * time.Millisecond

// idlePollRate paces the FIFO poll when no watchpoint had a packet
// ready, so an idle mesh doesn't pin a host core. A poll that did drain
// something is never delayed.
var idlePollRate = rate.Every(20 * time.Microsecond)

// RunTrace programs events as packet-capturing watchpoints, busy-polls
// their FIFOs, and emits one block of per-interval packet deltas per
// interval. It returns the captured trace records once the size bound or
// timeout is reached, or ctx is cancelled. The PMU is reset before
// returning on every path.
func RunTrace(ctx context.Context, pc *pmu.Context, events []*event.Event, opts TraceOptions, emit EmitFunc) (records []*packet.Record, err error) {
	opts.normalize()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.TraceTag && len(events) > 0 {
		retagEvents(events, opts.Options)
	}

	defer func() {
		if rerr := pc.Reset(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	configured, err := pc.Configure(events)
	if err != nil {
		return nil, err
	}
	if opts.TraceTag && len(configured) > 0 {
		if err := configured[0].DTM.EnableTraceTag(); err != nil {
			return nil, err
		}
	}
	if err := pc.Enable(); err != nil {
		return nil, err
	}
	if err := skipStalePackets(configured, opts.Clock); err != nil {
		return nil, err
	}

	buffers := make([]*packet.Buffer, len(configured))
	for i := range buffers {
		buffers[i] = &packet.Buffer{}
	}

	clock := opts.Clock
	limiter := rate.NewLimiter(idlePollRate, 256)
	iterations := int64(0)
	if opts.Timeout > 0 {
		iterations = int64(opts.Timeout / opts.Interval)
	}
	lastCounts := make([]int, len(configured))

	for opts.Timeout <= 0 || iterations > 0 {
		deadline := clock.Now().Add(opts.Interval)
		for clock.Now().Before(deadline) {
			drained, err := drainFIFOs(configured, buffers)
			if err != nil {
				return nil, err
			}
			if ctx.Err() != nil {
				return buildRecords(configured, buffers), nil
			}
			if drained == 0 {
				if err := limiter.Wait(ctx); err != nil {
					return buildRecords(configured, buffers), nil
				}
			}
		}

		block := make([]Counter, len(configured))
		total := 0
		for i, ce := range configured {
			count := buffers[i].Size()
			block[i] = Counter{Name: ce.Event.Name, Value: uint64(count - lastCounts[i])}
			lastCounts[i] = count
			total += count
		}
		emit(block)
		if opts.MaxSizeMB > 0 && total*packet.Size >= opts.MaxSizeMB*1000*1000 {
			opts.Log.Print("captured size reached limit, stop tracing")
			break
		}
		iterations--
	}
	return buildRecords(configured, buffers), nil
}

// retagEvents rewrites every event after the first for a tracetag run:
// only the first event's match fires the tag, so the others' own match
// predicates are zeroed (with a warning when they would have filtered
// anything) and renamed to make the ignored matches visible.
func retagEvents(events []*event.Event, opts Options) {
	for _, ev := range events[1:] {
		for i, mg := range ev.MatchGroups {
			if len(mg.Matches) > 0 {
				opts.Log.Printf("ignored matchgroup%d of %s under tracetag", mg.Group, ev.Name)
			}
			ev.ValMasks[i] = event.ValMask{}
		}
		ev.Name = fmt.Sprintf("cmn%d-xp%d-port%d-%s-%s-tracetag",
			ev.Mesh, ev.XPNodeID, ev.Port, ev.Direction, ev.Channel)
	}
}

// skipStalePackets consumes and discards the stale packet each
// watchpoint holds right after enable, waiting briefly for it to appear.
func skipStalePackets(configured []pmu.ConfiguredEvent, clock Clock) error {
	for _, ce := range configured {
		deadline := clock.Now().Add(staleWait)
		for {
			ready, err := ce.DTM.FIFOReady(ce.WPIndex)
			if err != nil {
				return err
			}
			if ready || !clock.Now().Before(deadline) {
				if err := ce.DTM.AckFIFO(ce.WPIndex); err != nil {
					return err
				}
				break
			}
			clock.Sleep(time.Millisecond)
		}
	}
	return nil
}

// drainFIFOs copies every ready FIFO entry straight into its event's
// packet buffer and acknowledges it, reporting how many packets moved.
func drainFIFOs(configured []pmu.ConfiguredEvent, buffers []*packet.Buffer) (int, error) {
	drained := 0
	for i, ce := range configured {
		ready, err := ce.DTM.FIFOReady(ce.WPIndex)
		if err != nil {
			return drained, err
		}
		if !ready {
			continue
		}
		if err := ce.DTM.ReadFIFOEntry(ce.WPIndex, buffers[i].NextSlot()); err != nil {
			return drained, err
		}
		drained++
	}
	return drained, nil
}

func buildRecords(configured []pmu.ConfiguredEvent, buffers []*packet.Buffer) []*packet.Record {
	records := make([]*packet.Record, len(configured))
	for i, ce := range configured {
		rec := packet.NewRecord(ce.Event)
		if buffers[i].Size() > 0 {
			rec.Packets = buffers[i]
		}
		records[i] = rec
	}
	return records
}
