package profiler

import (
	"io"
	"log"
	"time"

	"github.com/armcmn/cmn-pmu/cmnerr"
)

// Interval bounds accepted by both collection loops.
const (
	MinInterval = 100 * time.Millisecond
	MaxInterval = 100 * time.Second
)

// Options configures a collection loop.
type Options struct {
	// Interval is the emission period, in [MinInterval, MaxInterval].
	Interval time.Duration
	// Timeout bounds the whole run; zero means run until cancelled. A
	// nonzero Timeout must be at least Interval.
	Timeout time.Duration

	Clock Clock
	Log   *log.Logger
}

// normalize fills in the default clock and a discarding logger.
func (o *Options) normalize() {
	if o.Clock == nil {
		o.Clock = RealClock
	}
	if o.Log == nil {
		o.Log = log.New(io.Discard, "", 0)
	}
}

// Validate checks the interval and timeout bounds.
func (o *Options) Validate() error {
	if o.Interval < MinInterval || o.Interval > MaxInterval {
		return cmnerr.Newf(cmnerr.ParseError, "interval %v out of range [%v, %v]",
			o.Interval, MinInterval, MaxInterval)
	}
	if o.Timeout != 0 && o.Timeout < o.Interval {
		return cmnerr.Newf(cmnerr.ParseError, "timeout %v shorter than interval %v",
			o.Timeout, o.Interval)
	}
	return nil
}

// Counter is one event's value for an emitted block: the absolute
// snapshot count in stat mode, the packets captured this interval in
// trace mode.
type Counter struct {
	Name  string
	Value uint64
}

// EmitFunc receives one block of per-event counters per interval.
type EmitFunc func([]Counter)
