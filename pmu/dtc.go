package pmu

import (
	"time"

	"github.com/armcmn/cmn-pmu/cmn"
	"github.com/armcmn/cmn-pmu/cmnerr"
)

const dtcNumCounters = 8

// DTC wraps a domain's debug trace controller node: allocating its eight
// wide counters to DTMs first-fit, and sequencing the domain-wide
// enable/snapshot registers that only matter on domain 0.
type DTC struct {
	node *cmn.DeviceNode
	mode Mode

	next int
}

func newDTC(node *cmn.DeviceNode, mode Mode) *DTC {
	return &DTC{node: node, mode: mode}
}

// NextCounter allocates the next free wide counter, or reports false once
// all eight are in use.
func (d *DTC) NextCounter() (int, bool) {
	if d.next >= dtcNumCounters {
		return 0, false
	}
	i := d.next
	d.next++
	return i, true
}

// Configure programs mode-specific domain-wide fields: stat mode clears
// every wide counter on the next snapshot, trace mode timestamps every
// captured flit with a cycle count.
func (d *DTC) Configure() error {
	if d.mode == ModeStat {
		v, err := d.node.ReadOff(0x2100) // por_dt_pmcr
		if err != nil {
			return err
		}
		return d.node.WriteOff(0x2100, uint64(v.SetBit(5, true))) // cntr_rst
	}
	v, err := d.node.ReadOff(0x0A30) // por_dt_trace_control
	if err != nil {
		return err
	}
	return d.node.WriteOff(0x0A30, uint64(v.SetBit(8, true))) // cc_enable
}

// Enable0 turns the domain on, only meaningful on domain 0: stat mode also
// enables the PMU itself before the domain enable; trace mode needs only
// the domain enable.
func (d *DTC) Enable0() error {
	if d.mode == ModeStat {
		v, err := d.node.ReadOff(0x2100) // por_dt_pmcr
		if err != nil {
			return err
		}
		if v.Bit(0) == 0 {
			if err := d.node.WriteOff(0x2100, uint64(v.SetBit(0, true))); err != nil {
				return err
			}
		}
	}
	v, err := d.node.ReadOff(0x0A00) // por_dt_dtc_ctl
	if err != nil {
		return err
	}
	if v.Bit(0) != 0 {
		return nil
	}
	return d.node.WriteOff(0x0A00, uint64(v.SetBit(0, true)))
}

// Snapshot latches every domain-0 wide counter's current value by writing
// por_dt_pmsrr.ss_req, to be read back through ShadowCounter once settled.
func (d *DTC) Snapshot() error {
	return d.node.WriteOff(0x2130, 1)
}

// WaitCounterReady polls por_dt_pmssr.ss_status for counter's bit, up to
// 100ms in 1ms steps.
func (d *DTC) WaitCounterReady(counter int) error {
	for i := 0; i < 100; i++ {
		v, err := d.node.ReadOff(0x2128) // por_dt_pmssr
		if err != nil {
			return err
		}
		if v.Bits(0, 8)&(1<<uint(counter)) != 0 {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return cmnerr.New(cmnerr.SnapshotTimeout, "timeout waiting for DTC snapshot")
}

// ShadowCounter reads the 32-bit half of a wide counter held by this
// DTC, to be combined with its DTM's 16-bit half.
func (d *DTC) ShadowCounter(counter int) (uint64, error) {
	reg := uint64(0x2050) + uint64(counter/2)*16
	v, err := d.node.ReadOff(reg)
	if err != nil {
		return 0, err
	}
	start := uint((counter % 2) * 32)
	return v.Bits(start, start+31), nil
}
