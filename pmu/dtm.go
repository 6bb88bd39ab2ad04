package pmu

import (
	"encoding/binary"

	"github.com/armcmn/cmn-pmu/cmn"
	"github.com/armcmn/cmn-pmu/cmnerr"
	"github.com/armcmn/cmn-pmu/event"
)

const dtmNumWatchpoints = 4

// DTM wraps one crosspoint's debug trace monitor: four watchpoints (0 and 1
// face uploads, 2 and 3 face downloads), allocated first-fit within the
// half matching an event's direction and paired with a counter in the
// owning DTC domain.
type DTM struct {
	xp   *cmn.MXP
	dtc  *DTC
	dtc0 *DTC
	mode Mode

	wpInUse [dtmNumWatchpoints]bool
}

// newDTM constructs a DTM for xp. An XP with more than two ports carries
// one DTM per port pair when multi_dtm_enabled is set; addressing those
// extra DTMs is unsupported, so such crosspoints are refused outright.
func newDTM(cfg *cmn.CFG, xp *cmn.MXP, dtc, dtc0 *DTC) (*DTM, error) {
	if cfg.MultiDTMEnabled && len(xp.PortDevs) > 2 {
		return nil, cmnerr.Newf(cmnerr.UnsupportedTopology,
			"xp %d has %d ports with multi_dtm_enabled set", xp.NodeID(), len(xp.PortDevs))
	}
	return &DTM{xp: xp, dtc: dtc, dtc0: dtc0, mode: dtc.mode}, nil
}

func wpConfigOff(i int) uint64 { return 0x21A0 + uint64(i)*24 }
func wpValOff(i int) uint64    { return 0x21A8 + uint64(i)*24 }
func wpMaskOff(i int) uint64   { return 0x21B0 + uint64(i)*24 }
func fifoEntryOff(i int) uint64 { return 0x2120 + uint64(i)*24 }

// Configure allocates a watchpoint (or a primary/secondary pair, for a
// two-group event), programs its match/mask/channel/port fields, pairs it
// with a free DTC counter in stat mode, or arms packet capture in trace
// mode. It returns the primary watchpoint index and the DTC counter it
// was paired with, or -1 in trace mode where no counter is involved.
func (m *DTM) Configure(ev *event.Event) (wpIndex int, dtcCounter int, err error) {
	slots, err := m.allocWatchpoints(ev.Direction, len(ev.ValMasks))
	if err != nil {
		return 0, 0, err
	}

	primary := slots[0]
	if len(slots) == 2 {
		if err := m.setCombine(primary); err != nil {
			return 0, 0, err
		}
	}

	for i, wp := range slots {
		mg := ev.MatchGroups[i]
		if err := m.programWatchpoint(wp, ev, ev.ValMasks[i], mg.Group); err != nil {
			return 0, 0, err
		}
	}

	if m.mode == ModeStat {
		counter, ok := m.dtc.NextCounter()
		if !ok {
			return 0, 0, cmnerr.New(cmnerr.NoResources, "dtc domain has no free counters")
		}
		if err := m.pairCounter(primary, counter); err != nil {
			return 0, 0, err
		}
		return primary, counter, nil
	}

	if err := m.configureTrace(primary); err != nil {
		return 0, 0, err
	}
	return primary, -1, nil
}

// allocWatchpoints picks the primary watchpoint for dir (0 for up, 2 for
// down) and, for a two-group event, its fixed pair (primary+1): wp_combine
// only chains watchpoint 0 with 1, or 2 with 3, never an arbitrary pair.
func (m *DTM) allocWatchpoints(dir event.Direction, n int) ([]int, error) {
	primary := 0
	if dir == event.DirectionDown {
		primary = 2
	}
	if n == 2 {
		if m.wpInUse[primary] || m.wpInUse[primary+1] {
			return nil, cmnerr.New(cmnerr.NoResources, "no watchpoint pair available")
		}
		m.wpInUse[primary] = true
		m.wpInUse[primary+1] = true
		return []int{primary, primary + 1}, nil
	}
	if m.wpInUse[primary] {
		primary++
	}
	if m.wpInUse[primary] {
		return nil, cmnerr.New(cmnerr.NoResources, "no watchpoint available")
	}
	m.wpInUse[primary] = true
	return []int{primary}, nil
}

// setCombine sets wp_combine on the primary slot's own config register.
// The secondary slot's combine bit is left clear.
func (m *DTM) setCombine(primary int) error {
	v, err := m.xp.ReadOff(wpConfigOff(primary))
	if err != nil {
		return err
	}
	return m.xp.WriteOff(wpConfigOff(primary), uint64(v.SetBit(9, true)))
}

// programWatchpoint writes a watchpoint's match value, mask, channel
// select, port select, and group fields.
func (m *DTM) programWatchpoint(i int, ev *event.Event, vm event.ValMask, group int) error {
	if err := m.xp.WriteOff(wpValOff(i), vm.Value); err != nil {
		return err
	}
	if err := m.xp.WriteOff(wpMaskOff(i), vm.Mask); err != nil {
		return err
	}
	v, err := m.xp.ReadOff(wpConfigOff(i))
	if err != nil {
		return err
	}
	v = v.SetBits(1, 3, ev.Channel.Sel())
	v = v.SetBit(0, ev.Port&1 != 0)
	v = v.SetBits(17, 18, uint64(ev.Port>>1))
	v = v.SetBits(4, 5, uint64(group))
	return m.xp.WriteOff(wpConfigOff(i), uint64(v))
}

func (m *DTM) pairCounter(wp, counter int) error {
	const reg = 0x2210 // por_dtm_pmu_config
	v, err := m.xp.ReadOff(reg)
	if err != nil {
		return err
	}
	v = v.SetBits(uint(32+wp*8), uint(39+wp*8), uint64(wp))
	v = v.SetBits(4, 7, v.Bits(4, 7)|(1<<uint(wp)))
	v = v.SetBits(uint(16+wp*4), uint(18+wp*4), uint64(counter))
	v = v.SetBit(8, true) // cntr_rst
	return m.xp.WriteOff(reg, uint64(v))
}

// configureTrace sets a watchpoint's packet-generation fields so matches
// are pushed into the FIFO as control flits with a cycle count, and turns
// on the crosspoint's no-ATB FIFO path.
func (m *DTM) configureTrace(wp int) error {
	v, err := m.xp.ReadOff(wpConfigOff(wp))
	if err != nil {
		return err
	}
	v = v.SetBit(10, true)        // wp_pkt_gen
	v = v.SetBits(11, 13, 0b100)  // wp_pkt_type
	v = v.SetBit(14, true)        // wp_cc_en
	if err := m.xp.WriteOff(wpConfigOff(wp), uint64(v)); err != nil {
		return err
	}
	ctrl, err := m.xp.ReadOff(0x2100)
	if err != nil {
		return err
	}
	return m.xp.WriteOff(0x2100, uint64(ctrl.SetBit(3, true))) // trace_no_atb
}

// EnableTraceTag turns on trace_tag_enable for this crosspoint's DTM, used
// by the first event in a tag-filtered trace session.
func (m *DTM) EnableTraceTag() error {
	v, err := m.xp.ReadOff(0x2100)
	if err != nil {
		return err
	}
	return m.xp.WriteOff(0x2100, uint64(v.SetBit(1, true)))
}

// Enable turns on the crosspoint's PMU (stat mode) and DTM block. Must be
// called after every watchpoint on this DTM has been configured.
func (m *DTM) Enable() error {
	if m.mode == ModeStat {
		v, err := m.xp.ReadOff(0x2210)
		if err != nil {
			return err
		}
		if v.Bit(0) == 0 {
			if err := m.xp.WriteOff(0x2210, uint64(v.SetBit(0, true))); err != nil {
				return err
			}
		}
	}
	v, err := m.xp.ReadOff(0x2100)
	if err != nil {
		return err
	}
	if v.Bit(0) != 0 {
		return nil
	}
	return m.xp.WriteOff(0x2100, uint64(v.SetBit(0, true)))
}

// ReadPMUCounter combines the DTM's 16-bit shadow half with the DTC's
// 32-bit wide half into one synthetic 48-bit count. Callers must have
// already triggered (and, for a timed wait, confirmed) a domain-0
// snapshot.
func (m *DTM) ReadPMUCounter(wpIndex, dtcCounter int) (uint64, error) {
	if err := m.dtc.WaitCounterReady(dtcCounter); err != nil {
		return 0, err
	}
	dv, err := m.xp.ReadOff(0x2240) // por_dtm_pmevcntsr
	if err != nil {
		return 0, err
	}
	start := uint(wpIndex * 16)
	dtmCounter := dv.Bits(start, start+15)
	dtcCounterVal, err := m.dtc.ShadowCounter(dtcCounter)
	if err != nil {
		return 0, err
	}
	return (dtcCounterVal << 16) | dtmCounter, nil
}

// FIFOReady reports whether watchpoint wp's trace FIFO has a packet
// waiting, via por_dtm_fifo_entry_ready.
func (m *DTM) FIFOReady(wp int) (bool, error) {
	v, err := m.xp.ReadOff(0x2118)
	if err != nil {
		return false, err
	}
	return v.Bit(uint(wp)) != 0, nil
}

// AckFIFO clears watchpoint wp's ready bit without reading the entry,
// discarding whatever the FIFO holds.
func (m *DTM) AckFIFO(wp int) error {
	return m.xp.WriteOff(0x2118, uint64(1)<<uint(wp))
}

// ReadFIFOEntry copies watchpoint wp's 3x64-bit trace FIFO entry into dst
// and clears the ready bit so the hardware can produce the next one.
func (m *DTM) ReadFIFOEntry(wp int, dst *[24]byte) error {
	base := fifoEntryOff(wp)
	for word := 0; word < 3; word++ {
		var v uint64
		if err := m.xp.ReadOffInto(base+uint64(word)*8, &v); err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(dst[word*8:(word+1)*8], v)
	}
	return m.xp.WriteOff(0x2118, uint64(1)<<uint(wp))
}
