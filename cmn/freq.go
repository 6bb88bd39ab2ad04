package cmn

import (
	"time"

	"github.com/armcmn/cmn-pmu/cmnerr"
)

// Clock abstracts the passage of time so frequency probing can be driven by
// a fake clock in tests instead of a real one-second sleep.
type Clock interface {
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock is the Clock used outside of tests.
var RealClock Clock = realClock{}

// ProbeFrequency estimates the mesh clock in Hz by sampling domain 0's
// 40-bit cycle counter (por_dt_pmccntr) one second apart. On return it
// writes zero to por_dt_dtc_ctl and por_dt_pmcr, so both are left disabled
// whatever their state before the call.
func ProbeFrequency(m *Mesh, clock Clock) (float64, error) {
	dtc0, ok := m.DTC(0)
	if !ok {
		return 0, cmnerr.New(cmnerr.UnsupportedTopology, "mesh has no DTC domain 0")
	}

	if err := dtc0.writeOff(0x0A00, 1); err != nil { // por_dt_dtc_ctl.dt_en
		return 0, err
	}
	if err := dtc0.writeOff(0x2100, 1); err != nil { // por_dt_pmcr.pmu_en
		return 0, err
	}
	defer func() {
		_ = dtc0.writeOff(0x0A00, 0)
		_ = dtc0.writeOff(0x2100, 0)
	}()

	start, err := dtc0.readOff(0x2040) // por_dt_pmccntr
	if err != nil {
		return 0, err
	}
	clock.Sleep(time.Second)
	end, err := dtc0.readOff(0x2040)
	if err != nil {
		return 0, err
	}

	const counterWidth = 40
	delta := int64(end.Bits(0, counterWidth-1)) - int64(start.Bits(0, counterWidth-1))
	if delta < 0 {
		delta += int64(1) << counterWidth
	}
	return float64(delta), nil
}
