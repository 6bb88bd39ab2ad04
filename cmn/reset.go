package cmn

// Reset zeroes this crosspoint's DTM control, watchpoint, and counter
// registers, then acknowledges all four trace FIFO entries.
func (x *MXP) Reset() error {
	zeroRegs := []uint64{
		0x2100,                         // por_dtm_control
		0x2210,                         // por_dtm_pmu_config
		0x2000,                         // por_mxp_pmu_event_sel
		0x21A0, 0x21A0 + 24, 0x21A0 + 48, 0x21A0 + 72, // por_dtm_wp0-3_config
		0x21A8, 0x21A8 + 24, 0x21A8 + 48, 0x21A8 + 72, // por_dtm_wp0-3_val
		0x21B0, 0x21B0 + 24, 0x21B0 + 48, 0x21B0 + 72, // por_dtm_wp0-3_mask
		0x2220, // por_dtm_pmevcnt
		0x2240, // por_dtm_pmevcntsr
	}
	for _, reg := range zeroRegs {
		if err := x.writeOff(reg, 0); err != nil {
			return err
		}
	}
	return x.writeOff(0x2118, 0b1111) // por_dtm_fifo_entry_ready
}

// Reset clears this node's debug trace controller registers. A no-op on
// anything that isn't a DTC device node.
func (d *DeviceNode) Reset() error {
	if d.Kind != KindDTC {
		return nil
	}
	zeroRegs := []uint64{
		0x0A00, // por_dt_dtc_ctl
		0x2100, // por_dt_pmcr
		0x0A30, // por_dt_trace_control
		0x2000, 0x2010, 0x2020, 0x2030, // por_dt_pmevcntAB-GH
		0x2040,                         // por_dt_pmccntr
		0x2050, 0x2060, 0x2070, 0x2080, // por_dt_pmevcntsrAB-GH
		0x2090, // por_dt_pmccntrsr
	}
	for _, reg := range zeroRegs {
		if err := d.writeOff(reg, 0); err != nil {
			return err
		}
	}
	return d.writeOff(0x2210, 0b1_1111_1111) // por_dt_pmovsr_clr
}
