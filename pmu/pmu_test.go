package pmu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/armcmn/cmn-pmu/cmn"
	"github.com/armcmn/cmn-pmu/cmnerr"
	"github.com/armcmn/cmn-pmu/event"
	"github.com/armcmn/cmn-pmu/mmio"
	"github.com/armcmn/cmn-pmu/register"
)

// buildSingleXPMesh lays out a one-crosspoint mesh with a single HN-D/DTC
// pair at port 0, device 0 — enough to exercise watchpoint and counter
// scheduling without a full 16-XP topology.
func buildSingleXPMesh(t *testing.T, portCount int, multiDTM bool) *mmio.Window {
	t.Helper()
	const size = 0x10000

	dir := t.TempDir()
	path := filepath.Join(dir, "armcmn:CMN0:140000000:10000")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	f.Close()

	w, err := mmio.Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })

	write := func(off uint64, v register.Value) {
		if err := w.Write64(off, uint64(v)); err != nil {
			t.Fatalf("write %#x: %v", off, err)
		}
	}

	var rootInfo register.Value
	rootInfo = rootInfo.SetBits(0, 15, uint64(cmn.KindCFG))
	write(0x0, rootInfo)
	var rootChildInfo register.Value
	rootChildInfo = rootChildInfo.SetBits(0, 15, 1)
	rootChildInfo = rootChildInfo.SetBits(16, 31, 0x100)
	write(0x80, rootChildInfo)
	if multiDTM {
		var multi register.Value
		multi = multi.SetBit(63, true)
		write(0x900, multi)
	}

	const xpBase = 0x1000
	var ptr register.Value
	ptr = ptr.SetBits(0, 29, xpBase)
	write(0x100, ptr)

	var info register.Value
	info = info.SetBits(0, 15, uint64(cmn.KindMXP))
	info = info.SetBits(16, 31, 0)
	info = info.SetBits(48, 51, uint64(portCount))
	write(xpBase, info)

	var childInfo register.Value
	childInfo = childInfo.SetBits(0, 15, 1)
	childInfo = childInfo.SetBits(16, 31, 0x200)
	write(xpBase+0x80, childInfo)

	var connInfo register.Value
	connInfo = connInfo.SetBits(0, 4, 0b01010) // HN-D
	write(xpBase+8, connInfo)

	var portInfo register.Value
	portInfo = portInfo.SetBits(0, 2, 1)
	write(xpBase+0x900, portInfo)

	dtcOffset := uint64(xpBase + 0x300)
	var childPtr register.Value
	childPtr = childPtr.SetBits(0, 29, dtcOffset)
	write(xpBase+0x200, childPtr)

	var dtcInfo register.Value
	dtcInfo = dtcInfo.SetBits(0, 15, uint64(cmn.KindDTC))
	write(dtcOffset, dtcInfo)

	return w
}

func newTestContext(t *testing.T, mode Mode, portCount int, multiDTM bool) *Context {
	t.Helper()
	win := buildSingleXPMesh(t, portCount, multiDTM)
	return NewContext(mode, func(meshIndex int, readWrite bool) (*mmio.Window, error) {
		return win, nil
	}, nil)
}

func mustParseOne(t *testing.T, s string) *event.Event {
	t.Helper()
	evs, err := event.Parse(s)
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return evs[0]
}

func TestDTMConfigureAllocatesWatchpoint(t *testing.T) {
	ctx := newTestContext(t, ModeStat, 1, false)
	dtm, err := ctx.DTM(0, 0)
	if err != nil {
		t.Fatalf("DTM: %v", err)
	}
	ev := mustParseOne(t, "cmn0/xp=0,up,port=0,channel=req,opcode=readshared/")
	wp, counter, err := dtm.Configure(ev)
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if wp != 0 {
		t.Fatalf("got watchpoint %d, want 0", wp)
	}
	if counter != 0 {
		t.Fatalf("got dtc counter %d, want 0", counter)
	}
}

func TestDTMConfigureExhaustsWatchpoints(t *testing.T) {
	ctx := newTestContext(t, ModeStat, 1, false)
	dtm, err := ctx.DTM(0, 0)
	if err != nil {
		t.Fatalf("DTM: %v", err)
	}
	for i := 0; i < 2; i++ {
		ev := mustParseOne(t, "cmn0/xp=0,up,port=0,channel=req/")
		if _, _, err := dtm.Configure(ev); err != nil {
			t.Fatalf("Configure %d: %v", i, err)
		}
	}
	ev := mustParseOne(t, "cmn0/xp=0,up,port=0,channel=req/")
	if _, _, err := dtm.Configure(ev); err == nil {
		t.Fatal("expected error allocating a third upload watchpoint")
	} else if cmnerr.KindOf(err) != cmnerr.NoResources {
		t.Fatalf("got error kind %v, want NoResources", cmnerr.KindOf(err))
	}
}

func TestDTMConfigureCombinedGroupUsesTwoWatchpoints(t *testing.T) {
	ctx := newTestContext(t, ModeStat, 1, false)
	dtm, err := ctx.DTM(0, 0)
	if err != nil {
		t.Fatalf("DTM: %v", err)
	}
	ev := mustParseOne(t, "cmn0/xp=0,down,port=0,channel=dat,group=0,opcode=compdata,group=1,dbid=3/")
	if _, _, err := dtm.Configure(ev); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	// no download watchpoint left now
	ev2 := mustParseOne(t, "cmn0/xp=0,down,port=0,channel=req/")
	if _, _, err := dtm.Configure(ev2); err == nil {
		t.Fatal("expected no free download watchpoints after a combined pair was allocated")
	}
}

func TestDTCCounterExhaustion(t *testing.T) {
	ctx := newTestContext(t, ModeStat, 1, false)
	dtc, err := ctx.DTC(0, 0)
	if err != nil {
		t.Fatalf("DTC: %v", err)
	}
	for i := 0; i < dtcNumCounters; i++ {
		if _, ok := dtc.NextCounter(); !ok {
			t.Fatalf("counter %d: expected allocation to succeed", i)
		}
	}
	if _, ok := dtc.NextCounter(); ok {
		t.Fatal("expected counter allocation to fail once all eight are in use")
	}
}

func TestNewDTMRejectsUnsupportedMultiDTMTopology(t *testing.T) {
	ctx := newTestContext(t, ModeStat, 3, true)
	if _, err := ctx.DTM(0, 0); err == nil {
		t.Fatal("expected UnsupportedTopology error for >2 ports with multi_dtm_enabled set")
	} else if cmnerr.KindOf(err) != cmnerr.UnsupportedTopology {
		t.Fatalf("got error kind %v, want UnsupportedTopology", cmnerr.KindOf(err))
	}
}

func TestResetIdempotent(t *testing.T) {
	ctx := newTestContext(t, ModeStat, 1, false)
	dtm, err := ctx.DTM(0, 0)
	if err != nil {
		t.Fatalf("DTM: %v", err)
	}
	ev := mustParseOne(t, "cmn0/xp=0,up,port=0,channel=req/")
	if _, _, err := dtm.Configure(ev); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := ctx.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	mesh, err := ctx.Mesh(0)
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	xp, _ := mesh.XP(0)
	dtc, _ := mesh.DTC(0)

	snapshot := func() [4]uint64 {
		var regs [4]uint64
		for i, off := range []uint64{0x2100, 0x2210, 0x21A0, 0x2118} {
			v, err := xp.ReadOff(off)
			if err != nil {
				t.Fatalf("ReadOff %#x: %v", off, err)
			}
			regs[i] = uint64(v)
		}
		return regs
	}

	if err := ctx.Reset(); err != nil {
		t.Fatalf("first Reset: %v", err)
	}
	first := snapshot()
	dtcCtl, err := dtc.ReadOff(0x0A00)
	if err != nil {
		t.Fatal(err)
	}
	if dtcCtl != 0 {
		t.Fatalf("dt_dtc_ctl = %#x after Reset, want 0", uint64(dtcCtl))
	}

	if err := ctx.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if second := snapshot(); second != first {
		t.Fatalf("reset not idempotent: %#x vs %#x", second, first)
	}
}

func TestContextEnableAndReset(t *testing.T) {
	ctx := newTestContext(t, ModeStat, 1, false)
	dtm, err := ctx.DTM(0, 0)
	if err != nil {
		t.Fatalf("DTM: %v", err)
	}
	ev := mustParseOne(t, "cmn0/xp=0,up,port=0,channel=req/")
	if _, _, err := dtm.Configure(ev); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := ctx.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := ctx.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	mesh, err := ctx.Mesh(0)
	if err != nil {
		t.Fatalf("Mesh: %v", err)
	}
	xp, ok := mesh.XP(0)
	if !ok {
		t.Fatal("XP 0 not found")
	}
	v, err := xp.ReadOff(0x2100)
	if err != nil {
		t.Fatalf("ReadOff: %v", err)
	}
	if v.Bits(0, 0) != 0 {
		t.Fatal("expected dtm_control.dtm_en to be cleared after Reset")
	}
}
