package cmn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/armcmn/cmn-pmu/mmio"
	"github.com/armcmn/cmn-pmu/register"
)

// buildSyntheticMesh lays out a 4x4 topology (16 XPs) in a backing file
// shaped like the kernel's device handle, with the XP at node_id=8
// advertising logical_id=4 (the arm-cmn xdim convention), and a single
// HN-D + DTC pair wired to XP0's port 0.
func buildSyntheticMesh(t *testing.T) *mmio.Window {
	t.Helper()
	const size = 0x20000

	dir := t.TempDir()
	path := filepath.Join(dir, "armcmn:CMN0:140000000:"+hexStr(size))
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

	// Root CFG node.
	var rootInfo register.Value
	rootInfo = rootInfo.SetBits(0, 15, uint64(KindCFG))
	write(0x0, rootInfo)
	var rootChildInfo register.Value
	rootChildInfo = rootChildInfo.SetBits(0, 15, 16)   // child_count
	rootChildInfo = rootChildInfo.SetBits(16, 31, 0x100) // child_ptr_offset
	write(0x80, rootChildInfo)

	const xpStride = 0x1000
	for idx := 0; idx < 16; idx++ {
		base := uint64(0x1000 + idx*xpStride)
		var ptr register.Value
		ptr = ptr.SetBits(0, 29, base)
		write(0x100+uint64(idx)*8, ptr)

		var info register.Value
		info = info.SetBits(0, 15, uint64(KindMXP))
		info = info.SetBits(16, 31, uint64(idx*8))
		if idx == 1 {
			info = info.SetBits(32, 47, 4) // logical_id -> xdim
		}
		if idx == 0 {
			info = info.SetBits(48, 51, 1) // port_count
		}
		write(base, info)

		if idx == 0 {
			var childInfo register.Value
			childInfo = childInfo.SetBits(0, 15, 1)
			childInfo = childInfo.SetBits(16, 31, 0x200)
			write(base+0x80, childInfo)

			var connInfo register.Value
			connInfo = connInfo.SetBits(0, 4, 0b01010) // HN-D
			write(base+8, connInfo)

			var portInfo register.Value
			portInfo = portInfo.SetBits(0, 2, 1) // dev_count
			write(base+0x900, portInfo)

			dtcOffset := base + 0x300
			var childPtr register.Value
			childPtr = childPtr.SetBits(0, 29, dtcOffset)
			write(base+0x200, childPtr)

			var dtcInfo register.Value
			dtcInfo = dtcInfo.SetBits(0, 15, uint64(KindDTC))
			write(dtcOffset, dtcInfo)
			// dtcOffset+0x80 child_info left zero: DTC has no children.
		}
	}

	return w
}

func hexStr(n int) string {
	const digits = "0123456789abcdef"
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{digits[n%16]}, b...)
		n /= 16
	}
	return string(b)
}

func TestDiscoverTopologyDimensions(t *testing.T) {
	win := buildSyntheticMesh(t)

	cfg, err := Discover(win, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(cfg.XPs) != 4 || len(cfg.XPs[0]) != 4 {
		t.Fatalf("got %dx%d mesh, want 4x4", len(cfg.XPs), len(cfg.XPs[0]))
	}

	mesh, err := BuildMesh(cfg)
	if err != nil {
		t.Fatalf("BuildMesh: %v", err)
	}
	if mesh.NumDomains() != 1 {
		t.Fatalf("got %d DTC domains, want 1", mesh.NumDomains())
	}

	xp8, ok := mesh.XP(8)
	if !ok {
		t.Fatal("XP with node_id 8 not found")
	}
	if xp8.LogicalID() != 4 {
		t.Fatalf("XP8 logical_id = %d, want 4", xp8.LogicalID())
	}

	xp0, ok := mesh.XP(0)
	if !ok {
		t.Fatal("XP with node_id 0 not found")
	}
	children := xp0.Children(0, 0)
	if len(children) != 1 || children[0].Kind != KindDTC {
		t.Fatalf("expected one DTC child at XP0 port0 device0, got %v", children)
	}
	if _, ok := mesh.DTC(0); !ok {
		t.Fatal("DTC domain 0 not indexed")
	}
}

func TestDiscoverRejectsNonCFGRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "armcmn:CMN0:140000000:1000")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f.Truncate(0x1000)
	f.Close()

	w, err := mmio.Open(path, true)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if _, err := Discover(w, nil); err == nil {
		t.Fatal("expected error for zeroed (non-CFG) root node")
	}
}
