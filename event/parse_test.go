package event

import "testing"

func TestParseSingleGroupEvent(t *testing.T) {
	evs, err := Parse("cmn0/xp=10,up,port=1,channel=req,opcode=readshared,lpid=2/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	ev := evs[0]
	if ev.Mesh != 0 || ev.XPNodeID != 10 || ev.Port != 1 {
		t.Fatalf("unexpected identity: %+v", ev)
	}
	if ev.Direction != DirectionUp || ev.Channel != ChannelReq {
		t.Fatalf("unexpected direction/channel: %+v", ev)
	}
	if ev.Combined() {
		t.Fatal("single-group event reported as combined")
	}
	vm := ev.ValMasks[0]
	wantOpcodeBits := uint64(0x01) << 34 // group 0 opcode position
	if vm.Value&wantOpcodeBits == 0 {
		t.Errorf("opcode bits not set in value %#x", vm.Value)
	}
	wantLpidBits := uint64(2) << 41
	if vm.Value&wantLpidBits == 0 {
		t.Errorf("lpid bits not set in value %#x", vm.Value)
	}
	if ^vm.Mask&(wantOpcodeBits|wantLpidBits) == 0 {
		t.Errorf("match bits not open in mask %#x", vm.Mask)
	}
}

func TestParseGroupSelectsFieldLayout(t *testing.T) {
	// addr only exists in the REQ group-1 layout
	evs, err := Parse("cmn0/xp=8,up,port=0,channel=req,group=1,addr=0x1000/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := evs[0].ValMasks[0].Value; got != 0x1000 {
		t.Errorf("addr value = %#x, want 0x1000 at group-1 bit 0", got)
	}
	if _, err := Parse("cmn0/xp=8,up,port=0,channel=req,addr=0x1000/"); err == nil {
		t.Fatal("expected error: addr is not a group-0 field")
	}
}

func TestParseEmptyMatchesYieldFullMask(t *testing.T) {
	evs, err := Parse("cmn0/xp=8,port=1,up,group=0,channel=req/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ev := evs[0]
	if ev.Name != "cmn0-xp8-port1-up-req" {
		t.Errorf("name %q, want cmn0-xp8-port1-up-req", ev.Name)
	}
	vm := ev.ValMasks[0]
	if vm.Value != 0 || vm.Mask != ^uint64(0) {
		t.Errorf("empty match compiled to (%#x, %#x), want (0, all-ones mask)", vm.Value, vm.Mask)
	}
}

func TestParseCombinedGroupsRequireTwoWatchpoints(t *testing.T) {
	evs, err := Parse("cmn0/xp=8,down,port=0,channel=dat,group=0,opcode=compdata,group=1,dbid=3/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ev := evs[0]
	if !ev.Combined() {
		t.Fatal("expected a combined (two-group) event")
	}
	if len(ev.ValMasks) != 2 {
		t.Fatalf("got %d val/mask pairs, want 2", len(ev.ValMasks))
	}
}

func TestParseRejectsSrcidOnUpload(t *testing.T) {
	_, err := Parse("cmn0/xp=8,up,port=0,channel=req,srcid=4/")
	if err == nil {
		t.Fatal("expected error: srcid only valid on download watchpoints")
	}
}

func TestParseRejectsTgtidOnDownload(t *testing.T) {
	_, err := Parse("cmn0/xp=8,down,port=0,channel=req,tgtid=4/")
	if err == nil {
		t.Fatal("expected error: tgtid only valid on upload watchpoints")
	}
}

func TestParseChainedTuples(t *testing.T) {
	evs, err := Parse("cmn0/xp=8,up,port=0,channel=req/,cmn1/xp=16,down,port=2,channel=rsp/")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	if evs[0].Mesh != 0 || evs[1].Mesh != 1 {
		t.Fatalf("mesh indices wrong: %d, %d", evs[0].Mesh, evs[1].Mesh)
	}
}

func TestParseRejectsMalformedEventString(t *testing.T) {
	if _, err := Parse("not-an-event"); err == nil {
		t.Fatal("expected parse error for malformed event string")
	}
}

func TestParseMissingMandatoryFieldFails(t *testing.T) {
	if _, err := Parse("cmn0/channel=req,up/"); err == nil {
		t.Fatal("expected error for missing xp=")
	}
}

func TestParseIsDeterministic(t *testing.T) {
	const s = "cmn0/xp=10,up,port=1,channel=req,opcode=readshared,lpid=2/"
	a, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse(s)
	if err != nil {
		t.Fatal(err)
	}
	if a[0].ValMasks[0] != b[0].ValMasks[0] {
		t.Fatalf("compile not deterministic: %+v vs %+v", a[0].ValMasks[0], b[0].ValMasks[0])
	}
	if a[0].Name != b[0].Name {
		t.Fatalf("name not deterministic: %q vs %q", a[0].Name, b[0].Name)
	}
}
