package register

import "testing"

func TestBitsRoundTrip(t *testing.T) {
	cases := []struct {
		lo, hi uint
		val    uint64
	}{
		{0, 0, 1},
		{0, 63, 0xdeadbeefcafebabe},
		{4, 7, 0xf},
		{16, 31, 0x1234},
		{62, 63, 0x3},
	}

	for _, c := range cases {
		var v Value
		v = v.SetBits(c.lo, c.hi, c.val)
		if got := v.Bits(c.lo, c.hi); got != c.val {
			t.Errorf("SetBits(%d,%d,%#x).Bits() = %#x, want %#x", c.lo, c.hi, c.val, got, c.val)
		}
	}
}

func TestSetBitsPreservesOtherBits(t *testing.T) {
	v := Value(0xFFFFFFFFFFFFFFFF)
	v = v.SetBits(8, 15, 0)
	if v.Bits(0, 7) != 0xFF {
		t.Errorf("low byte clobbered: %#x", v)
	}
	if v.Bits(16, 63) != Value(0xFFFFFFFFFFFFFFFF).Bits(16, 63) {
		t.Errorf("high bits clobbered: %#x", v)
	}
}

func TestTrySetBitsRejectsOverflow(t *testing.T) {
	var v Value
	if _, err := v.TrySetBits(0, 3, 16); err == nil {
		t.Fatal("expected error for value overflowing 4-bit range")
	}
}

func TestSetBit(t *testing.T) {
	var v Value
	v = v.SetBit(5, true)
	if v.Bit(5) != 1 {
		t.Fatalf("bit 5 not set")
	}
	v = v.SetBit(5, false)
	if v.Bit(5) != 0 {
		t.Fatalf("bit 5 not cleared")
	}
}
