// Package register provides a 64-bit hardware register value with
// inclusive bit-range accessors, mirroring the CMN TRM's own convention of
// describing fields as [lo:hi] within a register word.
package register

import "fmt"

// Value is a 64-bit register word.
type Value uint64

// Bits returns the inclusive bit range [lo, hi], right-shifted to bit 0.
func (v Value) Bits(lo, hi uint) uint64 {
	n := hi - lo + 1
	mask := uint64(1)<<n - 1
	return (uint64(v) >> lo) & mask
}

// Bit returns a single bit as 0 or 1.
func (v Value) Bit(pos uint) uint64 {
	return v.Bits(pos, pos)
}

// SetBits returns a copy of v with the inclusive range [lo, hi] replaced by
// val. It panics if val doesn't fit the declared width — use TrySetBits at
// any boundary where the width isn't already statically known to fit.
func (v Value) SetBits(lo, hi uint, val uint64) Value {
	nv, err := v.TrySetBits(lo, hi, val)
	if err != nil {
		panic(err)
	}
	return nv
}

// TrySetBits is the checked form of SetBits: it reports an error instead of
// panicking when val doesn't fit in hi-lo+1 bits.
func (v Value) TrySetBits(lo, hi uint, val uint64) (Value, error) {
	if lo > hi || hi > 63 {
		return v, fmt.Errorf("register: invalid bit range [%d:%d]", lo, hi)
	}
	n := hi - lo + 1
	if n < 64 && val >= uint64(1)<<n {
		return v, fmt.Errorf("register: value %#x does not fit in %d bits [%d:%d]", val, n, lo, hi)
	}
	mask := (uint64(1)<<n - 1) << lo // full-width shift wraps to all ones
	return Value((uint64(v) &^ mask) | (val << lo)), nil
}

// SetBit sets or clears a single bit.
func (v Value) SetBit(pos uint, set bool) Value {
	if set {
		return Value(uint64(v) | (1 << pos))
	}
	return Value(uint64(v) &^ (1 << pos))
}
