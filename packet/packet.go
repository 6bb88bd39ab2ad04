// Package packet models the 192-bit control flits a DTM watchpoint
// captures into its trace FIFO: the flit record itself, the chunked
// buffer trace mode appends them to, the per-channel field maps that
// split a flit back into named columns, and the on-disk trace log format.
package packet

import "encoding/binary"

// Size is the byte size of one trace packet: three 64-bit FIFO entries.
const Size = 3 * 8

// Packet is one captured control flit, stored little-endian so bit 0 of
// the flit is bit 0 of byte 0.
type Packet [Size]byte

// New packs three 64-bit FIFO entry words into a Packet.
func New(a, b, c uint64) Packet {
	var p Packet
	binary.LittleEndian.PutUint64(p[0:8], a)
	binary.LittleEndian.PutUint64(p[8:16], b)
	binary.LittleEndian.PutUint64(p[16:24], c)
	return p
}

// Bits returns the inclusive bit range [lo, hi] of the 192-bit flit,
// right-shifted to bit 0. It panics on a range outside [0, 191] — field
// tables are static, so an out-of-range access is a programming error,
// not a data error.
func (p *Packet) Bits(lo, hi int) uint64 {
	if lo < 0 || hi > 191 || lo > hi {
		panic("packet: bit range out of bounds")
	}

	var result uint64
	loByte, loBit := lo/8, uint(lo%8)
	hiByte, hiBit := hi/8, uint(hi%8)
	for i := hiByte; i >= loByte; i-- {
		start, stop := uint(0), uint(7)
		if i == loByte {
			start = loBit
		}
		if i == hiByte {
			stop = hiBit
		}
		width := stop - start + 1
		mask := byte(1)<<(stop+1) - byte(1)<<start
		result <<= width
		result |= uint64((p[i] & mask) >> start)
	}
	return result
}

// Bit returns a single flit bit as 0 or 1.
func (p *Packet) Bit(pos int) uint64 {
	return p.Bits(pos, pos)
}
