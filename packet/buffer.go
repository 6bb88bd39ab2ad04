package packet

import (
	"bytes"
	"encoding/gob"
)

const (
	// chunkMemorySize is the byte size of one append-only arena chunk.
	chunkMemorySize = 4 * 1024 * 1024
	packetsPerChunk = chunkMemorySize / Size
	maxChunkOffset  = packetsPerChunk * Size
)

// Buffer is the chunked arena trace mode appends captured flits into:
// append never reallocates or copies earlier packets, and random access
// is an index into a chunk plus an offset within it. The FIFO drain loop
// writes each flit in place through NextSlot, so a packet costs no
// allocation beyond its arena chunk.
type Buffer struct {
	chunks [][]byte
	offset int // write offset within the last chunk
	size   int
}

// NextSlot reserves the next packet's storage and returns it for the
// caller to fill in place, growing the arena by one chunk when the
// current one is full.
func (b *Buffer) NextSlot() *[Size]byte {
	if len(b.chunks) == 0 || b.offset >= maxChunkOffset {
		b.chunks = append(b.chunks, make([]byte, chunkMemorySize))
		b.offset = 0
	}
	chunk := b.chunks[len(b.chunks)-1]
	slot := (*[Size]byte)(chunk[b.offset : b.offset+Size])
	b.offset += Size
	b.size++
	return slot
}

// Size reports how many packets have been appended.
func (b *Buffer) Size() int { return b.size }

// Get returns packet index by value. Index must be in [0, Size()).
func (b *Buffer) Get(index int) Packet {
	chunk, n := index/packetsPerChunk, index%packetsPerChunk
	var p Packet
	copy(p[:], b.chunks[chunk][n*Size:(n+1)*Size])
	return p
}

// bufferWire is Buffer's serialized form: the packet count plus only the
// occupied prefix of the last chunk, so a near-empty 4 MiB chunk doesn't
// inflate the trace log.
type bufferWire struct {
	Size   int
	Chunks [][]byte
}

// GobEncode implements gob.GobEncoder.
func (b *Buffer) GobEncode() ([]byte, error) {
	wire := bufferWire{Size: b.size}
	for i, chunk := range b.chunks {
		if i == len(b.chunks)-1 {
			chunk = chunk[:b.offset]
		}
		wire.Chunks = append(wire.Chunks, chunk)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wire); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (b *Buffer) GobDecode(data []byte) error {
	var wire bufferWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&wire); err != nil {
		return err
	}
	b.size = wire.Size
	b.chunks = nil
	b.offset = 0
	for i, chunk := range wire.Chunks {
		full := make([]byte, chunkMemorySize)
		copy(full, chunk)
		b.chunks = append(b.chunks, full)
		if i == len(wire.Chunks)-1 {
			b.offset = len(chunk)
		}
	}
	return nil
}
