// Package mmio provides a bounded, 8-byte-aligned view over a single CMN
// mesh's memory-mapped register space, backed by a device file exposed by
// the kernel driver as /dev/armcmn:CMN<N>:<phys_base_hex>:<size_hex>.
package mmio

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/armcmn/cmn-pmu/cmnerr"
)

// devicePattern is the glob used to discover a mesh's device file.
const devicePattern = "/dev/armcmn:CMN%d:*"

// Window is a bounded read/write view over a mapped mesh register space.
type Window struct {
	path      string
	fd        int
	base      []byte
	size      uint64
	readWrite bool
}

// globFn is indirected so tests can substitute a fake filesystem layout.
var globFn = filepath.Glob

// OpenMesh discovers and maps the device file for the given mesh index.
func OpenMesh(meshIndex int, readWrite bool) (*Window, error) {
	pattern := fmt.Sprintf(devicePattern, meshIndex)
	matches, err := globFn(pattern)
	if err != nil {
		return nil, cmnerr.Newf(cmnerr.MapError, "glob %s: %v", pattern, err)
	}
	switch len(matches) {
	case 0:
		return nil, cmnerr.Newf(cmnerr.NotPresent, "no device file matching %s", pattern)
	default:
		if len(matches) > 1 {
			return nil, cmnerr.Newf(cmnerr.Ambiguous, "multiple device files matching %s: %v", pattern, matches)
		}
	}
	return Open(matches[0], readWrite)
}

// Open parses a device-file handle name of the form
// armcmn:CMN<id>:<phys_base_hex>:<size_hex>, and maps the described region.
func Open(path string, readWrite bool) (*Window, error) {
	size, err := parseSize(path)
	if err != nil {
		return nil, err
	}

	flags := unix.O_RDONLY
	prot := unix.PROT_READ
	if readWrite {
		flags = unix.O_RDWR
		prot |= unix.PROT_WRITE
	}

	fd, err := unix.Open(path, flags, 0)
	if err != nil {
		return nil, cmnerr.Newf(cmnerr.MapError, "open %s: %v", path, err)
	}

	base, err := unix.Mmap(fd, 0, int(size), prot, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, cmnerr.Newf(cmnerr.MapError, "mmap %s: %v", path, err)
	}

	return &Window{
		path:      path,
		fd:        fd,
		base:      base,
		size:      size,
		readWrite: readWrite,
	}, nil
}

// parseSize extracts the trailing hex size field from a device file name
// such as armcmn:CMN0:140000000:40000000.
func parseSize(path string) (uint64, error) {
	base := filepath.Base(path)
	fields := strings.Split(base, ":")
	if len(fields) < 4 {
		return 0, cmnerr.Newf(cmnerr.MapError, "malformed device handle %q", path)
	}
	size, err := strconv.ParseUint(fields[len(fields)-1], 16, 64)
	if err != nil {
		return 0, cmnerr.Newf(cmnerr.MapError, "malformed size in device handle %q: %v", path, err)
	}
	return size, nil
}

// Size returns the mapped region's byte size.
func (w *Window) Size() uint64 { return w.size }

func (w *Window) checkBounds(off uint64) error {
	if off+8 > w.size {
		return cmnerr.Newf(cmnerr.HardwareAssertion, "offset %#x+8 exceeds window size %#x", off, w.size)
	}
	return nil
}

// Read64 reads a little-endian 64-bit word at off.
func (w *Window) Read64(off uint64) (uint64, error) {
	if err := w.checkBounds(off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(w.base[off : off+8]), nil
}

// Write64 writes a little-endian 64-bit word at off.
func (w *Window) Write64(off uint64, v uint64) error {
	if err := w.checkBounds(off); err != nil {
		return err
	}
	if !w.readWrite {
		return cmnerr.Newf(cmnerr.MapError, "window %s is read-only", w.path)
	}
	binary.LittleEndian.PutUint64(w.base[off:off+8], v)
	return nil
}

// Read64Into copies 8 raw bytes at off directly into dst, avoiding an
// intermediate allocation — used by the trace-mode FIFO drain, which must
// stay ahead of hardware production.
func (w *Window) Read64Into(off uint64, dst *uint64) error {
	if err := w.checkBounds(off); err != nil {
		return err
	}
	*dst = binary.LittleEndian.Uint64(w.base[off : off+8])
	return nil
}

// Close unmaps the region and closes the underlying file descriptor.
func (w *Window) Close() error {
	if w.base != nil {
		if err := unix.Munmap(w.base); err != nil {
			return err
		}
		w.base = nil
	}
	return unix.Close(w.fd)
}
