package cmn

import (
	"github.com/armcmn/cmn-pmu/mmio"
	"github.com/armcmn/cmn-pmu/register"
)

// node is the state shared by every node kind: its register window, base
// offset within that window, and the identity fields every por_xxx_node_info
// word carries.
type node struct {
	win       *mmio.Window
	regBase   uint64
	nodeID    uint16
	logicalID uint16

	childCount     uint16
	childPtrOffset uint16
}

func newNode(win *mmio.Window, regBase uint64, info register.Value) node {
	return node{
		win:       win,
		regBase:   regBase,
		nodeID:    uint16(info.Bits(16, 31)),
		logicalID: uint16(info.Bits(32, 47)),
	}
}

// readOff reads the register at regBase+off.
func (n *node) readOff(off uint64) (register.Value, error) {
	v, err := n.win.Read64(n.regBase + off)
	return register.Value(v), err
}

// writeOff writes the register at regBase+off.
func (n *node) writeOff(off uint64, val uint64) error {
	return n.win.Write64(n.regBase+off, val)
}

// ReadOff reads the register at this node's regBase+off. Exported so
// packages that program DTM/DTC registers directly (pmu) don't need their
// own copy of the node's window and base offset.
func (n *node) ReadOff(off uint64) (register.Value, error) {
	return n.readOff(off)
}

// WriteOff writes the register at this node's regBase+off.
func (n *node) WriteOff(off uint64, val uint64) error {
	return n.writeOff(off, val)
}

// ReadOffInto copies the raw register word at regBase+off into dst, for
// the FIFO drain path that must not allocate per word.
func (n *node) ReadOffInto(off uint64, dst *uint64) error {
	return n.win.Read64Into(n.regBase+off, dst)
}

func (n *node) readChildInfo() error {
	v, err := n.readOff(0x80)
	if err != nil {
		return err
	}
	n.childCount = uint16(v.Bits(0, 15))
	n.childPtrOffset = uint16(v.Bits(16, 31))
	return nil
}

// NodeID returns the node's 12-bit CMN node identifier.
func (n *node) NodeID() uint16 { return n.nodeID }

// LogicalID returns the node's logical identifier.
func (n *node) LogicalID() uint16 { return n.logicalID }

// PortDevice identifies where a device node sits off its parent crosspoint.
type PortDevice struct {
	Port   int
	Device int
}

// devicePortDevice derives (p, d) from a device node's low 3 node-id bits,
// per the port-count-dependent packing the CMN TRM uses.
func devicePortDevice(nodeID uint16, portCount int) PortDevice {
	pd := nodeID & 7
	if portCount <= 2 {
		return PortDevice{Port: int(pd >> 2), Device: int(pd & 3)}
	}
	return PortDevice{Port: int(pd >> 1), Device: int(pd & 1)}
}
