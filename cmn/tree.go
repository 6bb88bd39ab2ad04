package cmn

import (
	"io"
	"log"
	"math/bits"

	"github.com/armcmn/cmn-pmu/cmnerr"
	"github.com/armcmn/cmn-pmu/mmio"
	"github.com/armcmn/cmn-pmu/register"
)

// DeviceNode is a leaf node hanging off a crosspoint port: an HN-F, RN-I,
// SBSX, DVM, or one of the other twelve non-CFG, non-XP kinds. None carries
// fields beyond its identity and port placement, except that a DTC also
// records its domain.
type DeviceNode struct {
	node
	Kind NodeKind
	PD   PortDevice

	// Domain is the DTC domain ordinal. Only meaningful when Kind == KindDTC.
	Domain int
}

// PortDevInfo describes the device type and count wired to one crosspoint
// port, as read from its por_mxp_device_port_connect_info / por_mxp_pN_info
// registers.
type PortDevInfo struct {
	Type  DeviceType
	Count int
}

// MXP is a crosspoint: a mesh routing node with up to six device ports and
// its own DTM watchpoint/counter block.
type MXP struct {
	node

	X, Y int

	PortDevs  []PortDevInfo
	DTCDomain int

	children map[PortDevice][]*DeviceNode
}

// Children returns the device nodes attached at (p, d), or nil if nothing
// is attached there.
func (x *MXP) Children(p, d int) []*DeviceNode {
	return x.children[PortDevice{Port: p, Device: d}]
}

// DevNodeID returns the CMN node id expected for the device at (p, d),
// derived purely from port count and the XP's own node id — callable even
// when no child node was actually discovered there (SN-F/RN-F devices often
// have none).
func (x *MXP) DevNodeID(p, d int) uint16 {
	var packed uint16
	if len(x.PortDevs) <= 2 {
		packed = uint16(p<<2) | uint16(d)
	} else {
		packed = uint16(p<<1) | uint16(d)
	}
	return x.nodeID + packed
}

// CFG is the mesh's root configuration node.
type CFG struct {
	node

	XPs             [][]*MXP // XPs[x][y]
	MultiDTMEnabled bool
}

// readChildPointer reads child pointer i relative to n's own child_ptr_offset,
// returning the target register offset and whether it points off-mesh.
func readChildPointer(n *node, i int) (offset uint64, external bool, err error) {
	v, err := n.readOff(uint64(n.childPtrOffset) + uint64(i)*8)
	if err != nil {
		return 0, false, err
	}
	return v.Bits(0, 29), v.Bit(31) != 0, nil
}

// Discover walks the descriptor tree rooted at offset 0 of win: the root
// CFG node, every crosspoint hanging off it, and every device node hanging
// off each crosspoint, then derives mesh coordinates and (port, device)
// placement for all of them. Discovery anomalies (external nodes, unknown
// type tags, out-of-bound children) are logged to warn and skipped; a nil
// warn discards them.
func Discover(win *mmio.Window, warn *log.Logger) (*CFG, error) {
	if warn == nil {
		warn = log.New(io.Discard, "", 0)
	}
	rootWord, err := win.Read64(0)
	if err != nil {
		return nil, err
	}
	rv := register.Value(rootWord)
	if tag := NodeKind(rv.Bits(0, 15)); tag != KindCFG {
		return nil, cmnerr.Newf(cmnerr.HardwareAssertion, "root node type %s, want CFG", tag)
	}

	cfg := &CFG{node: newNode(win, 0, rv)}
	if err := cfg.readChildInfo(); err != nil {
		return nil, err
	}

	xpList, err := probeXPs(&cfg.node, warn)
	if err != nil {
		return nil, err
	}
	if err := layoutXPs(cfg, xpList); err != nil {
		return nil, err
	}

	multiDTM, err := cfg.readOff(0x900)
	if err != nil {
		return nil, err
	}
	cfg.MultiDTMEnabled = multiDTM.Bit(63) != 0
	if cfg.MultiDTMEnabled {
		warn.Print("detected multiple dtm, unsupported")
	}

	return cfg, nil
}

// probeXPs walks root's children, asserting each is a crosspoint.
func probeXPs(root *node, warn *log.Logger) ([]*MXP, error) {
	xps := make([]*MXP, 0, root.childCount)
	for i := 0; i < int(root.childCount); i++ {
		offset, external, err := readChildPointer(root, i)
		if err != nil {
			return nil, err
		}
		if external {
			warn.Print("ignore external node from root")
			continue
		}
		word, err := root.win.Read64(offset)
		if err != nil {
			return nil, err
		}
		wv := register.Value(word)
		if tag := NodeKind(wv.Bits(0, 15)); tag != KindMXP {
			return nil, cmnerr.Newf(cmnerr.HardwareAssertion, "CFG child node type %s, want XP", tag)
		}
		xp, err := probeXP(root.win, offset, wv, warn)
		if err != nil {
			return nil, err
		}
		xps = append(xps, xp)
	}
	return xps, nil
}

func probeXP(win *mmio.Window, offset uint64, info register.Value, warn *log.Logger) (*MXP, error) {
	xp := &MXP{node: newNode(win, offset, info)}
	if xp.nodeID&7 != 0 {
		return nil, cmnerr.Newf(cmnerr.HardwareAssertion, "XP node id %d has nonzero port/device bits", xp.nodeID)
	}
	if err := xp.readChildInfo(); err != nil {
		return nil, err
	}

	portCount := int(info.Bits(48, 51))
	if portCount > 6 {
		return nil, cmnerr.Newf(cmnerr.HardwareAssertion, "XP %d advertises %d ports", xp.nodeID, portCount)
	}

	domainReg, err := xp.readOff(0x960)
	if err != nil {
		return nil, err
	}
	xp.DTCDomain = int(domainReg.Bits(0, 1))

	portDevs, err := probePorts(&xp.node, portCount)
	if err != nil {
		return nil, err
	}
	xp.PortDevs = portDevs

	devices, err := probeDevices(&xp.node, portCount, warn)
	if err != nil {
		return nil, err
	}
	xp.children = populateChildren(xp.nodeID, portDevs, devices, warn)

	return xp, nil
}

func probePorts(xp *node, portCount int) ([]PortDevInfo, error) {
	devs := make([]PortDevInfo, portCount)
	for i := 0; i < portCount; i++ {
		connInfo, err := xp.readOff(8 + uint64(i)*8)
		if err != nil {
			return nil, err
		}
		portInfo, err := xp.readOff(0x900 + uint64(i)*16)
		if err != nil {
			return nil, err
		}
		devs[i] = PortDevInfo{
			Type:  DeviceType(connInfo.Bits(0, 4)),
			Count: int(portInfo.Bits(0, 2)),
		}
	}
	return devs, nil
}

func probeDevices(xp *node, portCount int, warn *log.Logger) ([]*DeviceNode, error) {
	var devices []*DeviceNode
	for i := 0; i < int(xp.childCount); i++ {
		offset, external, err := readChildPointer(xp, i)
		if err != nil {
			return nil, err
		}
		if external {
			warn.Printf("XP%d: ignore external node", xp.nodeID)
			continue
		}
		word, err := xp.win.Read64(offset)
		if err != nil {
			return nil, err
		}
		wv := register.Value(word)
		kind := NodeKind(wv.Bits(0, 15))
		if !kind.Known() {
			warn.Printf("XP%d: ignore unknown node type %#04x", xp.nodeID, uint16(kind))
			continue
		}
		dev := &DeviceNode{node: newNode(xp.win, offset, wv), Kind: kind}
		dev.PD = devicePortDevice(dev.nodeID, portCount)
		if kind == KindDTC {
			dev.Domain = int(dev.logicalID & 3)
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func populateChildren(xpID uint16, portDevs []PortDevInfo, devices []*DeviceNode, warn *log.Logger) map[PortDevice][]*DeviceNode {
	children := make(map[PortDevice][]*DeviceNode)
	for p, pd := range portDevs {
		for d := 0; d < pd.Count; d++ {
			children[PortDevice{Port: p, Device: d}] = nil
		}
	}
	for _, dev := range devices {
		if _, ok := children[dev.PD]; !ok {
			warn.Printf("ignore out of bound child node at XP%d port%d device%d %s",
				xpID, dev.PD.Port, dev.PD.Device, dev.Kind)
			continue
		}
		children[dev.PD] = append(children[dev.PD], dev)
	}
	return children
}

// layoutXPs derives (xdim, ydim) from the node-id-8 convention the arm-cmn
// Linux driver relies on, places every XP at its mesh coordinate, and
// derives each XP's (x, y).
func layoutXPs(cfg *CFG, xpList []*MXP) error {
	xdim := 1
	for _, xp := range xpList {
		if xp.nodeID == 8 {
			xdim = int(xp.logicalID)
			break
		}
	}
	if xdim == 0 || len(xpList)%xdim != 0 {
		return cmnerr.Newf(cmnerr.UnsupportedTopology, "xp count %d not divisible by xdim %d", len(xpList), xdim)
	}
	ydim := len(xpList) / xdim
	if xdim <= 0 || xdim > 16 || ydim <= 0 || ydim > 16 {
		return cmnerr.Newf(cmnerr.UnsupportedTopology, "mesh dimension %dx%d out of range", xdim, ydim)
	}

	xshift := bits.Len(uint(max(xdim, ydim) - 1))
	if xshift < 2 {
		xshift = 2
	}

	xps := make([][]*MXP, xdim)
	for i := range xps {
		xps[i] = make([]*MXP, ydim)
	}
	for _, xp := range xpList {
		xy := xp.nodeID >> 3
		x := int(xy) >> xshift
		y := int(xy) & ((1 << xshift) - 1)
		if x < 0 || x >= xdim || y < 0 || y >= ydim {
			return cmnerr.Newf(cmnerr.UnsupportedTopology, "XP %d maps outside mesh bounds (%d,%d)", xp.nodeID, x, y)
		}
		xp.X, xp.Y = x, y
		xps[x][y] = xp
	}
	for x := 0; x < xdim; x++ {
		for y := 0; y < ydim; y++ {
			if xps[x][y] == nil {
				return cmnerr.Newf(cmnerr.UnsupportedTopology, "no XP discovered at mesh coordinate (%d,%d)", x, y)
			}
		}
	}
	cfg.XPs = xps
	return nil
}

