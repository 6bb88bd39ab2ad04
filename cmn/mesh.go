package cmn

import (
	"sort"

	"github.com/armcmn/cmn-pmu/cmnerr"
)

// Mesh indexes a discovered CFG's crosspoints by node id and its DTC nodes
// by domain, so callers never have to walk the tree themselves.
type Mesh struct {
	Root *CFG

	XDim, YDim int

	xpByID map[uint16]*MXP
	dtcs   []*DeviceNode // sorted by Domain
}

// BuildMesh indexes a CFG returned by Discover; it reads no registers
// itself.
func BuildMesh(cfg *CFG) (*Mesh, error) {
	m := &Mesh{
		Root: cfg,
		XDim: len(cfg.XPs),
		YDim: len(cfg.XPs[0]),
	}
	m.xpByID = make(map[uint16]*MXP)
	for _, col := range cfg.XPs {
		for _, xp := range col {
			m.xpByID[xp.nodeID] = xp
		}
	}

	maxDomain := -1
	for _, col := range cfg.XPs {
		for _, xp := range col {
			if xp.DTCDomain > maxDomain {
				maxDomain = xp.DTCDomain
			}
			for _, devs := range xp.children {
				for _, dev := range devs {
					if dev.Kind == KindDTC {
						m.dtcs = append(m.dtcs, dev)
					}
				}
			}
		}
	}
	if maxDomain+1 != len(m.dtcs) {
		return nil, cmnerr.Newf(cmnerr.UnsupportedTopology,
			"found %d DTC nodes but max domain is %d", len(m.dtcs), maxDomain)
	}
	sort.Slice(m.dtcs, func(i, j int) bool { return m.dtcs[i].Domain < m.dtcs[j].Domain })

	return m, nil
}

// XP looks up a crosspoint by its CMN node id.
func (m *Mesh) XP(nodeID uint16) (*MXP, bool) {
	xp, ok := m.xpByID[nodeID]
	return xp, ok
}

// DTC returns the DTC device node for a domain ordinal.
func (m *Mesh) DTC(domain int) (*DeviceNode, bool) {
	if domain < 0 || domain >= len(m.dtcs) {
		return nil, false
	}
	return m.dtcs[domain], true
}

// NumDomains reports how many DTC domains this mesh has.
func (m *Mesh) NumDomains() int { return len(m.dtcs) }

// PortInfo is the JSON-shaped description of one device attached to a
// crosspoint port.
type PortInfo struct {
	P      int    `json:"p"`
	D      int    `json:"d"`
	NodeID uint16 `json:"node_id"`
}

// XPPortInfo describes the devices wired to one crosspoint port.
type XPPortInfo struct {
	Type    string     `json:"type"`
	Devices []PortInfo `json:"devices"`
}

// XPInfo is the JSON-shaped description of one crosspoint.
type XPInfo struct {
	X      int          `json:"x"`
	Y      int          `json:"y"`
	NodeID uint16       `json:"node_id"`
	Ports  []XPPortInfo `json:"ports"`
}

// Info is the JSON-shaped topology dump: mesh dimensions plus every
// crosspoint and the devices wired to its ports.
type Info struct {
	Dim struct {
		X int `json:"x"`
		Y int `json:"y"`
	} `json:"dim"`
	XP [][]XPInfo `json:"xp"`
}

// Info renders the mesh's topology in the same shape a saved topology file
// uses, for diffing a live mesh against one captured earlier.
func (m *Mesh) Info() Info {
	var info Info
	info.Dim.X = m.XDim
	info.Dim.Y = m.YDim
	info.XP = make([][]XPInfo, m.XDim)
	for x, col := range m.Root.XPs {
		info.XP[x] = make([]XPInfo, len(col))
		for y, xp := range col {
			xpInfo := XPInfo{X: xp.X, Y: xp.Y, NodeID: xp.nodeID}
			for p, pd := range xp.PortDevs {
				port := XPPortInfo{Type: pd.Type.String()}
				for d := 0; d < pd.Count; d++ {
					port.Devices = append(port.Devices, PortInfo{
						P:      p,
						D:      d,
						NodeID: xp.DevNodeID(p, d),
					})
				}
				xpInfo.Ports = append(xpInfo.Ports, port)
			}
			info.XP[x][y] = xpInfo
		}
	}
	return info
}
