// Package pmu schedules DTM watchpoints and DTC counters across a set of
// compiled events and sequences the enable/reset/snapshot operations the
// CMN TRM requires.
package pmu

import (
	"log"
	"sync"

	"github.com/armcmn/cmn-pmu/cmn"
	"github.com/armcmn/cmn-pmu/cmnerr"
	"github.com/armcmn/cmn-pmu/event"
	"github.com/armcmn/cmn-pmu/mmio"
)

// Mode selects which register fields DTM.Configure and DTC.Configure
// additionally program: stat mode pairs a DTC counter with the watchpoint,
// trace mode enables flit capture into the FIFO. A Context is fixed to one
// mode for its whole lifetime; mixing counting and capture on the same
// mesh is not supported.
type Mode int

const (
	ModeStat Mode = iota
	ModeTrace
)

// Context owns the mesh, DTM, and DTC caches for one profiling run, so
// repeated lookups return the same logical object. Each caller (the CLI,
// or a test) constructs its own Context; there is no global state.
type Context struct {
	mu sync.Mutex

	mode      Mode
	meshIndex func(i int) (*mmio.Window, error)
	warn      *log.Logger

	meshes map[int]*cmn.Mesh
	dtms   map[dtmKey]*DTM
	dtcs   map[dtcKey]*DTC
}

type dtmKey struct {
	mesh int
	xpID uint16
}

type dtcKey struct {
	mesh   int
	domain int
}

// OpenFunc opens the register window for a mesh index, e.g. mmio.OpenMesh.
type OpenFunc func(meshIndex int, readWrite bool) (*mmio.Window, error)

// NewContext builds a Context that discovers meshes on demand via open and
// programs every DTM/DTC it constructs for mode. Discovery warnings go to
// warn; a nil warn discards them.
func NewContext(mode Mode, open OpenFunc, warn *log.Logger) *Context {
	return &Context{
		mode:      mode,
		meshIndex: func(i int) (*mmio.Window, error) { return open(i, true) },
		warn:      warn,
		meshes:    make(map[int]*cmn.Mesh),
		dtms:      make(map[dtmKey]*DTM),
		dtcs:      make(map[dtcKey]*DTC),
	}
}

// Mesh returns the discovered, indexed mesh for meshIndex, probing and
// caching it on first use.
func (c *Context) Mesh(meshIndex int) (*cmn.Mesh, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.meshLocked(meshIndex)
}

func (c *Context) meshLocked(meshIndex int) (*cmn.Mesh, error) {
	if m, ok := c.meshes[meshIndex]; ok {
		return m, nil
	}
	win, err := c.meshIndex(meshIndex)
	if err != nil {
		return nil, err
	}
	cfg, err := cmn.Discover(win, c.warn)
	if err != nil {
		return nil, err
	}
	mesh, err := cmn.BuildMesh(cfg)
	if err != nil {
		return nil, err
	}
	c.meshes[meshIndex] = mesh
	return mesh, nil
}

// DTM returns the DTM controller for the crosspoint xpNodeID in mesh
// meshIndex, constructing it (and its owning DTC domains) on first use.
func (c *Context) DTM(meshIndex int, xpNodeID uint16) (*DTM, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := dtmKey{meshIndex, xpNodeID}
	if dtm, ok := c.dtms[key]; ok {
		return dtm, nil
	}
	mesh, err := c.meshLocked(meshIndex)
	if err != nil {
		return nil, err
	}
	xp, ok := mesh.XP(xpNodeID)
	if !ok {
		return nil, cmnerr.Newf(cmnerr.NotPresent, "mesh %d has no XP with node id %d", meshIndex, xpNodeID)
	}
	dtc, err := c.dtcLocked(meshIndex, mesh, xp.DTCDomain)
	if err != nil {
		return nil, err
	}
	dtc0, err := c.dtcLocked(meshIndex, mesh, 0)
	if err != nil {
		return nil, err
	}
	dtm, err := newDTM(mesh.Root, xp, dtc, dtc0)
	if err != nil {
		return nil, err
	}
	c.dtms[key] = dtm
	return dtm, nil
}

// DTC returns the DTC controller for a domain in a mesh, constructing it
// on first use.
func (c *Context) DTC(meshIndex int, domain int) (*DTC, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	mesh, err := c.meshLocked(meshIndex)
	if err != nil {
		return nil, err
	}
	return c.dtcLocked(meshIndex, mesh, domain)
}

func (c *Context) dtcLocked(meshIndex int, mesh *cmn.Mesh, domain int) (*DTC, error) {
	key := dtcKey{meshIndex, domain}
	if dtc, ok := c.dtcs[key]; ok {
		return dtc, nil
	}
	node, ok := mesh.DTC(domain)
	if !ok {
		return nil, cmnerr.Newf(cmnerr.NotPresent, "mesh %d has no DTC domain %d", meshIndex, domain)
	}
	dtc := newDTC(node, c.mode)
	c.dtcs[key] = dtc
	return dtc, nil
}

// ConfiguredEvent pairs a compiled event with the watchpoint (and, in stat
// mode, DTC counter) it was scheduled onto.
type ConfiguredEvent struct {
	Event      *event.Event
	DTM        *DTM
	WPIndex    int
	DTCCounter int
}

// Configure resolves each event's DTM, allocates and programs its
// watchpoint(s), pairs a DTC counter in stat mode, and then programs the
// domain-wide fields of every DTC touched.
func (c *Context) Configure(events []*event.Event) ([]ConfiguredEvent, error) {
	configured := make([]ConfiguredEvent, 0, len(events))
	for _, ev := range events {
		dtm, err := c.DTM(ev.Mesh, uint16(ev.XPNodeID))
		if err != nil {
			return nil, err
		}
		wpIndex, dtcCounter, err := dtm.Configure(ev)
		if err != nil {
			return nil, err
		}
		configured = append(configured, ConfiguredEvent{
			Event: ev, DTM: dtm, WPIndex: wpIndex, DTCCounter: dtcCounter,
		})
	}
	c.mu.Lock()
	dtcs := make([]*DTC, 0, len(c.dtcs))
	for _, dtc := range c.dtcs {
		dtcs = append(dtcs, dtc)
	}
	c.mu.Unlock()
	for _, dtc := range dtcs {
		if err := dtc.Configure(); err != nil {
			return nil, err
		}
	}
	return configured, nil
}

// Enable sequences dtm.Enable() across every constructed DTM, then
// dtc.Enable0() across every domain-0 DTC — DTM must be enabled before the
// DTC that feeds its counters.
func (c *Context) Enable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, dtm := range c.dtms {
		if err := dtm.Enable(); err != nil {
			return err
		}
	}
	for _, dtc := range c.dtcs {
		if dtc.node.Domain != 0 {
			continue
		}
		if err := dtc.Enable0(); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot triggers a domain-0 latch on every mesh touched, then reads
// back each configured event's combined 48-bit counter value.
func (c *Context) Snapshot(configured []ConfiguredEvent) (map[string]uint64, error) {
	c.mu.Lock()
	dtc0s := make(map[int]*DTC)
	for key, dtc := range c.dtcs {
		if key.domain == 0 {
			dtc0s[key.mesh] = dtc
		}
	}
	c.mu.Unlock()
	for _, dtc0 := range dtc0s {
		if err := dtc0.Snapshot(); err != nil {
			return nil, err
		}
	}

	results := make(map[string]uint64, len(configured))
	for _, ce := range configured {
		v, err := ce.DTM.ReadPMUCounter(ce.WPIndex, ce.DTCCounter)
		if err != nil {
			return nil, err
		}
		results[ce.Event.Name] = v
	}
	return results, nil
}

// Reset clears every DTC (domain 0 first, since it gates the global
// enable) and then every crosspoint in every touched mesh, regardless of
// which events are active.
func (c *Context) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, mesh := range c.meshes {
		for domain := 0; domain < mesh.NumDomains(); domain++ {
			dtcNode, ok := mesh.DTC(domain)
			if !ok {
				continue
			}
			if err := dtcNode.Reset(); err != nil {
				return err
			}
		}
		for _, col := range mesh.Root.XPs {
			for _, xp := range col {
				if err := xp.Reset(); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
