package packet

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/armcmn/cmn-pmu/event"
)

// Record is one event's captured trace, as persisted to a trace log: the
// event's identity and match predicates, plus every packet its watchpoint
// pushed through the FIFO, in capture order. Packets is nil for an event
// that never fired.
type Record struct {
	Name        string
	Mesh        int
	XPNodeID    int
	Port        int
	Channel     event.Channel
	Direction   event.Direction
	MatchGroups []event.MatchGroup
	Packets     *Buffer
}

// NewRecord snapshots an event's identity into a Record, leaving Packets
// to be attached by the trace loop.
func NewRecord(ev *event.Event) *Record {
	return &Record{
		Name:        ev.Name,
		Mesh:        ev.Mesh,
		XPNodeID:    ev.XPNodeID,
		Port:        ev.Port,
		Channel:     ev.Channel,
		Direction:   ev.Direction,
		MatchGroups: ev.MatchGroups,
	}
}

// Save writes records to path as a gob stream. A pre-existing file at
// path is renamed to path.old first rather than clobbered, so an
// accidental re-run doesn't destroy the previous capture.
func Save(path string, records []*Record) error {
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, path+".old"); err != nil {
			return fmt.Errorf("backup %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(records); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a trace log written by Save.
func Load(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var records []*Record
	if err := gob.NewDecoder(f).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}
