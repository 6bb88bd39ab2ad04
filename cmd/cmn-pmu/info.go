package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/armcmn/cmn-pmu/cmn"
	"github.com/armcmn/cmn-pmu/cmnerr"
	"github.com/armcmn/cmn-pmu/mmio"
)

// cmdInfo dumps a mesh's topology as JSON, either probed live or loaded
// from an earlier dump, and can optionally estimate the mesh clock.
func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	mesh := fs.Int("m", 0, "mesh index")
	output := fs.String("o", "", "write topology JSON to `file` instead of stdout")
	input := fs.String("i", "", "load topology JSON from `file` instead of probing")
	freq := fs.Bool("freq", false, "probe the mesh clock frequency (enables counters briefly)")
	if err := fs.Parse(args); err != nil {
		return cmnerr.Newf(cmnerr.ParseError, "%v", err)
	}

	var info cmn.Info
	if *input != "" {
		data, err := os.ReadFile(*input)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(data, &info); err != nil {
			return cmnerr.Newf(cmnerr.ParseError, "topology file %s: %v", *input, err)
		}
	} else {
		// frequency probing enables counters, so it needs a writable window
		win, err := mmio.OpenMesh(*mesh, *freq)
		if err != nil {
			return err
		}
		defer win.Close()
		cfg, err := cmn.Discover(win, log.Default())
		if err != nil {
			return err
		}
		m, err := cmn.BuildMesh(cfg)
		if err != nil {
			return err
		}
		info = m.Info()
		// summaries go to stderr so a piped -o-less topology dump stays
		// valid JSON
		log.Printf("cmn%d: %dx%d mesh, %d DTC domains", *mesh, m.XDim, m.YDim, m.NumDomains())
		if *freq {
			hz, err := cmn.ProbeFrequency(m, cmn.RealClock)
			if err != nil {
				return err
			}
			log.Printf("cmn%d: mesh clock %.3f GHz", *mesh, hz/1e9)
		}
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	if *output != "" {
		return os.WriteFile(*output, append(data, '\n'), 0o644)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}
