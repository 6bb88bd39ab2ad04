// cmn-pmu drives the Arm CMN interconnect's debug trace hardware from
// userspace: it discovers mesh topology, counts flits matching watchpoint
// predicates (stat), captures matching flits (trace), and decodes saved
// captures to CSV (report).
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/armcmn/cmn-pmu/cmnerr"
)

const usageText = `usage: cmn-pmu <command> [options]

commands:
  info    dump mesh topology, optionally probing the mesh clock
  stat    count flits matching watchpoint events, printed periodically
  trace   capture flits matching watchpoint events to a trace log
  report  decode a saved trace log to CSV

run "cmn-pmu <command> -h" for command options`

func usage() {
	fmt.Fprintln(os.Stderr, usageText)
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "info":
		err = cmdInfo(os.Args[2:])
	case "stat":
		err = cmdStat(os.Args[2:])
	case "trace":
		err = cmdTrace(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		return
	default:
		log.Printf("cmn-pmu: unknown command %q", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Printf("cmn-pmu: %v", err)
		if cmnerr.KindOf(err) == cmnerr.ParseError {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

// eventFlags collects repeatable -e arguments.
type eventFlags []string

func (e *eventFlags) String() string { return fmt.Sprint(*e) }

func (e *eventFlags) Set(s string) error {
	*e = append(*e, s)
	return nil
}
