package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/armcmn/cmn-pmu/cmnerr"
	"github.com/armcmn/cmn-pmu/packet"
)

// cmdReport decodes a saved trace log into one CSV per event, sampling
// when a capture holds more packets than requested.
func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	input := fs.String("i", "trace.data", "trace log input `file`")
	outDir := fs.String("o", ".", "output `directory` for CSV files")
	maxRecords := fs.Int("n", 1000, "max `records` per CSV")
	sample := fs.String("s", "header", "sampling strategy: header|tail|evenly|random")
	verbose := fs.Bool("v", false, "echo the first rows of each CSV")
	if err := fs.Parse(args); err != nil {
		return cmnerr.Newf(cmnerr.ParseError, "%v", err)
	}
	switch *sample {
	case "header", "tail", "evenly", "random":
	default:
		return cmnerr.Newf(cmnerr.ParseError, "invalid sampling strategy %q", *sample)
	}
	if *maxRecords <= 0 {
		return cmnerr.Newf(cmnerr.ParseError, "max records must be positive, got %d", *maxRecords)
	}

	records, err := packet.Load(*input)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	for _, rec := range records {
		path := filepath.Join(*outDir, fmt.Sprintf("%s-%s.csv", rec.Name, *sample))
		if err := writeCSV(path, rec, *maxRecords, *sample); err != nil {
			return err
		}
		if *verbose {
			if err := previewCSV(path, 25); err != nil {
				return err
			}
			separator()
		}
	}
	return nil
}

func writeCSV(path string, rec *packet.Record, maxRecords int, sample string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)

	fields := packet.Fields(rec.Channel)
	header := make([]string, len(fields))
	for i, field := range fields {
		header[i] = field.Name
	}
	if err := w.Write(header); err != nil {
		return err
	}
	if rec.Packets == nil {
		w.Flush()
		return w.Error()
	}

	indices := sampleIndices(rec.Packets.Size(), maxRecords, sample, rand.Int63())
	banner("write %s records to %s ...", groupDigits(uint64(len(indices))), path)
	row := make([]string, len(fields))
	for _, index := range indices {
		p := rec.Packets.Get(index)
		values := packet.Decode(rec.Channel, p)
		for i, field := range fields {
			v := values[field.Name]
			if field.Name == "opcode" {
				if name, ok := packet.OpcodeName(rec.Channel, v); ok {
					row[i] = name
					continue
				}
			}
			row[i] = strconv.FormatUint(v, 10)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// sampleIndices picks which packet ordinals land in the CSV: the first
// maxRecords, the last, an even stride across the whole capture, or a
// sorted uniform random sample.
func sampleIndices(size, maxRecords int, sample string, seed int64) []int {
	if size <= maxRecords || sample == "header" {
		n := size
		if n > maxRecords {
			n = maxRecords
		}
		indices := make([]int, n)
		for i := range indices {
			indices[i] = i
		}
		return indices
	}
	switch sample {
	case "tail":
		indices := make([]int, maxRecords)
		for i := range indices {
			indices[i] = size - maxRecords + i
		}
		return indices
	case "evenly":
		step := size / maxRecords
		indices := make([]int, maxRecords)
		for i := range indices {
			indices[i] = i * step
		}
		return indices
	case "random":
		rnd := rand.New(rand.NewSource(seed))
		indices := rnd.Perm(size)[:maxRecords]
		sort.Ints(indices)
		return indices
	}
	return nil
}

// previewCSV echoes the first n rows of the generated file for a quick
// sanity check.
func previewCSV(path string, n int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	r := csv.NewReader(f)
	for i := 0; i < n; i++ {
		row, err := r.Read()
		if err != nil {
			break
		}
		fmt.Fprintln(stdout, row)
	}
	return nil
}
