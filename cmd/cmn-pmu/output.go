package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// stdout is the (possibly ANSI-translating) writer summary blocks go to.
var stdout io.Writer = colorable.NewColorableStdout()

// color reports whether stdout is a terminal worth coloring.
var color = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

const (
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// separator prints the block divider between emitted intervals.
func separator() {
	line := ""
	for i := 0; i < 80; i++ {
		line += "-"
	}
	if color {
		fmt.Fprintln(stdout, ansiDim+line+ansiReset)
	} else {
		fmt.Fprintln(stdout, line)
	}
}

// banner prints a run-level headline.
func banner(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if color {
		fmt.Fprintln(stdout, ansiBold+msg+ansiReset)
	} else {
		fmt.Fprintln(stdout, msg)
	}
}

// counterLine prints one event's value, name left-aligned and padded to a
// fixed column so blocks line up: name truncated to 64 chars, count
// right-aligned with thousands grouping.
func counterLine(name string, value uint64) {
	if len(name) > 64 {
		name = name[:64]
	}
	fmt.Fprintf(stdout, "%-65s%15s\n", name, groupDigits(value))
}

// groupDigits renders v with comma thousands separators.
func groupDigits(v uint64) string {
	s := strconv.FormatUint(v, 10)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}
