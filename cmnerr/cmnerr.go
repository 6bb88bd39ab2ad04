// Package cmnerr defines the error kinds surfaced by the CMN PMU driver
// core, so that callers (notably the cmn-pmu CLI) can distinguish a
// malformed event string from a hardware assertion without string
// matching.
package cmnerr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of failure, per the driver's error handling
// design.
type Kind int

const (
	// NotPresent means no mesh device file matched the requested index.
	NotPresent Kind = iota
	// Ambiguous means more than one mesh device file matched.
	Ambiguous
	// MapError means the register window could not be mapped.
	MapError
	// ParseError means a malformed event expression or CLI option.
	ParseError
	// NoResources means no free watchpoint or DTC counter was available.
	NoResources
	// UnsupportedTopology means a refused hardware configuration, such as
	// multi-DTM on an XP with more than two ports.
	UnsupportedTopology
	// SnapshotTimeout means ss_status never set within its timeout.
	SnapshotTimeout
	// HardwareAssertion means an unexpected register value, such as a
	// root type tag that isn't CFG.
	HardwareAssertion
)

func (k Kind) String() string {
	switch k {
	case NotPresent:
		return "NotPresent"
	case Ambiguous:
		return "Ambiguous"
	case MapError:
		return "MapError"
	case ParseError:
		return "ParseError"
	case NoResources:
		return "NoResources"
	case UnsupportedTopology:
		return "UnsupportedTopology"
	case SnapshotTimeout:
		return "SnapshotTimeout"
	case HardwareAssertion:
		return "HardwareAssertion"
	default:
		return "Unknown"
	}
}

// Error is a Kind-tagged error.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Is reports whether target is an *Error with the same Kind, so callers
// can do errors.Is(err, cmnerr.New(cmnerr.NoResources, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf builds an *Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, or reports -1, which is no defined Kind, otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return -1
}
