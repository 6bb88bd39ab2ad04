package packet

import (
	"github.com/armcmn/cmn-pmu/event"
)

// Field is one named column of a decoded flit, an inclusive bit range
// within the 192-bit record.
type Field struct {
	Name   string
	Lo, Hi int
}

// flitFields maps each channel to its column layout, in report column
// order. The layout assumes MPAM is enabled. Each field has the same
// width as in the watchpoint field dictionary, but sits at its position
// within the 192-bit flit rather than at its packed position within the
// 64-bit match word. The trailing cycle column is the DTC cycle count stamped
// into the third FIFO entry when wp_cc_en is set.
var flitFields = map[event.Channel][]Field{
	event.ChannelReq: {
		{"srcid", 15, 25},
		{"tgtid", 4, 14},
		{"opcode", 62, 68},
		{"txnid", 26, 37},
		{"lpid", 86, 90},
		{"mpam", 99, 109},
		{"addr", 110, 161},
		{"cycle", 176, 191},
	},
	event.ChannelRsp: {
		{"srcid", 15, 25},
		{"tgtid", 4, 14},
		{"opcode", 38, 42},
		{"txnid", 26, 37},
		{"dbid", 54, 65},
		{"cbusy", 51, 53},
		{"cycle", 176, 191},
	},
	event.ChannelSnp: {
		{"srcid", 4, 14},
		{"fwdnid", 27, 37},
		{"opcode", 50, 54},
		{"txnid", 15, 26},
		{"mpam", 59, 69},
		{"addr", 70, 118},
		{"cycle", 176, 191},
	},
	event.ChannelDat: {
		{"srcid", 15, 25},
		{"tgtid", 4, 14},
		{"opcode", 49, 52},
		{"txnid", 26, 37},
		{"homenid", 38, 48},
		{"resp", 55, 57},
		{"datasrc", 58, 61},
		{"dbid", 65, 76},
		{"cbusy", 62, 64},
		{"cycle", 176, 191},
	},
}

// Fields returns the channel's column layout in report order.
func Fields(ch event.Channel) []Field {
	return flitFields[ch]
}

// Decode extracts every named field of the channel's layout from p.
func Decode(ch event.Channel, p Packet) map[string]uint64 {
	values := make(map[string]uint64, len(flitFields[ch]))
	for _, f := range flitFields[ch] {
		values[f.Name] = p.Bits(f.Lo, f.Hi)
	}
	return values
}

// OpcodeName maps a decoded opcode value back to its CHI mnemonic, or
// reports false for an encoding with no named command.
func OpcodeName(ch event.Channel, opcode uint64) (string, bool) {
	return event.OpcodeName(ch, opcode)
}
